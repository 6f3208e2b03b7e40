package index

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/askcv/askcv/engine/domain"
)

// Artifact file names inside the index directory.
const (
	VectorsFile = "vectors.gob"
	ChunksFile  = "chunks.json"
)

const formatVersion = 1

type vectorsArtifact struct {
	Version   int
	BuildID   string
	ModelInfo string
	Dimension int
	Count     int
	Vectors   [][]float32
}

type chunksArtifact struct {
	Version   int            `json:"version"`
	BuildID   string         `json:"build_id"`
	ModelInfo string         `json:"model_info"`
	Count     int            `json:"count"`
	Chunks    []domain.Chunk `json:"chunks"`
}

// Expect describes what a loaded index must match. Zero fields are not checked.
type Expect struct {
	Dimension int
	ModelInfo string
}

// Save writes both artifacts into dir. Each is written to a temp file,
// synced and renamed, so readers never see a partial file; a crash between
// the two renames leaves mismatched build IDs, which Load rejects.
func (x *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: save: %w", err)
	}

	vecs := vectorsArtifact{
		Version:   formatVersion,
		BuildID:   x.buildID,
		ModelInfo: x.modelInfo,
		Dimension: x.dim,
		Count:     len(x.chunks),
		Vectors:   make([][]float32, len(x.chunks)),
	}
	for i, c := range x.chunks {
		vecs.Vectors[i] = c.Embedding
	}
	meta := chunksArtifact{
		Version:   formatVersion,
		BuildID:   x.buildID,
		ModelInfo: x.modelInfo,
		Count:     len(x.chunks),
		Chunks:    x.chunks,
	}

	if err := writeAtomic(filepath.Join(dir, VectorsFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(vecs)
	}); err != nil {
		return fmt.Errorf("index: save vectors: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, ChunksFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return fmt.Errorf("index: save chunks: %w", err)
	}
	return nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("index: load: %w: %s", domain.ErrIndexCorrupt, fmt.Sprintf(format, args...))
}

// Load reads the artifact pair from dir. Any missing, truncated or
// inconsistent artifact yields an error wrapping domain.ErrIndexCorrupt; a
// missing artifact additionally wraps fs.ErrNotExist.
func Load(dir string, want Expect) (*Index, error) {
	var vecs vectorsArtifact
	if err := readFile(filepath.Join(dir, VectorsFile), func(f *os.File) error {
		return gob.NewDecoder(f).Decode(&vecs)
	}); err != nil {
		return nil, fmt.Errorf("index: load: %w: %s: %w", domain.ErrIndexCorrupt, VectorsFile, err)
	}
	var meta chunksArtifact
	if err := readFile(filepath.Join(dir, ChunksFile), func(f *os.File) error {
		return json.NewDecoder(f).Decode(&meta)
	}); err != nil {
		return nil, fmt.Errorf("index: load: %w: %s: %w", domain.ErrIndexCorrupt, ChunksFile, err)
	}

	switch {
	case vecs.Version != formatVersion || meta.Version != formatVersion:
		return nil, corrupt("format version %d/%d, want %d", vecs.Version, meta.Version, formatVersion)
	case vecs.BuildID == "" || vecs.BuildID != meta.BuildID:
		return nil, corrupt("build id mismatch %q != %q", vecs.BuildID, meta.BuildID)
	case vecs.Count != len(vecs.Vectors) || meta.Count != len(meta.Chunks) || vecs.Count != meta.Count:
		return nil, corrupt("count mismatch: %d vectors, %d chunks", len(vecs.Vectors), len(meta.Chunks))
	case vecs.ModelInfo != meta.ModelInfo:
		return nil, corrupt("model mismatch between artifacts")
	case want.ModelInfo != "" && vecs.ModelInfo != want.ModelInfo:
		return nil, corrupt("built with %q, want %q", vecs.ModelInfo, want.ModelInfo)
	case vecs.Count > 0 && want.Dimension != 0 && vecs.Dimension != want.Dimension:
		return nil, corrupt("dimension %d, want %d", vecs.Dimension, want.Dimension)
	}

	chunks := meta.Chunks
	for i := range chunks {
		chunks[i].Embedding = vecs.Vectors[i]
	}
	idx, err := build(vecs.BuildID, chunks, vecs.ModelInfo)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	if idx.Len() > 0 && idx.dim != vecs.Dimension {
		return nil, corrupt("vectors have %d dims, header says %d", idx.dim, vecs.Dimension)
	}
	return idx, nil
}

func readFile(path string, read func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return read(f)
}
