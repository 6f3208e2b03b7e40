// Package ingest builds the vector index: Load → Chunk → Embed → Index, then
// persists it and optionally mirrors it into Qdrant.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/askcv/askcv/engine/chunker"
	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/engine/embed"
	"github.com/askcv/askcv/engine/index"
	"github.com/askcv/askcv/pkg/fn"
	"github.com/askcv/askcv/pkg/metrics"
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 32

// DocumentLoader reads the source documents. *loader.Loader satisfies it.
type DocumentLoader interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// VectorSync mirrors a built index into an external store. *semantic.VectorStore satisfies it.
type VectorSync interface {
	Sync(ctx context.Context, chunks []domain.Chunk, buildID string) error
}

// Deps holds the collaborators of a Builder.
type Deps struct {
	Loader   DocumentLoader
	Embedder embed.Embedder
	Window   chunker.Window
	Workers  int
	// Dir is where artifacts are persisted. Empty disables persistence.
	Dir string
	// Vectors, when set, receives every published index.
	Vectors VectorSync
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// Builder runs the ingestion pipeline. Concurrent rebuilds are serialized.
type Builder struct {
	deps   Deps
	log    *slog.Logger
	mu     sync.Mutex
	chunks *metrics.Gauge
	dur    *metrics.Histogram
	builds func(status string) *metrics.Counter
}

// NewBuilder creates a Builder.
func NewBuilder(deps Deps) *Builder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	reg := deps.Metrics
	return &Builder{
		deps:   deps,
		log:    deps.Logger,
		chunks: reg.Gauge("askcv_index_chunks", "Chunks in the published index."),
		dur:    reg.Histogram("askcv_index_build_duration_seconds", "Index build duration.", nil),
		builds: func(status string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("askcv_index_builds_total", "status", status), "Index builds by outcome.")
		},
	}
}

// Pipeline returns the traced Load → Chunk → Embed → Index stage chain.
func (b *Builder) Pipeline() fn.Stage[struct{}, *index.Index] {
	load := fn.TracedStage("ingest.load", fn.Lift(func(ctx context.Context, _ struct{}) ([]domain.Document, error) {
		return b.deps.Loader.Load(ctx)
	}))
	chunk := fn.TracedStage("ingest.chunk", func(_ context.Context, docs []domain.Document) fn.Result[[]domain.Chunk] {
		chunks := chunker.ChunkDocuments(docs, b.deps.Window)
		if len(chunks) == 0 {
			return fn.Err[[]domain.Chunk](fmt.Errorf("ingest: chunk: %w", domain.ErrIngestion))
		}
		return fn.Ok(chunks)
	})
	embedded := fn.TracedStage("ingest.embed", fn.Lift(func(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, error) {
		return embed.Chunks(ctx, b.deps.Embedder, chunks, b.deps.Workers, EmbedBatchSize)
	}))
	build := fn.TracedStage("ingest.index", fn.Lift(func(_ context.Context, chunks []domain.Chunk) (*index.Index, error) {
		return index.Build(chunks, b.deps.Embedder.ModelInfo())
	}))
	return fn.Then(fn.Then(fn.Then(load, chunk), embedded), build)
}

// Build runs the pipeline, persists the result and syncs it to the vector store.
func (b *Builder) Build(ctx context.Context) (*index.Index, error) {
	if err := b.deps.Window.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	start := time.Now()
	idx, err := b.Pipeline()(ctx, struct{}{}).Unwrap()
	if err != nil {
		b.builds("error").Inc()
		return nil, err
	}
	if b.deps.Dir != "" {
		if err := idx.Save(b.deps.Dir); err != nil {
			b.builds("error").Inc()
			return nil, fmt.Errorf("ingest: persist: %w", err)
		}
	}
	if err := b.sync(ctx, idx); err != nil {
		b.builds("error").Inc()
		return nil, err
	}
	b.dur.Since(start)
	b.builds("success").Inc()
	b.chunks.Set(float64(idx.Len()))
	b.log.Info("index built",
		"build_id", idx.BuildID(),
		"chunks", idx.Len(),
		"dimension", idx.Dimension(),
		"model", idx.ModelInfo(),
		"duration", time.Since(start),
	)
	return idx, nil
}

// LoadOrBuild returns the persisted index when it matches the current
// embedder, rebuilding from source when it is missing or corrupt. Only a
// failed rebuild is an error.
func (b *Builder) LoadOrBuild(ctx context.Context) (*index.Index, error) {
	if b.deps.Dir == "" {
		return b.Build(ctx)
	}
	want := index.Expect{Dimension: b.deps.Embedder.Dimension(), ModelInfo: b.deps.Embedder.ModelInfo()}
	idx, err := index.Load(b.deps.Dir, want)
	switch {
	case err == nil:
		if err := b.sync(ctx, idx); err != nil {
			return nil, err
		}
		b.chunks.Set(float64(idx.Len()))
		b.log.Info("index loaded", "dir", b.deps.Dir, "build_id", idx.BuildID(), "chunks", idx.Len())
		return idx, nil
	case errors.Is(err, fs.ErrNotExist):
		b.log.Info("no persisted index, building", "dir", b.deps.Dir)
	default:
		b.log.Warn("persisted index unusable, rebuilding", "dir", b.deps.Dir, "err", err)
	}
	return b.Build(ctx)
}

// Rebuild builds a fresh index and publishes it through h. Requests in
// flight keep the index they started with.
func (b *Builder) Rebuild(ctx context.Context, h *index.Handle) (*index.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	if old := h.Swap(idx); old != nil {
		b.log.Info("index swapped", "old_build_id", old.BuildID(), "build_id", idx.BuildID())
	}
	return idx, nil
}

func (b *Builder) sync(ctx context.Context, idx *index.Index) error {
	if b.deps.Vectors == nil {
		return nil
	}
	if err := b.deps.Vectors.Sync(ctx, idx.Chunks(), idx.BuildID()); err != nil {
		return fmt.Errorf("ingest: vector sync: %w", err)
	}
	return nil
}
