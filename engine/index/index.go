// Package index is the exact-cosine vector index over CV chunks, its
// on-disk artifact pair and the atomic handle the server reads it through.
package index

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/askcv/askcv/engine/domain"
)

// Index is immutable after Build or Load. It is safe for concurrent Search.
type Index struct {
	buildID   string
	modelInfo string
	dim       int
	chunks    []domain.Chunk
	norms     []float64
}

// Build indexes chunks, which must all carry embeddings of one dimension.
func Build(chunks []domain.Chunk, modelInfo string) (*Index, error) {
	return build(uuid.NewString(), chunks, modelInfo)
}

func build(buildID string, chunks []domain.Chunk, modelInfo string) (*Index, error) {
	idx := &Index{
		buildID:   buildID,
		modelInfo: modelInfo,
		chunks:    slices.Clone(chunks),
		norms:     make([]float64, len(chunks)),
	}
	for i, c := range idx.chunks {
		if len(c.Embedding) == 0 {
			return nil, fmt.Errorf("index: build: chunk %d has no embedding", c.ID)
		}
		if i == 0 {
			idx.dim = len(c.Embedding)
		} else if len(c.Embedding) != idx.dim {
			return nil, fmt.Errorf("index: build: chunk %d has %d dims, want %d", c.ID, len(c.Embedding), idx.dim)
		}
		idx.norms[i] = norm(c.Embedding)
	}
	return idx, nil
}

func (x *Index) Len() int          { return len(x.chunks) }
func (x *Index) Dimension() int    { return x.dim }
func (x *Index) ModelInfo() string { return x.modelInfo }
func (x *Index) BuildID() string   { return x.buildID }

// Chunks returns a copy of the indexed chunks in insertion order.
func (x *Index) Chunks() []domain.Chunk { return slices.Clone(x.chunks) }

// Search returns up to k chunks by descending cosine similarity to query.
// Equal scores keep insertion order. k is clamped to Len; an empty index or
// k <= 0 yields no results.
func (x *Index) Search(_ context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	if len(x.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("index: search: query has %d dims, index has %d", len(query), x.dim)
	}

	qn := norm(query)
	results := make([]domain.SearchResult, len(x.chunks))
	for i, c := range x.chunks {
		results[i] = domain.SearchResult{Chunk: c, Score: cosine(query, c.Embedding, qn, x.norms[i])}
	}
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return results[:min(k, len(results))], nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine is 0 when either vector is zero.
func cosine(a, b []float32, na, nb float64) float32 {
	if na == 0 || nb == 0 {
		return 0
	}
	var d float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
	}
	return float32(d / (na * nb))
}

// Handle publishes the live index to readers. Swapping is atomic; readers
// holding the previous index keep using it until they finish.
type Handle struct {
	p atomic.Pointer[Index]
}

// NewHandle returns a handle publishing idx (which may be nil).
func NewHandle(idx *Index) *Handle {
	h := &Handle{}
	if idx != nil {
		h.p.Store(idx)
	}
	return h
}

// Load returns the live index, or nil before the first publication.
func (h *Handle) Load() *Index { return h.p.Load() }

// Swap publishes idx and returns the index it replaced.
func (h *Handle) Swap(idx *Index) *Index { return h.p.Swap(idx) }

// Ready reports whether an index has been published.
func (h *Handle) Ready() bool { return h.p.Load() != nil }

// Search delegates to the live index; before publication it returns no results.
func (h *Handle) Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	idx := h.p.Load()
	if idx == nil {
		return nil, nil
	}
	return idx.Search(ctx, query, k)
}
