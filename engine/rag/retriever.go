package rag

import (
	"context"
	"fmt"

	"github.com/askcv/askcv/engine/domain"
)

// DefaultTopK is used when neither the caller nor the configuration sets K.
const DefaultTopK = 4

// Embedder embeds a single query text. embed.Embedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts the vector index: the in-process flat index or Qdrant.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error)
}

// Retriever embeds a query and returns the nearest chunks.
type Retriever struct {
	embed  Embedder
	search Searcher
	topK   int
}

// NewRetriever creates a Retriever. topK ≤ 0 means DefaultTopK.
func NewRetriever(e Embedder, s Searcher, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embed: e, search: s, topK: topK}
}

// Retrieve returns up to k results, best first. k ≤ 0 uses the configured default.
// An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = r.topK
	}
	vec, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	results, err := r.search.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	return results, nil
}
