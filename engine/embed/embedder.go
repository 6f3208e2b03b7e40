// Package embed maps text to fixed-dimension vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/pkg/fn"
)

// Embedder turns text into vectors. EmbedBatch returns one vector per input,
// in input order, identical to calling Embed on each.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is 0 until known. Remote embedders learn it from Probe.
	Dimension() int
	// ModelInfo identifies the model; persisted indexes built with a different one are rejected.
	ModelInfo() string
}

// Probe embeds a fixed string once and checks the result is usable. Any
// failure is wrapped in domain.ErrEmbeddingUnavailable.
func Probe(ctx context.Context, e Embedder) (int, error) {
	vec, err := e.Embed(ctx, "askcv readiness probe")
	if err != nil {
		return 0, fmt.Errorf("embed: probe %s: %w: %w", e.ModelInfo(), domain.ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("embed: probe %s: %w: empty vector", e.ModelInfo(), domain.ErrEmbeddingUnavailable)
	}
	if d := e.Dimension(); d != 0 && d != len(vec) {
		return 0, fmt.Errorf("embed: probe %s: %w: got %d dims, want %d", e.ModelInfo(), domain.ErrEmbeddingUnavailable, len(vec), d)
	}
	return len(vec), nil
}

// Chunks embeds every chunk's text in place using at most workers concurrent
// calls, retrying transient failures.
func Chunks(ctx context.Context, e Embedder, chunks []domain.Chunk, workers, batchSize int) ([]domain.Chunk, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	batches := fn.Chunk(fn.Map(chunks, func(c domain.Chunk) string { return c.Text }), batchSize)

	retry := fn.DefaultRetry
	retry.Retryable = func(err error) bool { return !errors.Is(err, context.Canceled) }

	results := fn.ParMapResult(ctx, batches, workers, func(ctx context.Context, texts []string) fn.Result[[][]float32] {
		return fn.Retry(ctx, retry, func(ctx context.Context) fn.Result[[][]float32] {
			return fn.FromPair(e.EmbedBatch(ctx, texts))
		})
	})
	vecs, err := fn.Collect(results).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("embed: chunks: %w", err)
	}

	flat := fn.FlatMap(vecs, func(b [][]float32) [][]float32 { return b })
	if len(flat) != len(chunks) {
		return nil, fmt.Errorf("embed: chunks: got %d vectors for %d chunks", len(flat), len(chunks))
	}
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	for i, v := range flat {
		out[i].Embedding = v
	}
	return out, nil
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// sequential implements EmbedBatch with one Embed call per text.
func sequential(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
