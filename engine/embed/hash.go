package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// Hash is a local feature-hashing embedder: lowercased word unigrams and
// character trigrams hashed into Dim signed buckets, then L2-normalised.
// It needs no model server and is deterministic.
type Hash struct {
	Dim int
}

// NewHash returns a Hash embedder; dim <= 0 means 384.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = 384
	}
	return &Hash{Dim: dim}
}

func (h *Hash) Dimension() int    { return h.Dim }
func (h *Hash) ModelInfo() string { return fmt.Sprintf("hash-fnv1a-%d", h.Dim) }

// Embed never fails except on a cancelled context.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float32, h.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h.add(v, "w:"+w, 1)
		padded := []rune(" " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(v, "c:"+string(padded[i:i+3]), 0.5)
		}
	}
	return Normalize(v), nil
}

func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return sequential(ctx, h, texts)
}

func (h *Hash) add(v []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(len(v)))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}
