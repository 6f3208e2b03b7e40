package embed

import (
	"context"
	"sync/atomic"

	"github.com/askcv/askcv/pkg/ollama"
)

// Ollama embeds through an Ollama server's /api/embeddings.
type Ollama struct {
	client *ollama.Client
	model  string
	dim    atomic.Int64
}

// NewOllama creates an Ollama embedder for model.
func NewOllama(client *ollama.Client, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := o.client.Embed(ctx, o.model, text)
	if err != nil {
		return nil, err
	}
	o.dim.CompareAndSwap(0, int64(len(v)))
	return v, nil
}

// EmbedBatch issues one request per text; the endpoint takes a single prompt.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return sequential(ctx, o, texts)
}

func (o *Ollama) Dimension() int    { return int(o.dim.Load()) }
func (o *Ollama) ModelInfo() string { return "ollama/" + o.model }
