package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/pkg/ollama"
)

// OllamaClient generates with a local Ollama model.
type OllamaClient struct {
	client      *ollama.Client
	temperature float32
}

// NewOllama creates a generator over client.
func NewOllama(client *ollama.Client, temperature float32) *OllamaClient {
	return &OllamaClient{client: client, temperature: temperature}
}

func (c *OllamaClient) Generate(ctx context.Context, model string, p domain.Prompt) (string, error) {
	msgs := make([]ollama.Message, 0, 2)
	if p.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: p.System})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: p.User})

	text, err := c.client.Chat(ctx, model, msgs, c.temperature)
	if err != nil {
		var se *ollama.StatusError
		var de *ollama.DecodeError
		switch {
		case errors.As(err, &se):
			return "", fail(statusReason(se.Code), err)
		case errors.As(err, &de):
			return "", fail(ReasonMalformed, err)
		default:
			return "", fail(transportReason(err), err)
		}
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", fail(ReasonMalformed, errors.New("empty reply"))
	}
	return text, nil
}
