package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askcv/askcv/engine/domain"
)

// OpenAIClient talks to an OpenAI-compatible chat-completion API (Groq by default).
type OpenAIClient struct {
	client      *openai.Client
	temperature float32
}

// NewOpenAI creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewOpenAI(apiKey, baseURL string, temperature float32, httpClient *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), temperature: temperature}
}

// Generate sends the persona as the system message and the composed context
// and question as the user message.
func (c *OpenAIClient) Generate(ctx context.Context, model string, p domain.Prompt) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", fail(ReasonMalformed, errors.New("response has no choices"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fail(ReasonMalformed, fmt.Errorf("empty content (finish reason %q)", resp.Choices[0].FinishReason))
	}
	return text, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fail(statusReason(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fail(statusReason(reqErr.HTTPStatusCode), err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fail(ReasonMalformed, err)
	}
	return fail(transportReason(err), err)
}
