// Package domain defines the core types, error taxonomy and request validation
// shared by the askcv engine packages.
package domain

import "strings"

// Document is the raw text extracted from one source (the CV PDF or the profile).
type Document struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Chunk is a bounded window of a source document, the unit of retrieval.
// Offset is the rune offset of Text inside its source document.
type Chunk struct {
	ID        int       `json:"id"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	Offset    int       `json:"offset"`
	Embedding []float32 `json:"-"`
}

// Query is a single retrieval request.
type Query struct {
	Text string `json:"text"`
}

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// ChatTurn is one exchange as displayed by a client. The server never stores it.
type ChatTurn struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
}

// Prompt is the composed model input: a system persona and a user message
// carrying the retrieved context and the question.
type Prompt struct {
	System string
	User   string
}

// String renders the prompt as one block of text.
func (p Prompt) String() string {
	var b strings.Builder
	if p.System != "" {
		b.WriteString(p.System)
		b.WriteString("\n\n")
	}
	b.WriteString(p.User)
	return b.String()
}

// Reply statuses returned by the chat endpoint.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
