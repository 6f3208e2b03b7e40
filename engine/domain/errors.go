package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the askcv error taxonomy.
var (
	// ErrIngestion means no document source produced any text. Fatal at startup.
	ErrIngestion = errors.New("no document source produced text")
	// ErrEmbeddingUnavailable means the embedding model could not be loaded or run. Fatal at startup.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")
	// ErrIndexCorrupt means persisted index artifacts are missing or inconsistent.
	ErrIndexCorrupt = errors.New("index artifacts corrupt")
	// ErrGeneration covers every failure of the remote chat-completion call.
	ErrGeneration = errors.New("generation failed")

	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message too long")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Wrapped)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Wrapped: wrapped}
}
