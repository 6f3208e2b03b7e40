// Package llm calls the remote chat-completion service that writes the answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/askcv/askcv/engine/domain"
)

// Generator turns a composed prompt into the model's reply. Implementations
// return *GenerationError for every failure and never an empty reply with a nil error.
type Generator interface {
	Generate(ctx context.Context, model string, p domain.Prompt) (string, error)
}

// Reason classifies a generation failure.
type Reason string

const (
	ReasonNetwork     Reason = "network"
	ReasonTimeout     Reason = "timeout"
	ReasonStatus      Reason = "status"
	ReasonAuth        Reason = "auth"
	ReasonMalformed   Reason = "malformed"
	ReasonUnavailable Reason = "unavailable"
)

// GenerationError is a classified failure of the chat-completion call.
// errors.Is(err, domain.ErrGeneration) holds for every GenerationError.
type GenerationError struct {
	Reason Reason
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{domain.ErrGeneration, e.Err} }

func fail(reason Reason, err error) error {
	return &GenerationError{Reason: reason, Err: err}
}

// ReasonOf returns the classification of err, or "" if err is not a GenerationError.
func ReasonOf(err error) Reason {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ""
}

// statusReason maps an HTTP status to a reason.
func statusReason(code int) Reason {
	if code == 401 || code == 403 {
		return ReasonAuth
	}
	return ReasonStatus
}

// transportReason classifies errors raised before any response arrived.
func transportReason(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetwork
}
