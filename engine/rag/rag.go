// Package rag answers questions about the CV: it retrieves the most relevant
// chunks, composes the prompt and asks the LLM, turning every failure into
// a fixed apology.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/engine/llm"
	"github.com/askcv/askcv/engine/prompt"
	"github.com/askcv/askcv/pkg/metrics"
)

// Apology is the reply text for any failed request.
const Apology = "Sorry, I couldn't generate an answer right now. Please try again later."

// Stage is the lifecycle position of one chat request.
type Stage int

const (
	StageReceived Stage = iota
	StageRetrieving
	StageComposing
	StageGenerating
	StageResponding
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "RECEIVED"
	case StageRetrieving:
		return "RETRIEVING"
	case StageComposing:
		return "COMPOSING"
	case StageGenerating:
		return "GENERATING"
	case StageResponding:
		return "RESPONDING"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Reply is the outcome of one chat request.
type Reply struct {
	Text    string
	Status  string // domain.StatusSuccess or domain.StatusError
	Stage   Stage  // StageResponding or StageFailed
	Sources []string
}

// Options configures the service.
type Options struct {
	Model string
	TopK  int
}

// Service answers chat messages. It is safe for concurrent use and holds no
// per-conversation state.
type Service struct {
	retriever *Retriever
	composer  *prompt.Composer
	gen       llm.Generator
	opts      Options
	logger    *slog.Logger

	reg       *metrics.Registry
	latency   *metrics.Histogram
	retrieved *metrics.Histogram
}

// New creates a Service. A nil registry gets a private one.
func New(r *Retriever, c *prompt.Composer, gen llm.Generator, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		retriever: r,
		composer:  c,
		gen:       gen,
		opts:      opts,
		logger:    logger,
		reg:       reg,
		latency:   reg.Histogram("askcv_chat_duration_seconds", "End-to-end chat request latency.", nil),
		retrieved: reg.Histogram("askcv_retrieval_results", "Chunks retrieved per request.", []float64{0, 1, 2, 4, 8, 16}),
	}
}

// Answer runs one request through retrieval, composition and generation.
// The error is non-nil only for an invalid message (a *domain.ValidationError);
// every later failure yields the apology with StatusError.
func (s *Service) Answer(ctx context.Context, message string) (Reply, error) {
	question, err := domain.NormalizeMessage(message)
	if err != nil {
		s.count(domain.StatusError)
		return Reply{Status: domain.StatusError, Stage: StageFailed}, err
	}

	start := time.Now()
	defer s.latency.Since(start)

	stage := StageRetrieving
	results, err := s.retriever.Retrieve(ctx, question, s.opts.TopK)
	if err != nil {
		return s.fail(stage, err), nil
	}
	s.retrieved.Observe(float64(len(results)))

	stage = StageComposing
	p := s.composer.Compose(results, question)

	stage = StageGenerating
	text, err := s.gen.Generate(ctx, s.opts.Model, p)
	if err != nil {
		return s.fail(stage, err), nil
	}

	s.count(domain.StatusSuccess)
	s.logger.Debug("chat answered",
		"chunks", len(results),
		"duration", time.Since(start),
	)
	return Reply{
		Text:    text,
		Status:  domain.StatusSuccess,
		Stage:   StageResponding,
		Sources: sources(results),
	}, nil
}

func (s *Service) fail(at Stage, err error) Reply {
	s.count(domain.StatusError)
	attrs := []any{"stage", at.String(), "err", err}
	if reason := llm.ReasonOf(err); reason != "" {
		attrs = append(attrs, "reason", string(reason))
		s.reg.Counter(metrics.WithLabels("askcv_llm_failures_total", "reason", string(reason)), "LLM failures by reason.").Inc()
	}
	if errors.Is(err, context.Canceled) {
		s.logger.Info("chat request cancelled", attrs...)
	} else {
		s.logger.Error("chat request failed", attrs...)
	}
	return Reply{Text: Apology, Status: domain.StatusError, Stage: StageFailed}
}

func (s *Service) count(status string) {
	s.reg.Counter(metrics.WithLabels("askcv_chat_requests_total", "status", status), "Chat requests by outcome.").Inc()
}

// sources lists the distinct sources of results in rank order.
func sources(results []domain.SearchResult) []string {
	var out []string
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if !seen[r.Chunk.Source] {
			seen[r.Chunk.Source] = true
			out = append(out, r.Chunk.Source)
		}
	}
	return out
}
