package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/askcv/askcv/engine/chunker"
	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/engine/embed"
	"github.com/askcv/askcv/engine/index"
	"github.com/askcv/askcv/engine/llm"
	"github.com/askcv/askcv/engine/prompt"
	"github.com/askcv/askcv/pkg/metrics"
)

// --- mocks ---

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(context.Context, string) ([]float32, error) { return m.vec, m.err }

type mockSearcher struct {
	results []domain.SearchResult
	err     error
	lastK   int
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, k int) ([]domain.SearchResult, error) {
	m.lastK = k
	return m.results, m.err
}

type mockGenerator struct {
	text       string
	err        error
	lastPrompt domain.Prompt
	lastModel  string
	calls      int
}

func (m *mockGenerator) Generate(_ context.Context, model string, p domain.Prompt) (string, error) {
	m.calls++
	m.lastModel = model
	m.lastPrompt = p
	return m.text, m.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newService(s Searcher, g llm.Generator, reg *metrics.Registry) *Service {
	r := NewRetriever(&mockEmbedder{vec: []float32{1, 0}}, s, 0)
	return New(r, prompt.New(prompt.Persona("Test Owner")), g, Options{Model: "test-model"}, reg, quiet())
}

func cvResults() []domain.SearchResult {
	return []domain.SearchResult{
		{Chunk: domain.Chunk{ID: 0, Source: "profile", Text: "Skills: X, Y"}, Score: 0.9},
		{Chunk: domain.Chunk{ID: 3, Source: "cv.pdf", Text: "Worked at Z"}, Score: 0.7},
		{Chunk: domain.Chunk{ID: 1, Source: "profile", Text: "Lives in W"}, Score: 0.5},
	}
}

// --- tests ---

func TestAnswer_Success(t *testing.T) {
	search := &mockSearcher{results: cvResults()}
	gen := &mockGenerator{text: "Skills: X, Y"}
	reg := metrics.New()
	svc := newService(search, gen, reg)

	reply, err := svc.Answer(context.Background(), "  What are your skills?  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Skills: X, Y" || reply.Status != domain.StatusSuccess || reply.Stage != StageResponding {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(reply.Sources) != 2 || reply.Sources[0] != "profile" || reply.Sources[1] != "cv.pdf" {
		t.Errorf("unexpected sources %v", reply.Sources)
	}
	if search.lastK != DefaultTopK {
		t.Errorf("expected default K %d, got %d", DefaultTopK, search.lastK)
	}
	if gen.lastModel != "test-model" {
		t.Errorf("unexpected model %q", gen.lastModel)
	}
	if !strings.Contains(gen.lastPrompt.User, "Question: What are your skills?") {
		t.Errorf("question not trimmed into prompt: %q", gen.lastPrompt.User)
	}
	if !strings.Contains(gen.lastPrompt.User, "Skills: X, Y") {
		t.Errorf("context missing from prompt")
	}
	if n := reg.Counter(metrics.WithLabels("askcv_chat_requests_total", "status", "success"), "").Value(); n != 1 {
		t.Errorf("success counter = %d", n)
	}
}

func TestAnswer_GenerationFailureApologises(t *testing.T) {
	gen := &mockGenerator{err: &llm.GenerationError{Reason: llm.ReasonNetwork, Err: errors.New("connection refused")}}
	reg := metrics.New()
	svc := newService(&mockSearcher{results: cvResults()}, gen, reg)

	reply, err := svc.Answer(context.Background(), "Where do you work?")
	if err != nil {
		t.Fatalf("generation failure must not surface as an error: %v", err)
	}
	if reply.Text != Apology || reply.Status != domain.StatusError || reply.Stage != StageFailed {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if n := reg.Counter(metrics.WithLabels("askcv_llm_failures_total", "reason", "network"), "").Value(); n != 1 {
		t.Errorf("llm failure counter = %d", n)
	}
	if n := reg.Counter(metrics.WithLabels("askcv_chat_requests_total", "status", "error"), "").Value(); n != 1 {
		t.Errorf("error counter = %d", n)
	}
}

func TestAnswer_RetrievalFailureApologises(t *testing.T) {
	gen := &mockGenerator{text: "never"}
	svc := newService(&mockSearcher{err: errors.New("qdrant down")}, gen, nil)

	reply, err := svc.Answer(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != Apology || reply.Status != domain.StatusError {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run after a retrieval failure")
	}
}

func TestAnswer_EmptyRetrievalStillGenerates(t *testing.T) {
	gen := &mockGenerator{text: "I don't have that information."}
	svc := newService(&mockSearcher{}, gen, nil)

	reply, err := svc.Answer(context.Background(), "What is your blood type?")
	if err != nil || reply.Status != domain.StatusSuccess {
		t.Fatalf("got %+v, %v", reply, err)
	}
	if !strings.Contains(gen.lastPrompt.User, prompt.NoContext) {
		t.Errorf("expected no-context note in prompt: %q", gen.lastPrompt.User)
	}
	if reply.Sources != nil {
		t.Errorf("expected no sources, got %v", reply.Sources)
	}
}

func TestAnswer_InvalidMessage(t *testing.T) {
	gen := &mockGenerator{text: "x"}
	svc := newService(&mockSearcher{}, gen, nil)

	for _, msg := range []string{"", "   \n\t", strings.Repeat("a", domain.MaxMessageLength+1)} {
		_, err := svc.Answer(context.Background(), msg)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %d-byte message, got %v", len(msg), err)
		}
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run for invalid input")
	}
}

func TestRetriever_ExplicitK(t *testing.T) {
	s := &mockSearcher{}
	r := NewRetriever(&mockEmbedder{vec: []float32{1}}, s, 7)
	r.Retrieve(context.Background(), "q", 0)
	if s.lastK != 7 {
		t.Fatalf("expected configured K 7, got %d", s.lastK)
	}
	r.Retrieve(context.Background(), "q", 2)
	if s.lastK != 2 {
		t.Fatalf("expected explicit K 2, got %d", s.lastK)
	}
}

func TestRetriever_EmbedError(t *testing.T) {
	r := NewRetriever(&mockEmbedder{err: domain.ErrEmbeddingUnavailable}, &mockSearcher{}, 0)
	if _, err := r.Retrieve(context.Background(), "q", 0); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected wrapped embed error, got %v", err)
	}
}

func TestRetriever_OverFlatIndex(t *testing.T) {
	docs := []domain.Document{
		{Source: "profile", Text: "Skills: Go, Kubernetes, PostgreSQL and distributed systems."},
		{Source: "cv.pdf", Text: "Hobbies: sailing, chess and baking sourdough bread on weekends."},
	}
	chunks := chunker.ChunkDocuments(docs, chunker.Window{Size: 800, Overlap: 120})
	e := embed.NewHash(128)
	chunks, err := embed.Chunks(context.Background(), e, chunks, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := index.Build(chunks, e.ModelInfo())
	if err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(e, index.NewHandle(idx), 1)
	got, err := r.Retrieve(context.Background(), "Hobbies: sailing, chess and baking sourdough bread on weekends.", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Chunk.Source != "cv.pdf" {
		t.Fatalf("expected the hobbies chunk first, got %+v", got)
	}
}

func TestStageString(t *testing.T) {
	want := []string{"RECEIVED", "RETRIEVING", "COMPOSING", "GENERATING", "RESPONDING", "FAILED"}
	for i, w := range want {
		if got := Stage(i).String(); got != w {
			t.Errorf("Stage(%d) = %q, want %q", i, got, w)
		}
	}
}
