package embed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/pkg/config"
	"github.com/askcv/askcv/pkg/ollama"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHash_DeterministicAndNormalised(t *testing.T) {
	h := NewHash(0)
	if h.Dimension() != 384 {
		t.Fatalf("expected default 384 dims, got %d", h.Dimension())
	}
	a, _ := h.Embed(context.Background(), "Skills: Go, Python, RAG")
	b, _ := h.Embed(context.Background(), "Skills: Go, Python, RAG")
	if len(a) != 384 {
		t.Fatalf("wrong length %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("hash embedding must be deterministic")
		}
	}
	if n := dot(a, a); math.Abs(n-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", n)
	}
}

func TestHash_SimilarTextsScoreHigher(t *testing.T) {
	h := NewHash(256)
	ctx := context.Background()
	q, _ := h.Embed(ctx, "what programming skills")
	near, _ := h.Embed(ctx, "Skills: Go programming, Python programming")
	far, _ := h.Embed(ctx, "Education: engineering degree 2023")
	if dot(q, near) <= dot(q, far) {
		t.Fatalf("expected related text to score higher: near=%f far=%f", dot(q, near), dot(q, far))
	}
}

func TestHash_EmptyTextIsZero(t *testing.T) {
	v, err := NewHash(8).Embed(context.Background(), "  ,. ")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatal("text without tokens should embed to the zero vector")
		}
	}
}

func TestHash_BatchMatchesSingle(t *testing.T) {
	h := NewHash(64)
	ctx := context.Background()
	texts := []string{"alpha", "beta gamma", ""}
	batch, err := h.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range texts {
		single, _ := h.Embed(ctx, text)
		for j := range single {
			if single[j] != batch[i][j] {
				t.Fatalf("batch[%d] differs from single embedding", i)
			}
		}
	}
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	dim   int
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	return f.vec, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return sequential(ctx, f, texts)
}

func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) ModelInfo() string { return "fake" }

func TestProbe(t *testing.T) {
	d, err := Probe(context.Background(), &fakeEmbedder{vec: []float32{1, 0, 0}})
	if err != nil || d != 3 {
		t.Fatalf("expected 3 dims, got %d, %v", d, err)
	}
}

func TestProbe_Failures(t *testing.T) {
	tests := []struct {
		name string
		e    *fakeEmbedder
	}{
		{"error", &fakeEmbedder{err: errors.New("connection refused")}},
		{"empty", &fakeEmbedder{vec: []float32{}}},
		{"dimension mismatch", &fakeEmbedder{vec: []float32{1, 2}, dim: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Probe(context.Background(), tt.e)
			if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
				t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
			}
		})
	}
}

func TestChunks_PreservesOrderAcrossBatches(t *testing.T) {
	h := NewHash(32)
	chunks := make([]domain.Chunk, 7)
	for i := range chunks {
		chunks[i] = domain.Chunk{ID: i, Text: strings.Repeat("x", i+1)}
	}

	out, err := Chunks(context.Background(), h, chunks, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range out {
		want, _ := h.Embed(context.Background(), chunks[i].Text)
		if c.ID != i || len(c.Embedding) != 32 || c.Embedding[0] != want[0] {
			t.Fatalf("chunk %d embedded out of order", i)
		}
	}
	if chunks[0].Embedding != nil {
		t.Fatal("input chunks must not be mutated")
	}
}

func TestChunks_PropagatesFailure(t *testing.T) {
	f := &fakeEmbedder{err: context.Canceled}
	_, err := Chunks(context.Background(), f, []domain.Chunk{{Text: "a"}}, 1, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("cancellation must not be retried, got %d calls", f.calls.Load())
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3,0.4]}`))
	}))
	defer srv.Close()

	e := NewOllama(ollama.New(srv.URL, 0), "all-minilm")
	if e.Dimension() != 0 {
		t.Fatal("dimension should be unknown before the first call")
	}
	d, err := Probe(context.Background(), e)
	if err != nil || d != 4 || e.Dimension() != 4 {
		t.Fatalf("probe: %d %v (dim=%d)", d, err, e.Dimension())
	}
	if e.ModelInfo() != "ollama/all-minilm" {
		t.Fatalf("unexpected model info %s", e.ModelInfo())
	}
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 2 || req.Model != "text-embedding-3-small" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,2]},
			{"object":"embedding","index":0,"embedding":[3,0]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewOpenAI("test-key", srv.URL+"/v1", "text-embedding-3-small")
	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("expected normalised vectors ordered by index, got %v", vecs)
	}
	if e.Dimension() != 2 {
		t.Fatalf("expected learned dimension 2, got %d", e.Dimension())
	}
}

func TestOpenAIEmbedder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := Probe(context.Background(), NewOpenAI("bad", srv.URL, "m"))
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	for _, p := range []string{config.ProviderHash, config.ProviderOllama, config.ProviderOpenAI} {
		cfg.Embed.Provider = p
		if _, err := New(cfg); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
	}
	cfg.Embed.Provider = "word2vec"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
