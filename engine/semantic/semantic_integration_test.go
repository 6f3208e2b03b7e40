//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"

	"github.com/askcv/askcv/engine/domain"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testStore(t *testing.T, collection string) *VectorStore {
	t.Helper()
	vs, err := New(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		vs.DeleteCollection(context.Background())
		vs.Close()
	})
	return vs
}

func TestQdrant_SyncAndSearch(t *testing.T) {
	vs := testStore(t, "askcv_test_sync")
	ctx := context.Background()

	first := []domain.Chunk{
		{ID: 0, Source: "profile", Text: "Skills: Go, Python", Offset: 0, Embedding: []float32{1, 0, 0, 0}},
		{ID: 1, Source: "profile", Text: "Education: engineering", Offset: 40, Embedding: []float32{0, 1, 0, 0}},
	}
	if err := vs.Sync(ctx, first, "build-1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	second := []domain.Chunk{
		{ID: 0, Source: "cv.pdf", Text: "Experience: RAG chatbots", Offset: 0, Embedding: []float32{0.9, 0.1, 0, 0}},
	}
	if err := vs.Sync(ctx, second, "build-2"); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	res, err := vs.Search(ctx, []float32{1, 0, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Chunk.Source != "cv.pdf" {
		t.Fatalf("expected only the second build to remain, got %+v", res)
	}
}
