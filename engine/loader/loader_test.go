package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/askcv/askcv/engine/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_ProfileOnlyWhenPDFMissing(t *testing.T) {
	l := New(Sources{
		PDFPath: filepath.Join(t.TempDir(), "missing.pdf"),
		Profile: "Name: Test\nSkills: Go",
	}, quietLogger())

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != ProfileSource {
		t.Fatalf("expected only the profile document, got %+v", docs)
	}
}

func TestLoad_PDFAndProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.pdf")
	if err := os.WriteFile(path, []byte("%PDF-stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Sources{PDFPath: path, Profile: "profile text"}, quietLogger())
	l.extract = func(p string) (string, error) {
		if p != path {
			t.Fatalf("unexpected path %s", p)
		}
		return "  Experience: ten years of Go  \n", nil
	}

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[1].Source != "cv.pdf" || docs[1].Text != "Experience: ten years of Go" {
		t.Fatalf("unexpected pdf document: %+v", docs[1])
	}
}

func TestLoad_UnreadablePDFIsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.pdf")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Sources{PDFPath: path, Profile: "profile"}, quietLogger())
	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("an unreadable pdf must not fail the load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected profile only, got %+v", docs)
	}
}

func TestLoad_EmptyPDFTextIsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.pdf")
	os.WriteFile(path, []byte("x"), 0o644)

	l := New(Sources{PDFPath: path, Profile: "profile"}, quietLogger())
	l.extract = func(string) (string, error) { return " \n ", nil }

	docs, err := l.Load(context.Background())
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected profile only, got %+v, %v", docs, err)
	}
}

func TestLoad_NothingYieldsIngestionError(t *testing.T) {
	l := New(Sources{Profile: "   "}, quietLogger())
	_, err := l.Load(context.Background())
	if !errors.Is(err, domain.ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}
}

func TestLoad_ProfileFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.txt")
	os.WriteFile(path, []byte("Name: From File"), 0o644)

	l := New(Sources{ProfilePath: path, Profile: "built-in"}, quietLogger())
	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Text != "Name: From File" {
		t.Fatalf("expected profile file contents, got %q", docs[0].Text)
	}
}

func TestLoad_MissingProfileFileFallsBack(t *testing.T) {
	l := New(Sources{ProfilePath: filepath.Join(t.TempDir(), "nope.txt"), Profile: "built-in"}, quietLogger())
	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Text != "built-in" {
		t.Fatalf("expected built-in profile, got %q", docs[0].Text)
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Sources{Profile: "p"}, quietLogger()).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtractPDF_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	os.WriteFile(path, []byte("not a pdf at all"), 0o644)
	if _, err := ExtractPDF(path); err == nil {
		t.Fatal("expected error for non-pdf input")
	}
}
