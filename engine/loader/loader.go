// Package loader reads the source documents the assistant answers from: the
// CV as a PDF (optional) and a plain-text profile (always present).
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/askcv/askcv/engine/domain"
)

// Source names used in chunk metadata and citations.
const (
	ProfileSource = "profile"
)

// DefaultProfile is the built-in profile used when no profile file is configured.
const DefaultProfile = `Name: Alex Morgan
Role: AI Engineering Student
Location: Remote
Skills: Go, Python, LLMOps, RAG, MLOps, REST APIs, Cloud (AWS/GCP)
Experience:
- Built RAG chatbots for personal and portfolio sites.
- Deployed LLM microservices behind HTTP APIs with autoscaling.
- Integrated PDF/TXT ingestion for personal knowledge bases.
- Built a personal portfolio.
Education:
- Engineering degree, 2023-2028
Projects:
- Personal website chatbot answering from CV and portfolio.
- PDF QA system with multi-file ingestion.`

// Sources describes where the documents come from.
type Sources struct {
	// PDFPath is the CV file. Empty or missing files are skipped.
	PDFPath string
	// ProfilePath optionally overrides Profile with the contents of a text file.
	ProfilePath string
	// Profile is the literal profile text.
	Profile string
}

// Loader extracts text from the configured sources.
type Loader struct {
	src     Sources
	extract func(path string) (string, error)
	logger  *slog.Logger
}

// New creates a Loader. A nil logger uses slog.Default().
func New(src Sources, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, extract: ExtractPDF, logger: logger}
}

// Load returns one Document per source that produced text. A missing or
// unreadable PDF is logged and skipped; Load fails with domain.ErrIngestion
// only when nothing produced text.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document

	profile, err := l.profileText()
	if err != nil {
		l.logger.Warn("loader: profile file unreadable, using built-in profile", "path", l.src.ProfilePath, "err", err)
		profile = l.src.Profile
	}
	if text := strings.TrimSpace(profile); text != "" {
		docs = append(docs, domain.Document{Source: ProfileSource, Text: text})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if doc, ok := l.loadPDF(); ok {
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("loader: %w", domain.ErrIngestion)
	}
	return docs, nil
}

func (l *Loader) profileText() (string, error) {
	if l.src.ProfilePath == "" {
		return l.src.Profile, nil
	}
	data, err := os.ReadFile(l.src.ProfilePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Loader) loadPDF() (domain.Document, bool) {
	path := l.src.PDFPath
	if path == "" {
		return domain.Document{}, false
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("loader: cv pdf not found, continuing with profile only", "path", path)
		} else {
			l.logger.Warn("loader: cv pdf not accessible", "path", path, "err", err)
		}
		return domain.Document{}, false
	}

	text, err := l.extract(path)
	if err != nil {
		l.logger.Warn("loader: could not read cv pdf", "path", path, "err", err)
		return domain.Document{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		l.logger.Warn("loader: cv pdf has no extractable text", "path", path)
		return domain.Document{}, false
	}

	l.logger.Info("loader: loaded cv", "path", path, "chars", len(text))
	return domain.Document{Source: filepath.Base(path), Text: text}, true
}
