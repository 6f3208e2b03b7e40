// Package chunker splits document text into overlapping fixed-size windows.
// Sizes are measured in runes.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/askcv/askcv/engine/domain"
)

// Defaults match the values the CV index was tuned with.
const (
	DefaultSize    = 800
	DefaultOverlap = 120
)

// Window configures the chunk size and the overlap between consecutive chunks.
type Window struct {
	Size    int
	Overlap int
}

// DefaultWindow returns the default 800/120 window.
func DefaultWindow() Window {
	return Window{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate checks that 0 <= overlap < size.
func (w Window) Validate() error {
	if w.Size <= 0 {
		return fmt.Errorf("chunker: size must be positive, got %d", w.Size)
	}
	if w.Overlap < 0 {
		return fmt.Errorf("chunker: overlap must not be negative, got %d", w.Overlap)
	}
	if w.Overlap >= w.Size {
		return errors.New("chunker: overlap must be smaller than size")
	}
	return nil
}

// Step is the distance between the starts of consecutive chunks.
func (w Window) Step() int { return w.Size - w.Overlap }

// Span is one chunk of text with its rune offset in the input.
type Span struct {
	Text   string
	Offset int
}

// Spans yields the windows of text in order. Chunk n starts at n*Step() and
// holds at most Size runes; the sequence ends with the first chunk that
// reaches the end of the input. The sequence can be ranged over repeatedly.
// An invalid window yields nothing.
func (w Window) Spans(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		if text == "" || w.Validate() != nil {
			return
		}
		runes := []rune(text)
		for start := 0; ; start += w.Step() {
			end := min(start+w.Size, len(runes))
			if !yield(Span{Text: string(runes[start:end]), Offset: start}) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}
}

// Split returns all windows of text.
func (w Window) Split(text string) []Span {
	return slices.Collect(w.Spans(text))
}

// Reassemble joins spans produced by Split, dropping the overlap carried by
// every chunk after the first. It returns the source text.
func Reassemble(spans []Span, overlap int) string {
	var b strings.Builder
	for i, s := range spans {
		if i == 0 {
			b.WriteString(s.Text)
			continue
		}
		r := []rune(s.Text)
		if overlap < len(r) {
			b.WriteString(string(r[overlap:]))
		}
	}
	return b.String()
}

// ChunkDocuments splits every document and numbers the chunks sequentially
// across documents. Documents with no text contribute nothing.
func ChunkDocuments(docs []domain.Document, w Window) []domain.Chunk {
	var out []domain.Chunk
	for _, d := range docs {
		for s := range w.Spans(d.Text) {
			out = append(out, domain.Chunk{
				ID:     len(out),
				Source: d.Source,
				Text:   s.Text,
				Offset: s.Offset,
			})
		}
	}
	return out
}
