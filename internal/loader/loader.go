// Package loader turns files of each supported kind into text units.
package loader

import (
	"context"
	"fmt"

	"docsearch/internal/chunker"
	"docsearch/internal/domain"
)

// Options configure the built-in loaders.
type Options struct {
	// SentencesPerChunk and OverlapSentences size DOCX passages.
	SentencesPerChunk int
	OverlapSentences  int
}

// Registry maps each kind to its loader.
type Registry map[domain.Kind]domain.Loader

// NewRegistry returns the CSV, DOCX and PDF loaders.
func NewRegistry(opts Options) Registry {
	return Registry{
		domain.KindCSV:  NewCSVLoader(),
		domain.KindDOCX: NewDOCXLoader(chunker.NewSentenceChunker(opts.SentencesPerChunk, opts.OverlapSentences)),
		domain.KindPDF:  NewPDFLoader(),
	}
}

// Load dispatches to the loader for kind.
func (r Registry) Load(ctx context.Context, kind domain.Kind, path string) ([]domain.TextUnit, error) {
	l, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("no loader for %s: %w", kind, domain.ErrUnsupportedKind)
	}
	return l.Load(ctx, path)
}

// LoaderFunc adapts a function to domain.Loader.
type LoaderFunc func(ctx context.Context, path string) ([]domain.TextUnit, error)

func (f LoaderFunc) Load(ctx context.Context, path string) ([]domain.TextUnit, error) {
	return f(ctx, path)
}
