package domain

import (
	"context"
	"path/filepath"
	"strings"
)

// Kind is the document category a file belongs to.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindCSV  Kind = "csv"
)

// Kinds lists every supported kind in routing fallback order.
var Kinds = []Kind{KindPDF, KindDOCX, KindCSV}

// ParseKind maps a lowercase token to a kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// KindFromPath resolves a kind from the file extension.
func KindFromPath(path string) (Kind, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if k, ok := ParseKind(ext); ok {
		return k, nil
	}
	return "", &UnsupportedKindError{Path: path, Ext: ext}
}

// Metadata is the provenance attached to a text unit.
type Metadata struct {
	Kind       Kind
	SourceName string
	// Position is the row, chunk or page number inside the source, if known.
	Position *int
}

// TextUnit is the smallest retrievable chunk of ingested content.
type TextUnit struct {
	Content  string
	Metadata Metadata
}

// Pos returns a pointer suitable for Metadata.Position.
func Pos(n int) *int { return &n }

// SearchResult is a retrieved unit with its cosine similarity.
type SearchResult struct {
	Unit  TextUnit
	Score float64
	// Row is the unit's index in its corpus.
	Row int
}

// QueryResult is the structured answer to a question. Failures are reported
// through Success and Error rather than a returned error.
type QueryResult struct {
	Success  bool   `json:"success"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     Kind   `json:"doc_type,omitempty"`
	Question string `json:"question,omitempty"`
}

// Loader parses one file of a given kind into text units.
type Loader interface {
	Load(ctx context.Context, path string) ([]TextUnit, error)
}

// LanguageModel turns a prompt into a text completion.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) ([]float64, error)
}

// Chunker splits a long text into smaller passages.
type Chunker interface {
	Chunk(text string) []string
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// CorpusService defines the operations exposed by the application core.
type CorpusService interface {
	IngestFile(ctx context.Context, path string) (bool, error)
	IngestDirectory(ctx context.Context, dir string) (map[Kind]int, error)
	Query(ctx context.Context, question string) QueryResult
	DocumentCounts() map[Kind]int
	TotalCount() int
}
