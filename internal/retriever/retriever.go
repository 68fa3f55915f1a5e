// Package retriever builds the per-kind lexical index: a TF-IDF model fitted
// over a corpus plus the unit vectors held in an in-memory store.
package retriever

import (
	"fmt"

	"docsearch/internal/analysis"
	"docsearch/internal/domain"
	"docsearch/internal/embedding/tfidf"
	"docsearch/internal/vectorstore"
	"docsearch/internal/vectorstore/memory"
)

// Default retrieval depth per kind. Tabular rows are short and individually
// less informative, so more of them are pulled in.
const (
	DefaultTabularK = 10
	DefaultProseK   = 5
)

// Options control index construction.
type Options struct {
	MaxFeatures int
	// TopK overrides the per-kind retrieval depth.
	TopK map[domain.Kind]int
}

// K returns the retrieval depth for kind.
func (o Options) K(kind domain.Kind) int {
	if k, ok := o.TopK[kind]; ok && k > 0 {
		return k
	}
	if kind == domain.KindCSV {
		return DefaultTabularK
	}
	return DefaultProseK
}

// Index is an immutable lexical index over one corpus snapshot. Row i of the
// store is unit i of the corpus it was built from.
type Index struct {
	kind     domain.Kind
	k        int
	embedder domain.Embedder
	store    vectorstore.Storage
	size     int
}

// Build fits a new index over units. It never modifies units.
func Build(a *analysis.Analyzer, kind domain.Kind, units []domain.TextUnit, opts Options) (*Index, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("build %s index: %w", kind, domain.ErrEmptyCorpus)
	}
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Content
	}
	emb := tfidf.NewEmbedder(a, opts.MaxFeatures)
	if err := emb.Prepare(texts); err != nil {
		return nil, fmt.Errorf("build %s index: %w", kind, err)
	}
	store := memory.NewStorage()
	if err := store.Init(emb.Dimension()); err != nil {
		return nil, fmt.Errorf("build %s index: %w", kind, err)
	}
	vectors := make([][]float64, len(units))
	for i, text := range texts {
		vec, err := emb.Embed(text)
		if err != nil {
			return nil, fmt.Errorf("build %s index: %w", kind, err)
		}
		vectors[i] = vec
	}
	// Store a private copy so later corpus appends never alias the index rows.
	snapshot := append([]domain.TextUnit(nil), units...)
	if err := store.Upsert(snapshot, vectors); err != nil {
		return nil, fmt.Errorf("build %s index: %w", kind, err)
	}
	return &Index{
		kind:     kind,
		k:        opts.K(kind),
		embedder: emb,
		store:    store,
		size:     len(snapshot),
	}, nil
}

// Kind returns the kind this index serves.
func (ix *Index) Kind() domain.Kind { return ix.kind }

// K returns the default retrieval depth.
func (ix *Index) K() int { return ix.k }

// Len returns the number of indexed units.
func (ix *Index) Len() int { return ix.size }

// Dimension returns the fitted vocabulary size.
func (ix *Index) Dimension() int { return ix.embedder.Dimension() }

// Query returns the k units most similar to question, highest first.
// k <= 0 uses the index default.
func (ix *Index) Query(question string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = ix.k
	}
	vec, err := ix.embedder.Embed(question)
	if err != nil {
		return nil, err
	}
	return ix.store.Search(vec, k)
}
