package tfidf

import (
	"errors"
	"math"
	"sort"
	"strings"

	"docsearch/internal/analysis"
	"docsearch/internal/domain"
)

// DefaultMaxFeatures bounds the vocabulary size.
const DefaultMaxFeatures = 1000

// Embedder implements a TF-IDF vectorizer over unigram and bigram features.
// It builds a bounded vocabulary from the corpus and computes IDF values.
// A prepared Embedder is read-only; refitting means building a new one.
type Embedder struct {
	vocabulary  map[string]int
	idf         []float64
	dimension   int
	prepared    bool
	maxFeatures int
	analyzer    *analysis.Analyzer
}

// NewEmbedder creates an unprepared TF-IDF embedder. maxFeatures <= 0 means
// DefaultMaxFeatures.
func NewEmbedder(a *analysis.Analyzer, maxFeatures int) *Embedder {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &Embedder{
		vocabulary:  make(map[string]int),
		maxFeatures: maxFeatures,
		analyzer:    a,
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return domain.ErrEmptyCorpus
	}
	// Document and corpus frequencies per feature
	df := make(map[string]int)
	total := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, f := range e.features(text) {
			total[f]++
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			df[f]++
		}
	}
	if len(df) == 0 {
		return errors.New("no tokens found in corpus")
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	// Keep the most frequent features, ties by term order
	if len(terms) > e.maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if total[terms[i]] != total[terms[j]] {
				return total[terms[i]] > total[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:e.maxFeatures]
	}
	// Create stable ordering for vocabulary
	sort.Strings(terms)
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	N := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Vocabulary returns the fitted features in index order.
func (e *Embedder) Vocabulary() []string {
	out := make([]string, e.dimension)
	for term, idx := range e.vocabulary {
		out[idx] = term
	}
	return out
}

// Embed computes the TF-IDF embedding for the given text. Features outside
// the fitted vocabulary contribute nothing.
func (e *Embedder) Embed(text string) ([]float64, error) {
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float64, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, f := range e.features(text) {
		if idx, ok := e.vocabulary[f]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		tfv := float64(count) / float64(total)
		vec[idx] = tfv * e.idf[idx]
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// features returns unigrams followed by adjacent bigrams of the stop-word-free terms.
func (e *Embedder) features(text string) []string {
	terms := e.analyzer.Terms(text)
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(terms)-1)
	out = append(out, terms...)
	for i := 0; i+1 < len(terms); i++ {
		out = append(out, strings.Join(terms[i:i+2], " "))
	}
	return out
}
