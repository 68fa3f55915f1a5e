// Package analysis turns raw text into normalised terms. It wraps the bleve
// analysis chain (unicode word segmentation, lowercasing, English stop words)
// so the retriever, the summarizer and the TUI all agree on what a term is.
package analysis

import (
	"strings"

	bleve "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// Analyzer produces lowercase word tokens with and without stop words.
// It holds no mutable state after construction and is safe for concurrent use.
type Analyzer struct {
	words bleve.Analyzer
	terms bleve.Analyzer
}

// New builds an analyzer using the English stop list plus any extra words.
func New(extraStopWords ...string) (*Analyzer, error) {
	stopWords := bleve.NewTokenMap()
	if err := stopWords.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, err
	}
	for _, w := range extraStopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			stopWords.AddToken(w)
		}
	}
	tokenizer := unicode.NewUnicodeTokenizer()
	lower := lowercase.NewLowerCaseFilter()
	return &Analyzer{
		words: &bleve.DefaultAnalyzer{
			Tokenizer:    tokenizer,
			TokenFilters: []bleve.TokenFilter{lower},
		},
		terms: &bleve.DefaultAnalyzer{
			Tokenizer:    tokenizer,
			TokenFilters: []bleve.TokenFilter{lower, stop.NewStopTokensFilter(stopWords)},
		},
	}, nil
}

// MustNew is New for the default stop list, which cannot fail to load.
func MustNew() *Analyzer {
	a, err := New()
	if err != nil {
		panic(err)
	}
	return a
}

// Words returns every lowercase word token in order.
func (a *Analyzer) Words(text string) []string {
	return collect(a.words.Analyze([]byte(text)))
}

// Terms returns lowercase word tokens in order with stop words removed.
func (a *Analyzer) Terms(text string) []string {
	return collect(a.terms.Analyze([]byte(text)))
}

// TermSet returns the distinct stop-word-free terms of text.
func (a *Analyzer) TermSet(text string) map[string]struct{} {
	terms := a.Terms(text)
	m := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		m[t] = struct{}{}
	}
	return m
}

func collect(stream bleve.TokenStream) []string {
	if len(stream) == 0 {
		return nil
	}
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(tok.Term))
	}
	return out
}
