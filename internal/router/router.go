// Package router picks the document kind a question should be answered from.
package router

import (
	"context"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"

	"docsearch/internal/domain"
)

// Template lists the kinds and asks for a single-word classification.
const Template = `Given the user question below, classify it to route to the most relevant document type.

Available document types:
- pdf: General PDF documents (research papers, reports, manuals)
- docx: Word documents (articles, documentation)
- csv: Data files with structured information (sales data, records, tables)

User question: {question}

Respond with ONLY ONE WORD - either 'pdf', 'docx', or 'csv'. Nothing else.
Classification:`

// Router is stateless apart from its model handle and may be recreated freely.
type Router struct {
	model  domain.LanguageModel
	logger arbor.ILogger
}

func New(model domain.LanguageModel, logger arbor.ILogger) *Router {
	return &Router{model: model, logger: logger}
}

// Prompt renders the classification prompt.
func Prompt(question string) string {
	return strings.Replace(Template, "{question}", question, 1)
}

// Route classifies question among the available kinds. A model error or an
// answer naming no available kind falls back to the first available kind in
// domain.Kinds order. ok is false only when nothing is available.
func (r *Router) Route(ctx context.Context, question string, available func(domain.Kind) bool) (kind domain.Kind, ok bool) {
	fallback, ok := Fallback(available)
	if !ok {
		return "", false
	}

	raw, err := r.model.Complete(ctx, Prompt(question))
	if err != nil {
		r.logger.Warn().Err(err).Str("fallback", string(fallback)).Msg("Router model failed, using fallback kind")
		return fallback, true
	}
	label := Normalize(raw)
	if k, found := domain.ParseKind(label); found && available(k) {
		r.logger.Debug().Str("kind", string(k)).Msg("Question routed")
		return k, true
	}
	r.logger.Warn().
		Err(domain.ErrClassificationMiss).
		Str("output", label).
		Str("fallback", string(fallback)).
		Msg("Router output names no available kind, using fallback")
	return fallback, true
}

// Fallback returns the first available kind in domain.Kinds order.
func Fallback(available func(domain.Kind) bool) (domain.Kind, bool) {
	for _, k := range domain.Kinds {
		if available(k) {
			return k, true
		}
	}
	return "", false
}

// Normalize trims, lowercases and strips surrounding quotes and punctuation.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
