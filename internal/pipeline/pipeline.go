// Package pipeline composes retrieval and answer synthesis for one kind.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"docsearch/internal/domain"
	"docsearch/internal/retriever"
)

// QATemplate asks the model to answer from the retrieved context only.
const QATemplate = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, say that you don't know.

Question: {question}

Context: {context}

Answer:`

// IndexFunc returns the kind's current index, or nil if it has none.
type IndexFunc func() *retriever.Index

// Pipeline answers questions against one kind. It holds no index snapshot:
// the index is looked up on every call so rebuilds are picked up.
type Pipeline struct {
	kind     domain.Kind
	index    IndexFunc
	model    domain.LanguageModel
	template string
}

func New(kind domain.Kind, index IndexFunc, model domain.LanguageModel) *Pipeline {
	return &Pipeline{kind: kind, index: index, model: model, template: QATemplate}
}

// Kind returns the kind the pipeline is bound to.
func (p *Pipeline) Kind() domain.Kind { return p.kind }

// Retrieve returns the top-k units for question from the current index.
func (p *Pipeline) Retrieve(question string) ([]domain.SearchResult, error) {
	ix := p.index()
	if ix == nil {
		return nil, fmt.Errorf("%s: %w", p.kind, domain.ErrNotInitialized)
	}
	return ix.Query(question, 0)
}

// Prompt renders the QA prompt for question over results.
func (p *Pipeline) Prompt(question string, results []domain.SearchResult) string {
	return strings.NewReplacer(
		"{question}", question,
		"{context}", FormatContext(results),
	).Replace(p.template)
}

// Answer retrieves, prompts the model and returns the trimmed completion.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	results, err := p.Retrieve(question)
	if err != nil {
		return "", err
	}
	out, err := p.model.Complete(ctx, p.Prompt(question, results))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// FormatContext joins unit contents with a blank line, in retrieval order.
func FormatContext(results []domain.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Unit.Content
	}
	return strings.Join(parts, "\n\n")
}
