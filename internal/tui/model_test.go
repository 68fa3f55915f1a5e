package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/analysis"
	"docsearch/internal/domain"
)

type stubPort struct {
	result  domain.QueryResult
	sources []domain.SearchResult
	asked   []string
}

func (s *stubPort) Query(_ context.Context, q string) domain.QueryResult {
	s.asked = append(s.asked, q)
	return s.result
}

func (s *stubPort) Retrieve(domain.Kind, string) ([]domain.SearchResult, error) {
	return s.sources, nil
}

func (s *stubPort) DocumentCounts() map[domain.Kind]int {
	return map[domain.Kind]int{domain.KindCSV: 2}
}

func TestHighlightBestSentence(t *testing.T) {
	a := analysis.MustNew()
	text := "Cats sleep a lot. Revenue grew in the north region. Dogs bark."

	out := highlightBestSentence(a, text, "How did revenue grow in the north?")

	assert.Contains(t, out, highlightStyle.Render("Revenue grew in the north region."))
	assert.Contains(t, out, "Cats sleep a lot.")
	assert.Contains(t, out, "Dogs bark.")
}

func TestHighlightWithoutOverlapLeavesTextPlain(t *testing.T) {
	a := analysis.MustNew()

	assert.Equal(t, "One. Two.", highlightBestSentence(a, "One.\nTwo.", "unrelated"))
	assert.Equal(t, "One. Two.", highlightBestSentence(a, "One. Two.", "the"))
	assert.Equal(t, "  ", highlightBestSentence(a, "  ", "anything"))
}

func TestCountsLineUsesFixedKindOrder(t *testing.T) {
	line := countsLine(map[domain.Kind]int{domain.KindCSV: 3, domain.KindPDF: 1})
	assert.Equal(t, "pdf:1 docx:0 csv:3", line)
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "r.pdf page 4", sourceLabel(domain.Metadata{Kind: domain.KindPDF, SourceName: "r.pdf", Position: domain.Pos(4)}))
	assert.Equal(t, "p.csv row 0", sourceLabel(domain.Metadata{Kind: domain.KindCSV, SourceName: "p.csv", Position: domain.Pos(0)}))
	assert.Equal(t, "n.docx chunk 2", sourceLabel(domain.Metadata{Kind: domain.KindDOCX, SourceName: "n.docx", Position: domain.Pos(2)}))
	assert.Equal(t, "n.docx", sourceLabel(domain.Metadata{Kind: domain.KindDOCX, SourceName: "n.docx"}))
}

func TestEnterAsksAndRendersAnswer(t *testing.T) {
	port := &stubPort{
		result: domain.QueryResult{Success: true, Answer: "Alice is 30.", Kind: domain.KindCSV, Question: "who is 30"},
		sources: []domain.SearchResult{
			{Unit: domain.TextUnit{Content: "name: Alice\nage: 30", Metadata: domain.Metadata{Kind: domain.KindCSV, SourceName: "p.csv", Position: domain.Pos(0)}}, Score: 0.8},
			{Unit: domain.TextUnit{Content: "name: Bob\nage: 25", Metadata: domain.Metadata{Kind: domain.KindCSV, SourceName: "p.csv", Position: domain.Pos(1)}}, Score: 0.1},
		},
	}
	m := New(port, analysis.MustNew(), "")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	m.input.SetValue("who is 30")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	next, _ = m.Update(cmd())
	m = next.(Model)

	assert.Equal(t, []string{"who is 30"}, port.asked)
	assert.False(t, m.busy)
	assert.Equal(t, "Answered from csv documents", m.status)
	assert.Len(t, m.sources, 2)
	assert.Contains(t, m.renderCurrent(), "Source 1/2  p.csv row 0")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrent(), "Source 2/2  p.csv row 1")
}

func TestFailedQueryShowsError(t *testing.T) {
	port := &stubPort{result: domain.QueryResult{Success: false, Error: domain.NotInitializedMessage}}
	m := New(port, analysis.MustNew(), "")

	next, _ := m.Update(answerMsg{question: "q", result: port.result})
	m = next.(Model)

	assert.Equal(t, "Error: "+domain.NotInitializedMessage, m.status)
	assert.Equal(t, domain.NotInitializedMessage, m.renderCurrent())
	assert.Empty(t, m.sources)
}
