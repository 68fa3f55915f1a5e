package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docsearch/internal/analysis"
	"docsearch/internal/domain"
)

// Port is the TUI-facing subset of the corpus manager.
type Port interface {
	Query(ctx context.Context, question string) domain.QueryResult
	Retrieve(kind domain.Kind, question string) ([]domain.SearchResult, error)
	DocumentCounts() map[domain.Kind]int
}

// answerMsg carries a finished query back into Update.
type answerMsg struct {
	question string
	result   domain.QueryResult
	sources  []domain.SearchResult
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service  Port
	analyzer *analysis.Analyzer
	input    textinput.Model
	viewport viewport.Model
	answer   domain.QueryResult
	sources  []domain.SearchResult
	summary  string
	status   string
	cursor   int
	ready    bool
	busy     bool
	question string
}

// New creates a new TUI model instance. summary is shown under the header.
func New(service Port, a *analysis.Analyzer, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		analyzer: a,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Ask about your documents.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.busy = false
		m.answer = msg.result
		m.sources = msg.sources
		m.cursor = 0
		m.question = msg.question
		if msg.result.Success {
			m.status = fmt.Sprintf("Answered from %s documents", msg.result.Kind)
		} else {
			m.status = "Error: " + msg.result.Error
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Thinking about %q...", q)
				m.input.SetValue("")
				return m, m.ask(q)
			}
		case "down":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the query off the UI goroutine.
func (m Model) ask(question string) tea.Cmd {
	svc := m.service
	return func() tea.Msg {
		res := svc.Query(context.Background(), question)
		msg := answerMsg{question: question, result: res}
		if res.Success {
			msg.sources, _ = svc.Retrieve(res.Kind, question)
		}
		return msg
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Search  " + countsLine(m.service.DocumentCounts()))
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if m.question == "" {
		return "No answers yet."
	}
	if !m.answer.Success {
		return m.answer.Error
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.answer.Answer))
	if len(m.sources) == 0 {
		return b.String()
	}
	r := m.sources[m.cursor]
	fmt.Fprintf(&b, "\n\nSource %d/%d  %s  score=%.3f\n\n",
		m.cursor+1, len(m.sources), sourceLabel(r.Unit.Metadata), r.Score)
	b.WriteString(highlightBestSentence(m.analyzer, r.Unit.Content, m.question))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sentenceRe     = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
)

func countsLine(counts map[domain.Kind]int) string {
	parts := make([]string, 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		parts = append(parts, fmt.Sprintf("%s:%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func sourceLabel(md domain.Metadata) string {
	label := md.SourceName
	if md.Position != nil {
		unit := "chunk"
		switch md.Kind {
		case domain.KindPDF:
			unit = "page"
		case domain.KindCSV:
			unit = "row"
		}
		label += fmt.Sprintf(" %s %d", unit, *md.Position)
	}
	return label
}

// highlightBestSentence renders text with the sentence sharing the most
// analysed terms with query emphasised. Ties keep the earliest sentence.
func highlightBestSentence(a *analysis.Analyzer, text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	qTerms := a.TermSet(query)
	if len(qTerms) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := -1, 0
	for i, s := range sentences {
		if score := overlap(qTerms, a.TermSet(s)); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	if bestIdx >= 0 {
		sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	}
	return strings.Join(sentences, " ")
}

func overlap(query, sentence map[string]struct{}) int {
	n := 0
	for t := range sentence {
		if _, ok := query[t]; ok {
			n++
		}
	}
	return n
}
