package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragbot/internal/domain"
	"ragbot/internal/service"
	"ragbot/internal/textutil"
)

// Asker is the TUI-facing subset of the assistant.
type Asker interface {
	Ask(ctx context.Context, question string) (*service.Answer, error)
}

type answerMsg struct {
	question string
	answer   *service.Answer
	err      error
}

// Model is the Bubble Tea model for the operator console. The first page of
// the viewport is the answer; up and down page through the passages it used.
type Model struct {
	assistant Asker
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	answer    *service.Answer
	summary   string
	status    string
	cursor    int
	busy      bool
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance. timeout bounds each question.
func New(assistant Asker, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the policies and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		assistant: assistant,
		timeout:   timeout,
		input:     ti,
		viewport:  vp,
		spinner:   sp,
		summary:   summary,
		status:    "Ready. Type a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		ans, err := m.assistant.Ask(ctx, q)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderPage())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			m.status = fmt.Sprintf("Answer for %q (%d passages, up/down to browse)", msg.question, len(msg.answer.Results))
			m.answer = msg.answer
			m.cursor = 0
			m.lastQuery = msg.question
		}
		m.viewport.SetContent(m.renderPage())
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Thinking about %q", q)
				m.input.SetValue("")
				return m, tea.Batch(m.ask(q), m.spinner.Tick)
			}
		case "down":
			if n := m.pages(); n > 1 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderPage())
				return m, nil
			}
		case "up":
			if n := m.pages(); n > 1 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderPage())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current page.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Policy Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) pages() int {
	if m.answer == nil {
		return 0
	}
	return 1 + len(m.answer.Results)
}

func (m Model) renderPage() string {
	if m.answer == nil {
		return "No answer yet."
	}
	if m.cursor == 0 {
		return titleStyle.Render("Answer") + "\n\n" + m.answer.Text
	}
	r := m.answer.Results[m.cursor-1]
	return renderPassage(r, m.cursor, len(m.answer.Results), m.lastQuery)
}

func renderPassage(r domain.SearchResult, n, total int, query string) string {
	title := fmt.Sprintf("Passage %d/%d  distance=%.3f", n, total, r.Distance)
	origin := fmt.Sprintf("%s, page %d", r.Chunk.Source, r.Chunk.Page)
	body := highlightBestSentence(r.Chunk.Text, query)
	return titleStyle.Render(title) + "\n" + originStyle.Render(origin) + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	originStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := textutil.Tokenize(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range textutil.Tokenize(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
