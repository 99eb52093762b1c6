// Package tui implements the interactive chat console used by `ragctl chat`.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

const (
	sparklineWidth  = 24
	sparklineHeight = 2
	latencyWindow   = 24
	maxTopK         = 20
)

// Asker answers questions, usually over the REST API.
type Asker interface {
	Query(ctx context.Context, req rag.QueryRequest) (*rag.QueryResponse, error)
}

type turn struct {
	question string
	response *rag.QueryResponse
	err      error
}

type answerMsg struct {
	question string
	response *rag.QueryResponse
	err      error
}

// Model is the chat console state.
type Model struct {
	asker   Asker
	timeout time.Duration

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	turns     []turn
	latencies []float64
	topK      int
	documents []string
	pending   bool
	status    string
	ready     bool
	quitting  bool
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	sparklineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// NewModel creates a console that sends questions to asker. timeout bounds
// each question; zero means no limit.
func NewModel(asker Asker, topK int, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, or /help"
	ti.CharLimit = 10000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		asker:    asker,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		topK:     topK,
		status:   "Ready. Enter a question.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) ask(question string) tea.Cmd {
	req := rag.QueryRequest{Query: question, TopK: m.topK, FilterDocuments: m.documents}
	asker, timeout := m.asker, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		resp, err := asker.Query(ctx, req)
		return answerMsg{question: question, response: resp, err: err}
	}
}

// Update handles input, answers and window resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, inputFrame := inputBoxStyle.GetFrameSize()
		reserved := 1 + sparklineHeight + 1 + inputFrame + 1 + 1
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-reserved)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}

	case answerMsg:
		m.pending = false
		m.turns = append(m.turns, turn(msg))
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.latencies = appendLatency(m.latencies, msg.response.ProcessingTime)
			m.status = fmt.Sprintf("Answered in %.2fs by %s", msg.response.ProcessingTime, modelName(msg.response.ModelUsed))
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.pending {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	m.pending = true
	m.status = "Thinking..."
	return m, tea.Batch(m.ask(text), m.spinner.Tick)
}

// command handles console commands: /quit, /clear, /topk N, /doc [ID...], /help.
func (m Model) command(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/clear":
		m.turns = nil
		m.status = "Transcript cleared."
	case "/topk":
		if len(fields) != 2 {
			m.status = "Usage: /topk N"
			break
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > maxTopK {
			m.status = fmt.Sprintf("top_k must be between 1 and %d", maxTopK)
			break
		}
		m.topK = n
		m.status = fmt.Sprintf("top_k set to %d", n)
	case "/doc":
		m.documents = append([]string(nil), fields[1:]...)
		if len(m.documents) == 0 {
			m.status = "Searching all documents."
		} else {
			m.status = "Restricted to " + strings.Join(m.documents, ", ")
		}
	case "/help":
		m.status = "Commands: /topk N, /doc [ID...], /clear, /quit"
	default:
		m.status = "Unknown command " + fields[0] + " (try /help)"
	}
	m.refresh()
	return m, nil
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return dimStyle.Render("No questions yet.")
	}
	width := m.viewport.Width
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Q: " + t.question))
		b.WriteString("\n")
		if t.err != nil {
			b.WriteString(errorStyle.Render("Error: " + t.err.Error()))
			continue
		}
		b.WriteString(answerStyle.Width(width).Render(t.response.Answer))
		for _, c := range t.response.RetrievedChunks {
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render(fmt.Sprintf("  [%.3f] %s  %s", c.SimilarityScore, c.Metadata[vectorstore.KeyFilename], c.ChunkID)))
		}
	}
	return b.String()
}

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render("ragd chat") + dimStyle.Render(fmt.Sprintf("  top_k=%d  %s", m.topK, scope(m.documents)))
	status := m.status
	if m.pending {
		status = m.spinner.View() + " " + status
	}
	return strings.Join([]string{
		header,
		m.viewport.View(),
		renderLatency(m.latencies),
		inputBoxStyle.Render(m.input.View()),
		dimStyle.Render(status),
	}, "\n")
}

func scope(documents []string) string {
	if len(documents) == 0 {
		return "all documents"
	}
	return fmt.Sprintf("%d document(s)", len(documents))
}

func modelName(model string) string {
	if model == "" {
		return "unknown model"
	}
	return model
}

func appendLatency(history []float64, seconds float64) []float64 {
	history = append(history, seconds)
	if len(history) > latencyWindow {
		history = history[1:]
	}
	return history
}

// renderLatency draws answer latencies as a sparkline with the latest and
// mean values.
func renderLatency(latencies []float64) string {
	if len(latencies) == 0 {
		return dimStyle.Render(fmt.Sprintf("%-*s", sparklineWidth, "latency: no data"))
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	spark.PushAll(latencies)
	spark.Draw()

	var sum float64
	for _, v := range latencies {
		sum += v
	}
	last := latencies[len(latencies)-1]
	stats := dimStyle.Render(fmt.Sprintf(" last %.2fs  avg %.2fs", last, sum/float64(len(latencies))))
	return lipgloss.JoinHorizontal(lipgloss.Bottom, sparklineStyle.Render(spark.View()), stats)
}
