package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/rag"
)

type fakeAsker struct {
	mu       sync.Mutex
	requests []rag.QueryRequest
	err      error
}

func (f *fakeAsker) Query(_ context.Context, req rag.QueryRequest) (*rag.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &rag.QueryResponse{
		Query:          req.Query,
		Answer:         "Boats return with the afternoon tide.",
		ProcessingTime: 0.42,
		ModelUsed:      "test-model",
		RetrievedChunks: []rag.RetrievedChunk{{
			ChunkID:         "harbor_chunk_0",
			DocumentID:      "harbor",
			SimilarityScore: 0.81,
			Metadata:        map[string]string{"filename": "harbor.txt"},
		}},
	}, nil
}

func sized(m Model) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

// send types text, presses enter and runs the resulting commands, feeding
// any answer back into the model.
func send(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if cmd == nil {
		return m
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		batch = tea.BatchMsg{func() tea.Msg { return msg }}
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if answer, ok := c().(answerMsg); ok {
			updated, _ = m.Update(answer)
			m = updated.(Model)
		}
	}
	return m
}

func TestNewModel(t *testing.T) {
	m := NewModel(&fakeAsker{}, 3, time.Second)
	assert.Equal(t, 3, m.topK)
	assert.False(t, m.pending)
	assert.NotNil(t, m.Init())
	assert.Equal(t, "Loading...", m.View())
}

func TestModel_AsksAndRendersAnswer(t *testing.T) {
	asker := &fakeAsker{}
	m := sized(NewModel(asker, 3, time.Second))

	m = send(t, m, "When do the boats return?")

	require.Len(t, asker.requests, 1)
	assert.Equal(t, "When do the boats return?", asker.requests[0].Query)
	assert.Equal(t, 3, asker.requests[0].TopK)
	assert.False(t, m.pending)
	require.Len(t, m.turns, 1)
	assert.Equal(t, []float64{0.42}, m.latencies)
	assert.Contains(t, m.status, "test-model")
	assert.Empty(t, m.input.Value())

	transcript := m.renderTranscript()
	assert.Contains(t, transcript, "When do the boats return?")
	assert.Contains(t, transcript, "afternoon tide")
	assert.Contains(t, transcript, "harbor.txt")

	view := m.View()
	assert.Contains(t, view, "ragd chat")
	assert.Contains(t, view, "avg 0.42s")
}

func TestModel_ShowsErrors(t *testing.T) {
	m := sized(NewModel(&fakeAsker{err: errors.New("service unavailable")}, 3, time.Second))
	m = send(t, m, "anything")

	require.Len(t, m.turns, 1)
	assert.Empty(t, m.latencies)
	assert.Contains(t, m.status, "service unavailable")
	assert.Contains(t, m.renderTranscript(), "Error: service unavailable")
}

func TestModel_IgnoresBlankInput(t *testing.T) {
	asker := &fakeAsker{}
	m := sized(NewModel(asker, 3, time.Second))
	m = send(t, m, "   ")
	assert.Empty(t, asker.requests)
	assert.Empty(t, m.turns)
}

func TestModel_Commands(t *testing.T) {
	asker := &fakeAsker{}
	m := sized(NewModel(asker, 3, time.Second))

	m = send(t, m, "/topk 7")
	assert.Equal(t, 7, m.topK)

	m = send(t, m, "/topk 99")
	assert.Equal(t, 7, m.topK)
	assert.Contains(t, m.status, "between 1 and 20")

	m = send(t, m, "/doc harbor menu")
	assert.Equal(t, []string{"harbor", "menu"}, m.documents)
	assert.Contains(t, m.View(), "2 document(s)")

	m = send(t, m, "question")
	require.Len(t, asker.requests, 1)
	assert.Equal(t, 7, asker.requests[0].TopK)
	assert.Equal(t, []string{"harbor", "menu"}, asker.requests[0].FilterDocuments)

	m = send(t, m, "/doc")
	assert.Empty(t, m.documents)

	m = send(t, m, "/clear")
	assert.Empty(t, m.turns)

	m = send(t, m, "/bogus")
	assert.Contains(t, m.status, "Unknown command")
	assert.Len(t, asker.requests, 1)
}

func TestModel_Quit(t *testing.T) {
	m := sized(NewModel(&fakeAsker{}, 3, time.Second))

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, updated.(Model).quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, "", updated.(Model).View())

	m.input.SetValue("/quit")
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
}

func TestAppendLatency_Window(t *testing.T) {
	var history []float64
	for i := 0; i < latencyWindow+5; i++ {
		history = appendLatency(history, float64(i))
	}
	require.Len(t, history, latencyWindow)
	assert.Equal(t, 5.0, history[0])
}

func TestRenderLatency_NoData(t *testing.T) {
	assert.Contains(t, renderLatency(nil), "no data")
}
