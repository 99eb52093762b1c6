package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	"github.com/fyrsmithlabs/ragd/internal/history"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// fakeIndex returns scripted results and records the last query.
type fakeIndex struct {
	mu         sync.Mutex
	results    []vectorstore.Result
	docs       []vectorstore.DocumentSummary
	chunks     map[string][]vectorstore.Result
	queryErr   error
	lastK      int
	lastFilter *vectorstore.Filter
}

func (f *fakeIndex) Upsert(context.Context, []vectorstore.Record) error { return nil }

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int, filter *vectorstore.Filter) ([]vectorstore.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK, f.lastFilter = k, filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]vectorstore.Result(nil), f.results...), nil
}

func (f *fakeIndex) DeleteDocument(context.Context, string) (int, error) { return 0, nil }
func (f *fakeIndex) Count(context.Context) (int, error)                  { return len(f.results), nil }

func (f *fakeIndex) Chunks(_ context.Context, id string) ([]vectorstore.Result, error) {
	return f.chunks[id], nil
}

func (f *fakeIndex) Documents(context.Context) ([]vectorstore.DocumentSummary, error) {
	return f.docs, nil
}

func (f *fakeIndex) Reset(context.Context) error { return nil }
func (f *fakeIndex) Stats(context.Context) (vectorstore.Stats, error) {
	return vectorstore.Stats{Backend: "fake"}, nil
}
func (f *fakeIndex) Health(context.Context) error { return nil }
func (f *fakeIndex) Close() error                 { return nil }

func result(id, docID, filename, index, content string, sim float64) vectorstore.Result {
	return vectorstore.Result{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			vectorstore.KeyDocumentID: docID,
			vectorstore.KeyFilename:   filename,
			vectorstore.KeyChunkIndex: index,
		},
		Similarity: sim,
	}
}

// recorder is a scripted generator that keeps every request.
type recorder struct {
	mu       sync.Mutex
	requests []generation.Request
	answer   func(n int) (generation.Response, error)
}

func (r *recorder) generator() generation.Func {
	return func(ctx context.Context, req generation.Request) (generation.Response, error) {
		r.mu.Lock()
		r.requests = append(r.requests, req)
		n := len(r.requests)
		r.mu.Unlock()
		if r.answer != nil {
			return r.answer(n)
		}
		tokens := 42
		return generation.Response{Text: fmt.Sprintf("answer %d", n), Model: "test-model", TotalTokens: &tokens}, nil
	}
}

func (r *recorder) last() generation.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func fiveResults() []vectorstore.Result {
	return []vectorstore.Result{
		result("a_chunk_0", "a", "a.txt", "0", "alpha text", 0.9),
		result("a_chunk_1", "a", "a.txt", "1", "beta text", 0.85),
		result("b_chunk_0", "b", "b.md", "0", "gamma text", 0.8),
		result("b_chunk_1", "b", "b.md", "1", "delta text", 0.75),
		result("c_chunk_0", "c", "c.pdf", "0", "epsilon text", 0.7),
	}
}

func twoDocs() []vectorstore.DocumentSummary {
	return []vectorstore.DocumentSummary{{DocumentID: "a"}, {DocumentID: "b"}}
}

func newTestService(t *testing.T, idx vectorstore.Index, gen generation.Generator, opts ...Option) (*Service, *embeddings.HashProvider) {
	t.Helper()
	embedder := embeddings.NewHashProvider(16)
	s, err := NewService(idx, embedder, gen, opts...)
	require.NoError(t, err)
	return s, embedder
}

func threshold(v float64) *float64 { return &v }

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(nil, embeddings.NewHashProvider(4), nil)
	assert.Error(t, err)
	_, err = NewService(&fakeIndex{}, nil, nil)
	assert.Error(t, err)
}

func TestQuery_Validation(t *testing.T) {
	s, _ := newTestService(t, &fakeIndex{}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  QueryRequest
		want error
	}{
		{"empty", QueryRequest{Query: ""}, ErrEmptyQuery},
		{"whitespace", QueryRequest{Query: "  \n\t "}, ErrEmptyQuery},
		{"top_k too large", QueryRequest{Query: "q", TopK: 21}, ErrInvalidRequest},
		{"top_k negative", QueryRequest{Query: "q", TopK: -1}, ErrInvalidRequest},
		{"threshold above 1", QueryRequest{Query: "q", SimilarityThreshold: threshold(1.5)}, ErrInvalidRequest},
		{"threshold below 0", QueryRequest{Query: "q", SimilarityThreshold: threshold(-0.1)}, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Query(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuery_TopKTruncatesRankedCandidates(t *testing.T) {
	idx := &fakeIndex{results: fiveResults(), docs: twoDocs()}
	rec := &recorder{}
	s, _ := newTestService(t, idx, rec.generator())

	resp, err := s.Query(context.Background(), QueryRequest{Query: "  what is in the text?  ", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, "what is in the text?", resp.Query)
	require.Len(t, resp.RetrievedChunks, 3)
	scores := make([]float64, len(resp.RetrievedChunks))
	for i, c := range resp.RetrievedChunks {
		scores[i] = c.SimilarityScore
	}
	assert.True(t, sort.SliceIsSorted(scores, func(i, j int) bool { return scores[i] > scores[j] }), "scores %v", scores)
	assert.Equal(t, 20, idx.lastK)
	assert.Nil(t, idx.lastFilter)
	assert.Equal(t, "answer 1", resp.Answer)
	assert.Equal(t, "test-model", resp.ModelUsed)
	require.NotNil(t, resp.TotalTokens)
	assert.Equal(t, 42, *resp.TotalTokens)
	assert.Equal(t, []State{
		StateIntentCheck, StateRetrievalPath, StateContextAssembly,
		StateGeneration, StateHistoryAppend, StateDone,
	}, resp.Trace)
}

func TestQuery_DefaultTopK(t *testing.T) {
	s, _ := newTestService(t, &fakeIndex{results: fiveResults()}, (&recorder{}).generator())

	resp, err := s.Query(context.Background(), QueryRequest{Query: "text"})
	require.NoError(t, err)
	assert.Len(t, resp.RetrievedChunks, DefaultSettings().TopK)
}

func TestQuery_CandidateFloor(t *testing.T) {
	idx := &fakeIndex{results: []vectorstore.Result{
		result("a_chunk_0", "a", "a.txt", "0", "kept", 0.35),
		result("a_chunk_1", "a", "a.txt", "1", "dropped", 0.19),
	}}
	s, _ := newTestService(t, idx, (&recorder{}).generator())

	resp, err := s.Query(context.Background(), QueryRequest{Query: "anything", TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.RetrievedChunks, 1)
	assert.Equal(t, "a_chunk_0", resp.RetrievedChunks[0].ChunkID)
}

func TestQuery_UserThresholdDoesNotPrune(t *testing.T) {
	idx := &fakeIndex{results: []vectorstore.Result{
		result("a_chunk_0", "a", "a.txt", "0", "low but above floor", 0.3),
	}}
	s, _ := newTestService(t, idx, (&recorder{}).generator())

	resp, err := s.Query(context.Background(), QueryRequest{Query: "q", SimilarityThreshold: threshold(0.9)})
	require.NoError(t, err)
	assert.Len(t, resp.RetrievedChunks, 1)
}

func TestQuery_NoEvidenceStillAnswers(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestService(t, &fakeIndex{}, rec.generator())

	resp, err := s.Query(context.Background(), QueryRequest{Query: "unknown topic"})
	require.NoError(t, err)
	assert.Empty(t, resp.RetrievedChunks)
	assert.Equal(t, "answer 1", resp.Answer)
	assert.Contains(t, rec.last().User, "**Document Context:**\n\n\n**User Question:**")
}

func TestQuery_FilterDocumentsPassedToIndex(t *testing.T) {
	idx := &fakeIndex{results: fiveResults()}
	s, _ := newTestService(t, idx, (&recorder{}).generator())

	_, err := s.Query(context.Background(), QueryRequest{Query: "text", FilterDocuments: []string{"a", "c"}})
	require.NoError(t, err)
	require.NotNil(t, idx.lastFilter)
	assert.Equal(t, []string{"a", "c"}, idx.lastFilter.DocumentIDs)
}

func TestQuery_ContextFormat(t *testing.T) {
	idx := &fakeIndex{results: []vectorstore.Result{
		result("a_chunk_2", "a", "report.pdf", "2", "first fragment", 0.9),
		result("b_chunk_0", "b", "", "0", "second fragment", 0.5),
	}}
	rec := &recorder{}
	s, _ := newTestService(t, idx, rec.generator())

	_, err := s.Query(context.Background(), QueryRequest{Query: "zzz", TopK: 2})
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, systemPrompt, req.System)
	assert.Contains(t, req.User, "Fragment 1 (Source: report.pdf, Chunk: 2):\nfirst fragment\n\n---\n\nFragment 2:\nsecond fragment")
	assert.Contains(t, req.User, "**Conversation History:**\n"+noHistory)
	assert.True(t, strings.HasSuffix(req.User, "**User Question:**\nzzz\n\n**Answer:**"))
	assert.Equal(t, 3000, req.MaxTokens)
	assert.Equal(t, 0.0, req.Temperature)
}

func TestQuery_HistoryInjection(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestService(t, &fakeIndex{results: fiveResults()}, rec.generator())
	ctx := context.Background()

	_, err := s.Query(ctx, QueryRequest{Query: "first question"})
	require.NoError(t, err)
	_, err = s.Query(ctx, QueryRequest{Query: "and the other one?"})
	require.NoError(t, err)

	assert.Contains(t, rec.last().User, "User: first question\nAssistant: answer 1")
	require.Equal(t, 2, s.History().Len())
	entries := s.RecentHistory(10)
	assert.Equal(t, "first question", entries[0].Query)
	assert.Equal(t, "and the other one?", entries[1].Query)
	assert.Equal(t, 3, entries[1].NumRetrievedChunks)
	assert.Equal(t, "test-model", entries[1].ModelUsed)
}

func TestQuery_HistoryLimitedToLastTurns(t *testing.T) {
	rec := &recorder{}
	settings := DefaultSettings()
	settings.HistoryTurns = 2
	s, _ := newTestService(t, &fakeIndex{}, rec.generator(), WithSettings(settings))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := s.Query(ctx, QueryRequest{Query: fmt.Sprintf("question %d", i)})
		require.NoError(t, err)
	}
	_, err := s.Query(ctx, QueryRequest{Query: "final"})
	require.NoError(t, err)

	user := rec.last().User
	assert.NotContains(t, user, "User: question 1")
	assert.Contains(t, user, "User: question 2\nAssistant: answer 2\n\n---\n\nUser: question 3\nAssistant: answer 3")
}

func TestQuery_SummaryPathSingleDocument(t *testing.T) {
	idx := &fakeIndex{
		docs: []vectorstore.DocumentSummary{{DocumentID: "only"}},
		chunks: map[string][]vectorstore.Result{
			"only": {
				result("only_chunk_0", "only", "x.txt", "0", "part one", 0),
				result("only_chunk_1", "only", "x.txt", "1", "part two", 0),
			},
		},
	}
	rec := &recorder{}
	s, embedder := newTestService(t, idx, rec.generator())

	resp, err := s.Query(context.Background(), QueryRequest{Query: "Dame un resumen"})
	require.NoError(t, err)

	req := rec.last()
	assert.Contains(t, req.User, "part one\npart two")
	assert.Contains(t, req.User, noSummaryHistory)
	assert.Contains(t, req.User, summaryInstruction)
	assert.Equal(t, 500, req.MaxTokens)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Empty(t, resp.RetrievedChunks)
	assert.Equal(t, 0, embedder.Calls())
	assert.Equal(t, []State{
		StateIntentCheck, StateSummaryPath, StateContextAssembly,
		StateGeneration, StateHistoryAppend, StateDone,
	}, resp.Trace)
	assert.Equal(t, 1, s.History().Len())
	assert.Equal(t, int64(1), s.Stats().SummaryQueries)
}

func TestQuery_SummaryKeywordWithSeveralDocumentsRetrieves(t *testing.T) {
	idx := &fakeIndex{results: fiveResults(), docs: twoDocs()}
	s, embedder := newTestService(t, idx, (&recorder{}).generator())

	resp, err := s.Query(context.Background(), QueryRequest{Query: "resumen"})
	require.NoError(t, err)
	assert.Contains(t, resp.Trace, StateRetrievalPath)
	assert.NotContains(t, resp.Trace, StateSummaryPath)
	assert.Equal(t, 1, embedder.Calls())
	assert.Len(t, resp.RetrievedChunks, 3)
}

func TestQuery_NoGeneratorDegrades(t *testing.T) {
	s, _ := newTestService(t, &fakeIndex{results: fiveResults()}, nil)

	resp, err := s.Query(context.Background(), QueryRequest{Query: "text"})
	require.NoError(t, err)
	assert.Equal(t, noLLMAnswer, resp.Answer)
	assert.Equal(t, "none", resp.ModelUsed)
	require.NotNil(t, resp.TotalTokens)
	assert.Equal(t, 0, *resp.TotalTokens)
	assert.Len(t, resp.RetrievedChunks, 3)
	assert.Equal(t, 0, s.History().Len())
	assert.NotContains(t, resp.Trace, StateHistoryAppend)
	assert.Equal(t, int64(1), s.Stats().DegradedAnswers)
}

func TestQuery_GenerationErrorDegrades(t *testing.T) {
	rec := &recorder{answer: func(int) (generation.Response, error) {
		return generation.Response{}, fmt.Errorf("%w: upstream 500", generation.ErrGenerationFailure)
	}}
	logger := logging.NewTestLogger()
	s, _ := newTestService(t, &fakeIndex{results: fiveResults()}, rec.generator(), WithLogger(logger.Logger))

	resp, err := s.Query(context.Background(), QueryRequest{Query: "text"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Answer, "Error generating answer: "))
	assert.Contains(t, resp.Answer, "upstream 500")
	assert.Equal(t, "error", resp.ModelUsed)
	require.NotNil(t, resp.TotalTokens)
	assert.Equal(t, 0, *resp.TotalTokens)
	assert.Equal(t, 0, s.History().Len())
	logger.AssertLogged(t, zapcore.ErrorLevel, "error generating answer")
}

func TestQuery_PipelineFailures(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		s, embedder := newTestService(t, &fakeIndex{}, (&recorder{}).generator())
		embedder.FailWith(errors.New("no key"))

		_, err := s.Query(context.Background(), QueryRequest{Query: "text"})
		var perr *PipelineError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, StateEmbeddingFailed, perr.State)
		assert.ErrorIs(t, err, embeddings.ErrEmbeddingUnavailable)
		assert.Equal(t, 0, s.History().Len())
	})

	t.Run("retrieval", func(t *testing.T) {
		idx := &fakeIndex{queryErr: vectorstore.ErrUnavailable}
		s, _ := newTestService(t, idx, (&recorder{}).generator())

		_, err := s.Query(context.Background(), QueryRequest{Query: "text"})
		var perr *PipelineError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, StateRetrievalFailed, perr.State)
		assert.ErrorIs(t, err, vectorstore.ErrUnavailable)
	})

	t.Run("canceled during generation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{answer: func(int) (generation.Response, error) {
			cancel()
			return generation.Response{}, errors.New("request aborted")
		}}
		s, _ := newTestService(t, &fakeIndex{results: fiveResults()}, rec.generator())

		_, err := s.Query(ctx, QueryRequest{Query: "text"})
		var perr *PipelineError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, StateGenerationFailed, perr.State)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, s.History().Len())
	})

	t.Run("canceled after successful generation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{answer: func(int) (generation.Response, error) {
			cancel()
			return generation.Response{Text: "late", Model: "m"}, nil
		}}
		s, _ := newTestService(t, &fakeIndex{}, rec.generator())

		_, err := s.Query(ctx, QueryRequest{Query: "text"})
		var perr *PipelineError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, StateGenerationFailed, perr.State)
		assert.Equal(t, 0, s.History().Len())
	})
}

func TestQuery_SharedHistoryStore(t *testing.T) {
	store := history.NewStore(2)
	s, _ := newTestService(t, &fakeIndex{}, (&recorder{}).generator(), WithHistory(store))
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three"} {
		_, err := s.Query(ctx, QueryRequest{Query: q})
		require.NoError(t, err)
	}
	entries := store.Recent(10)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Query)
	assert.Equal(t, "three", entries[1].Query)
}

func TestQuery_ChromemEndToEnd(t *testing.T) {
	ctx := context.Background()
	embedder := embeddings.NewHashProvider(64)
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Collection: "rag_test", Dimension: 64}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	texts := []string{
		"solar panel efficiency report part one",
		"solar panel efficiency report part two",
		"solar panel efficiency report part three",
		"solar panel efficiency report part four",
		"solar panel efficiency report part five",
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	records := make([]vectorstore.Record, len(texts))
	for i, text := range texts {
		records[i] = vectorstore.Record{
			ID:        fmt.Sprintf("doc_chunk_%d", i),
			Content:   text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				vectorstore.KeyDocumentID:      "doc",
				vectorstore.KeyChunkIndex:      fmt.Sprint(i),
				vectorstore.KeyFilename:        "solar.txt",
				vectorstore.KeyUploadTimestamp: "2024-01-01T00:00:00Z",
			},
		}
	}
	require.NoError(t, idx.Upsert(ctx, records))

	s, err := NewService(idx, embedder, (&recorder{}).generator())
	require.NoError(t, err)

	resp, err := s.Query(ctx, QueryRequest{Query: "solar panel efficiency", TopK: 3})
	require.NoError(t, err)
	require.Len(t, resp.RetrievedChunks, 3)
	for i, c := range resp.RetrievedChunks {
		assert.Equal(t, "doc", c.DocumentID)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.RetrievedChunks[i-1].SimilarityScore, c.SimilarityScore)
		}
	}

	summary, err := s.Summarize(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalChunks)
	assert.Equal(t, len(strings.Join(texts, "\n")), summary.TotalContentLength)
}

func TestSummarize(t *testing.T) {
	idx := &fakeIndex{chunks: map[string][]vectorstore.Result{
		"d": {result("d_chunk_0", "d", "d.txt", "0", "héllo", 0), result("d_chunk_1", "d", "d.txt", "1", "world", 0)},
	}}
	rec := &recorder{}
	s, _ := newTestService(t, idx, rec.generator())
	ctx := context.Background()

	summary, err := s.Summarize(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, "d", summary.DocumentID)
	assert.Equal(t, "answer 1", summary.Summary)
	assert.Equal(t, 2, summary.TotalChunks)
	assert.Equal(t, 11, summary.TotalContentLength)
	assert.Equal(t, "test-model", summary.ModelUsed)
	assert.Contains(t, rec.last().User, "héllo\nworld")
	assert.Equal(t, 0, s.History().Len())

	_, err = s.Summarize(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSimilarQueries(t *testing.T) {
	s, _ := newTestService(t, &fakeIndex{}, (&recorder{}).generator())
	ctx := context.Background()
	for _, q := range []string{"solar power cost", "wind power", "unrelated"} {
		_, err := s.Query(ctx, QueryRequest{Query: q})
		require.NoError(t, err)
	}

	matches := s.SimilarQueries("solar power", 0)
	require.Len(t, matches, 2)
	assert.Equal(t, "solar power cost", matches[0].Entry.Query)

	assert.Len(t, s.SimilarQueries("power", -3), 1)
	assert.Len(t, s.SimilarQueries("power", 100), 2)
}

func TestClearHistoryAndStats(t *testing.T) {
	s, _ := newTestService(t, &fakeIndex{}, (&recorder{}).generator())
	ctx := context.Background()
	_, err := s.Query(ctx, QueryRequest{Query: "question"})
	require.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, int64(1), st.TotalQueries)
	assert.Equal(t, 1, st.HistorySize)
	assert.Equal(t, history.DefaultCapacity, st.HistoryCapacity)
	assert.Equal(t, "hash", st.EmbeddingModel)
	assert.Equal(t, 16, st.EmbeddingDimension)
	assert.Equal(t, "func", st.LLMModel)
	assert.True(t, st.LLMAvailable)
	assert.Equal(t, DefaultSettings(), st.Settings)

	s.ClearHistory(ctx)
	assert.Equal(t, 0, s.Stats().HistorySize)

	noLLM, _ := newTestService(t, &fakeIndex{}, nil)
	assert.Equal(t, "none", noLLM.Stats().LLMModel)
	assert.False(t, noLLM.LLMAvailable())
}

func TestEmbedText(t *testing.T) {
	s, _ := newTestService(t, &fakeIndex{}, nil)

	res, err := s.EmbedText(context.Background(), "  Hello   World a ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, 16, res.Dimension)
	assert.Len(t, res.Embedding, 16)
	assert.Equal(t, "hash", res.Model)

	_, err = s.EmbedText(context.Background(), " a ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestIsSummaryQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"Dame un RESUMEN del documento", true},
		{"¿De qué se trata?", true},
		{"Please summarize this", true},
		{"what is the main topic", true},
		{"cuál es la idea general", true},
		{"acerca de qué es este informe", true},
		{"what is this document about?", true},
		{"how much does it cost", false},
		{"¿cuánto cuesta?", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSummaryQuery(tt.query))
		})
	}
}
