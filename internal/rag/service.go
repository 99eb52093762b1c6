package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	"github.com/fyrsmithlabs/ragd/internal/history"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ragd.rag")

const (
	pathSummary   = "summary"
	pathRetrieval = "retrieval"

	modelNone  = "none"
	modelError = "error"
)

// Service runs the query pipeline against shared collaborators. It is safe
// for concurrent use.
type Service struct {
	index     vectorstore.Index
	embedder  embeddings.Provider
	generator generation.Generator // nil when no LLM is configured
	reranker  reranker.Reranker
	history   *history.Store
	settings  Settings
	logger    *logging.Logger

	mu              sync.Mutex
	queries         int64
	summaryQueries  int64
	degraded        int64
	totalProcessing float64
}

// Option configures a Service.
type Option func(*Service)

// WithReranker replaces the default BlendedReranker.
func WithReranker(r reranker.Reranker) Option {
	return func(s *Service) { s.reranker = r }
}

// WithHistory shares an existing history store.
func WithHistory(h *history.Store) Option {
	return func(s *Service) { s.history = h }
}

// WithSettings overrides DefaultSettings.
func WithSettings(settings Settings) Option {
	return func(s *Service) { s.settings = settings }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. generator may be nil, in which case
// answers report that no LLM service is available.
func NewService(index vectorstore.Index, embedder embeddings.Provider, generator generation.Generator, opts ...Option) (*Service, error) {
	if index == nil {
		return nil, errors.New("rag: vector index is required")
	}
	if embedder == nil {
		return nil, errors.New("rag: embedding provider is required")
	}
	s := &Service{
		index:     index,
		embedder:  embedder,
		generator: generator,
		settings:  DefaultSettings(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = history.NewStore(history.DefaultCapacity)
	}
	if s.reranker == nil {
		s.reranker = reranker.NewBlendedReranker(reranker.WithLogger(s.logger.Underlying()))
	}
	return s, nil
}

// History returns the history store.
func (s *Service) History() *history.Store { return s.history }

// normalizeRequest trims the query and applies defaults and bounds.
func (s *Service) normalizeRequest(req QueryRequest) (QueryRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, ErrEmptyQuery
	}
	if req.TopK == 0 {
		req.TopK = s.settings.TopK
	}
	if req.TopK < 1 || req.TopK > 20 {
		return req, fmt.Errorf("%w: top_k must be between 1 and 20, got %d", ErrInvalidRequest, req.TopK)
	}
	if req.SimilarityThreshold == nil {
		t := s.settings.SimilarityThreshold
		req.SimilarityThreshold = &t
	}
	if t := *req.SimilarityThreshold; t < 0 || t > 1 {
		return req, fmt.Errorf("%w: similarity_threshold must be between 0 and 1, got %g", ErrInvalidRequest, t)
	}
	return req, nil
}

// Query answers req. Validation errors are returned as-is; collaborator
// failures are returned as *PipelineError.
func (s *Service) Query(ctx context.Context, req QueryRequest) (resp *QueryResponse, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Service.Query")
	defer span.End()

	req, err = s.normalizeRequest(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("top_k", req.TopK), attribute.Int("filter_documents", len(req.FilterDocuments)))

	path := pathRetrieval
	defer func() {
		QueryDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
		if err != nil {
			QueriesTotal.WithLabelValues(path, "failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error(ctx, "query failed", zap.String("path", path), zap.Error(err))
			return
		}
		span.SetStatus(codes.Ok, "success")
	}()

	trace := []State{StateIntentCheck}
	s.logger.Info(ctx, "processing query", zap.String("query", truncate(req.Query, 100)))

	documentID, summarize, err := s.checkIntent(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	var (
		chunks  []RetrievedChunk
		genReq  generation.Request
		numDocs int
	)
	if summarize {
		path = pathSummary
		trace = append(trace, StateSummaryPath)
		s.logger.Info(ctx, "summary query for single document, using full-document context",
			zap.String("document.id", documentID))

		content, n, err := s.documentContent(ctx, documentID)
		if err != nil {
			return nil, fail(StateRetrievalFailed, err)
		}
		numDocs = n
		trace = append(trace, StateContextAssembly)
		genReq = generation.Request{
			System:      systemPrompt,
			User:        userMessage(noSummaryHistory, content, summaryInstruction),
			MaxTokens:   s.settings.SummaryMaxTokens,
			Temperature: s.settings.SummaryTemperature,
		}
		chunks = []RetrievedChunk{}
	} else {
		trace = append(trace, StateRetrievalPath)
		chunks, err = s.retrieve(ctx, req)
		if err != nil {
			return nil, err
		}
		trace = append(trace, StateContextAssembly)
		genReq = generation.Request{
			System:      systemPrompt,
			User:        userMessage(formatHistory(s.history.Recent(s.settings.HistoryTurns)), formatContext(chunks), req.Query),
			MaxTokens:   s.settings.MaxTokens,
			Temperature: s.settings.Temperature,
		}
	}
	span.SetAttributes(attribute.String("path", path), attribute.Int("chunks", len(chunks)))

	trace = append(trace, StateGeneration)
	answer, degraded, err := s.generate(ctx, genReq)
	if err != nil {
		return nil, fail(StateGenerationFailed, err)
	}

	resp = &QueryResponse{
		Query:           req.Query,
		Answer:          answer.Text,
		RetrievedChunks: chunks,
		ProcessingTime:  time.Since(start).Seconds(),
		TotalTokens:     answer.TotalTokens,
		ModelUsed:       answer.Model,
	}

	// A canceled or timed-out query must not leave a history entry.
	if err := ctx.Err(); err != nil {
		return nil, fail(StateGenerationFailed, err)
	}
	if !degraded {
		trace = append(trace, StateHistoryAppend)
		s.history.Append(history.Entry{
			Timestamp:          time.Now(),
			Query:              req.Query,
			Answer:             resp.Answer,
			NumRetrievedChunks: len(chunks),
			ProcessingTime:     resp.ProcessingTime,
			ModelUsed:          resp.ModelUsed,
			TotalTokens:        resp.TotalTokens,
		})
	}
	resp.Trace = append(trace, StateDone)

	s.record(path, resp.ProcessingTime, degraded)
	result := "success"
	if degraded {
		result = "degraded"
	}
	QueriesTotal.WithLabelValues(path, result).Inc()

	s.logger.Info(ctx, "query processed",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)),
		zap.Int("summary_chunks", numDocs),
		zap.Float64("processing_time", resp.ProcessingTime),
		zap.Bool("degraded", degraded),
	)
	return resp, nil
}

// checkIntent decides between the summary and retrieval paths. The summary
// path requires exactly one document in the whole index.
func (s *Service) checkIntent(ctx context.Context, query string) (string, bool, error) {
	if !IsSummaryQuery(query) {
		return "", false, nil
	}
	docs, err := s.index.Documents(ctx)
	if err != nil {
		return "", false, fail(StateRetrievalFailed, fmt.Errorf("listing documents: %w", err))
	}
	if len(docs) != 1 {
		return "", false, nil
	}
	return docs[0].DocumentID, true, nil
}

// retrieve embeds the query, fetches the candidate pool, reranks it and
// keeps the top k.
func (s *Service) retrieve(ctx context.Context, req QueryRequest) ([]RetrievedChunk, error) {
	text := embeddings.Preprocess(req.Query)
	if text == "" {
		text = req.Query
	}
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fail(StateEmbeddingFailed, err)
	}

	var filter *vectorstore.Filter
	if len(req.FilterDocuments) > 0 {
		filter = &vectorstore.Filter{DocumentIDs: req.FilterDocuments}
	}
	results, err := s.index.Query(ctx, vector, s.settings.CandidatePool, filter)
	if err != nil {
		return nil, fail(StateRetrievalFailed, err)
	}

	candidates := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		if r.Similarity < s.settings.CandidateFloor {
			continue
		}
		candidates = append(candidates, RetrievedChunk{
			ChunkID:         r.ID,
			DocumentID:      r.DocumentID(),
			Content:         r.Content,
			SimilarityScore: r.Similarity,
			Metadata:        r.Metadata,
		})
	}
	CandidatesRetrieved.Observe(float64(len(candidates)))

	ranked := s.rerank(ctx, req.Query, candidates)
	if len(ranked) > req.TopK {
		ranked = ranked[:req.TopK]
	}
	return ranked, nil
}

// rerank reorders candidates. Any reranker error keeps retrieval order.
func (s *Service) rerank(ctx context.Context, query string, candidates []RetrievedChunk) []RetrievedChunk {
	if len(candidates) < 2 {
		return candidates
	}
	docs := make([]reranker.Document, len(candidates))
	for i, c := range candidates {
		docs[i] = reranker.Document{ID: c.ChunkID, Content: c.Content, Score: c.SimilarityScore}
	}
	scored, err := s.reranker.Rerank(ctx, query, docs)
	if err != nil || len(scored) != len(candidates) {
		s.logger.Warn(ctx, "reranking failed, keeping retrieval order", zap.Error(err))
		return candidates
	}

	out := make([]RetrievedChunk, len(scored))
	for i, sd := range scored {
		c := candidates[sd.OriginalRank]
		c.SimilarityScore = sd.Score
		out[i] = c
	}
	return out
}

// generate calls the generator. Provider errors become a degraded answer;
// only context cancellation is returned as an error.
func (s *Service) generate(ctx context.Context, req generation.Request) (generation.Response, bool, error) {
	zero := 0
	if s.generator == nil {
		return generation.Response{Text: noLLMAnswer, Model: modelNone, TotalTokens: &zero}, true, nil
	}
	resp, err := s.generator.Generate(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return generation.Response{}, false, fmt.Errorf("%w: %v", ctxErr, err)
		}
		s.logger.Error(ctx, "error generating answer", zap.Error(err))
		return generation.Response{
			Text:        "Error generating answer: " + err.Error(),
			Model:       modelError,
			TotalTokens: &zero,
		}, true, nil
	}
	return resp, false, nil
}

// documentContent joins a document's chunks in order.
func (s *Service) documentContent(ctx context.Context, documentID string) (string, int, error) {
	chunks, err := s.index.Chunks(ctx, documentID)
	if err != nil {
		return "", 0, fmt.Errorf("loading chunks of %s: %w", documentID, err)
	}
	if len(chunks) == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n"), len(chunks), nil
}

// Summarize generates a summary of one document from all its chunks.
func (s *Service) Summarize(ctx context.Context, documentID string) (*DocumentSummary, error) {
	ctx, span := tracer.Start(ctx, "Service.Summarize")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))
	ctx = logging.WithDocumentID(ctx, documentID)

	content, n, err := s.documentContent(ctx, documentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	answer, degraded, err := s.generate(ctx, generation.Request{
		System:      systemPrompt,
		User:        userMessage(noSummaryHistory, content, summaryInstruction),
		MaxTokens:   s.settings.SummaryMaxTokens,
		Temperature: s.settings.SummaryTemperature,
	})
	if err != nil {
		return nil, fail(StateGenerationFailed, err)
	}
	if degraded {
		s.mu.Lock()
		s.degraded++
		s.mu.Unlock()
	}

	return &DocumentSummary{
		DocumentID:         documentID,
		Summary:            answer.Text,
		TotalChunks:        n,
		TotalContentLength: utf8.RuneCountInString(content),
		ModelUsed:          answer.Model,
		TotalTokens:        answer.TotalTokens,
	}, nil
}

// SimilarQueries returns past queries sharing words with query. limit is
// clamped to [1, 20], 0 meaning 5.
func (s *Service) SimilarQueries(query string, limit int) []history.Match {
	switch {
	case limit == 0:
		limit = 5
	case limit < 1:
		limit = 1
	case limit > 20:
		limit = 20
	}
	return s.history.Similar(query, limit)
}

// RecentHistory returns the last limit entries, oldest first.
func (s *Service) RecentHistory(limit int) []history.Entry {
	return s.history.Recent(limit)
}

// ClearHistory drops all history entries.
func (s *Service) ClearHistory(ctx context.Context) {
	s.history.Clear()
	s.logger.Info(ctx, "cleared query history")
}

// EmbedText preprocesses text like a query and embeds it.
func (s *Service) EmbedText(ctx context.Context, text string) (*EmbeddingResult, error) {
	processed := embeddings.Preprocess(text)
	if processed == "" {
		return nil, ErrEmptyQuery
	}
	vector, err := s.embedder.EmbedQuery(ctx, processed)
	if err != nil {
		return nil, err
	}
	return &EmbeddingResult{
		Text:      processed,
		Embedding: vector,
		Dimension: len(vector),
		Model:     s.embedder.Model(),
	}, nil
}

// Stats reports activity counters and settings.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	queries, summaries, degraded, total := s.queries, s.summaryQueries, s.degraded, s.totalProcessing
	s.mu.Unlock()

	var avg float64
	if queries > 0 {
		avg = total / float64(queries)
	}
	st := Stats{
		HistorySize:           s.history.Len(),
		HistoryCapacity:       s.history.Cap(),
		TotalQueries:          queries,
		SummaryQueries:        summaries,
		DegradedAnswers:       degraded,
		AverageProcessingTime: avg,
		Settings:              s.settings,
		EmbeddingModel:        s.embedder.Model(),
		EmbeddingDimension:    s.embedder.Dimension(),
		LLMModel:              modelNone,
		LLMAvailable:          s.generator != nil,
	}
	if s.generator != nil {
		st.LLMModel = s.generator.Model()
	}
	return st
}

// LLMAvailable reports whether a generator is configured.
func (s *Service) LLMAvailable() bool { return s.generator != nil }

// EmbeddingAvailable reports whether the embedder was constructed.
func (s *Service) EmbeddingAvailable() bool {
	_, unavailable := s.embedder.(*embeddings.Unavailable)
	return !unavailable
}

func (s *Service) record(path string, seconds float64, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.totalProcessing += seconds
	if path == pathSummary {
		s.summaryQueries++
	}
	if degraded {
		s.degraded++
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
