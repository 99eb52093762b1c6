package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type queryInput struct {
	Query           string   `json:"query" jsonschema:"Question to answer from the indexed documents"`
	TopK            int      `json:"top_k,omitempty" jsonschema:"Number of chunks to use as evidence (1-20, default 3)"`
	FilterDocuments []string `json:"filter_documents,omitempty" jsonschema:"Restrict retrieval to these document ids"`
}

type querySource struct {
	DocumentID string  `json:"document_id" jsonschema:"Owning document"`
	Filename   string  `json:"filename" jsonschema:"Original file name"`
	ChunkID    string  `json:"chunk_id" jsonschema:"Chunk identifier"`
	Score      float64 `json:"score" jsonschema:"Blended relevance score"`
}

type queryOutput struct {
	Answer         string        `json:"answer" jsonschema:"Generated answer"`
	Sources        []querySource `json:"sources" jsonschema:"Evidence chunks, most relevant first"`
	ModelUsed      string        `json:"model_used" jsonschema:"Generator model, none when no LLM is configured"`
	ProcessingTime float64       `json:"processing_time" jsonschema:"Seconds spent answering"`
	TotalTokens    *int          `json:"total_tokens,omitempty" jsonschema:"Tokens reported by the provider"`
}

type listDocumentsInput struct{}

type listDocumentsOutput struct {
	Documents []vectorstore.DocumentSummary `json:"documents" jsonschema:"Indexed documents, newest first"`
	Count     int                           `json:"count" jsonschema:"Number of documents"`
}

type summaryInput struct {
	DocumentID string `json:"document_id" jsonschema:"Document to summarize"`
}

type summaryOutput struct {
	DocumentID  string `json:"document_id" jsonschema:"Summarized document"`
	Summary     string `json:"summary" jsonschema:"Generated summary"`
	TotalChunks int    `json:"total_chunks" jsonschema:"Chunks read"`
	ModelUsed   string `json:"model_used" jsonschema:"Generator model"`
}

type historyInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Entries to return (1-100, default 10)"`
}

type historyEntry struct {
	Timestamp          string  `json:"timestamp" jsonschema:"RFC 3339 answer time"`
	Query              string  `json:"query" jsonschema:"Question asked"`
	Answer             string  `json:"answer" jsonschema:"Answer returned"`
	NumRetrievedChunks int     `json:"num_retrieved_chunks" jsonschema:"Evidence chunks used"`
	ModelUsed          string  `json:"model_used" jsonschema:"Generator model"`
	ProcessingTime     float64 `json:"processing_time" jsonschema:"Seconds spent answering"`
}

type historyOutput struct {
	Entries []historyEntry `json:"entries" jsonschema:"Recent queries, oldest first"`
	Count   int            `json:"count" jsonschema:"Number of entries"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_query",
		Description: "Answer a question from the indexed documents. Returns the answer and the chunks it was grounded on.",
	}, s.handleQuery)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_list_documents",
		Description: "List indexed documents with their chunk counts",
	}, s.handleListDocuments)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_document_summary",
		Description: "Summarize one indexed document",
	}, s.handleSummary)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_history",
		Description: "Show recently answered queries",
	}, s.handleHistory)
}

// track records metrics for one tool call. Call the returned func with the
// tool error when the call ends.
func (s *Server) track(ctx context.Context, tool string) func(error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	return func(err error) {
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
		}
	}
}

// redact scrubs generated text. A redactor failure withholds the text.
func (s *Server) redact(text string) (string, error) {
	res, err := s.redactor.Redact(text)
	if err != nil {
		return "", fmt.Errorf("redacting output: %w", err)
	}
	return res.Text, nil
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, args queryInput) (_ *mcp.CallToolResult, _ queryOutput, toolErr error) {
	done := s.track(ctx, "rag_query")
	defer func() { done(toolErr) }()

	resp, err := s.rag.Query(ctx, rag.QueryRequest{
		Query:           args.Query,
		TopK:            args.TopK,
		FilterDocuments: args.FilterDocuments,
	})
	if err != nil {
		return nil, queryOutput{}, err
	}
	answer, err := s.redact(resp.Answer)
	if err != nil {
		return nil, queryOutput{}, err
	}

	out := queryOutput{
		Answer:         answer,
		Sources:        make([]querySource, 0, len(resp.RetrievedChunks)),
		ModelUsed:      resp.ModelUsed,
		ProcessingTime: resp.ProcessingTime,
		TotalTokens:    resp.TotalTokens,
	}
	var text strings.Builder
	text.WriteString(answer)
	if len(resp.RetrievedChunks) > 0 {
		text.WriteString("\n\nSources:")
	}
	for _, c := range resp.RetrievedChunks {
		src := querySource{
			DocumentID: c.DocumentID,
			Filename:   c.Metadata[vectorstore.KeyFilename],
			ChunkID:    c.ChunkID,
			Score:      c.SimilarityScore,
		}
		out.Sources = append(out.Sources, src)
		fmt.Fprintf(&text, "\n- %s (%s, score %.3f)", src.Filename, src.ChunkID, src.Score)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text.String()}},
	}, out, nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ *mcp.CallToolRequest, _ listDocumentsInput) (_ *mcp.CallToolResult, _ listDocumentsOutput, toolErr error) {
	done := s.track(ctx, "rag_list_documents")
	defer func() { done(toolErr) }()

	docs, err := s.index.Documents(ctx)
	if err != nil {
		return nil, listDocumentsOutput{}, fmt.Errorf("listing documents: %w", err)
	}
	if docs == nil {
		docs = []vectorstore.DocumentSummary{}
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%d document(s) indexed", len(docs))
	for _, d := range docs {
		fmt.Fprintf(&text, "\n- %s  %s  (%d chunks)", d.DocumentID, d.Filename, d.ChunkCount)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text.String()}},
	}, listDocumentsOutput{Documents: docs, Count: len(docs)}, nil
}

func (s *Server) handleSummary(ctx context.Context, _ *mcp.CallToolRequest, args summaryInput) (_ *mcp.CallToolResult, _ summaryOutput, toolErr error) {
	done := s.track(ctx, "rag_document_summary")
	defer func() { done(toolErr) }()

	if strings.TrimSpace(args.DocumentID) == "" {
		return nil, summaryOutput{}, fmt.Errorf("invalid input: document_id is required")
	}
	summary, err := s.rag.Summarize(ctx, args.DocumentID)
	if err != nil {
		return nil, summaryOutput{}, err
	}
	text, err := s.redact(summary.Summary)
	if err != nil {
		return nil, summaryOutput{}, err
	}
	out := summaryOutput{
		DocumentID:  summary.DocumentID,
		Summary:     text,
		TotalChunks: summary.TotalChunks,
		ModelUsed:   summary.ModelUsed,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

func (s *Server) handleHistory(ctx context.Context, _ *mcp.CallToolRequest, args historyInput) (_ *mcp.CallToolResult, _ historyOutput, toolErr error) {
	done := s.track(ctx, "rag_history")
	defer func() { done(toolErr) }()

	limit := args.Limit
	switch {
	case limit == 0:
		limit = defaultHistoryLimit
	case limit < 1 || limit > maxHistoryLimit:
		return nil, historyOutput{}, fmt.Errorf("invalid input: limit must be between 1 and %d", maxHistoryLimit)
	}

	recent := s.rag.RecentHistory(limit)
	entries := make([]historyEntry, 0, len(recent))
	var text strings.Builder
	fmt.Fprintf(&text, "%d recent queries", len(recent))
	for _, e := range recent {
		answer, err := s.redact(e.Answer)
		if err != nil {
			return nil, historyOutput{}, err
		}
		entries = append(entries, historyEntry{
			Timestamp:          e.Timestamp.UTC().Format(time.RFC3339),
			Query:              e.Query,
			Answer:             answer,
			NumRetrievedChunks: e.NumRetrievedChunks,
			ModelUsed:          e.ModelUsed,
			ProcessingTime:     e.ProcessingTime,
		})
		fmt.Fprintf(&text, "\n- [%s] %s", e.Timestamp.UTC().Format(time.RFC3339), e.Query)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text.String()}},
	}, historyOutput{Entries: entries, Count: len(entries)}, nil
}
