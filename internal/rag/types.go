package rag

import (
	"github.com/fyrsmithlabs/ragd/internal/config"
)

// QueryRequest is a question against the indexed documents.
type QueryRequest struct {
	Query               string   `json:"query" validate:"required,max=10000"`
	TopK                int      `json:"top_k" validate:"omitempty,min=1,max=20"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty" validate:"omitempty,min=0,max=1"`
	FilterDocuments     []string `json:"filter_documents,omitempty" validate:"omitempty,dive,required"`
}

// RetrievedChunk is a ranked piece of evidence.
type RetrievedChunk struct {
	ChunkID         string            `json:"chunk_id"`
	DocumentID      string            `json:"document_id"`
	Content         string            `json:"content"`
	SimilarityScore float64           `json:"similarity_score"`
	Metadata        map[string]string `json:"metadata"`
}

// QueryResponse is the answer to a QueryRequest.
type QueryResponse struct {
	Query           string           `json:"query"`
	Answer          string           `json:"answer"`
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	ProcessingTime  float64          `json:"processing_time"` // seconds
	TotalTokens     *int             `json:"total_tokens"`
	ModelUsed       string           `json:"model_used,omitempty"`

	// Trace lists the states the query passed through.
	Trace []State `json:"-"`
}

// DocumentSummary is a generated summary of one document.
type DocumentSummary struct {
	DocumentID         string `json:"document_id"`
	Summary            string `json:"summary"`
	TotalChunks        int    `json:"total_chunks"`
	TotalContentLength int    `json:"total_content_length"`
	ModelUsed          string `json:"model_used"`
	TotalTokens        *int   `json:"total_tokens"`
}

// EmbeddingResult is the output of EmbedText.
type EmbeddingResult struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
}

// Stats summarizes query activity and settings.
type Stats struct {
	HistorySize           int      `json:"history_size"`
	HistoryCapacity       int      `json:"history_capacity"`
	TotalQueries          int64    `json:"total_queries"`
	SummaryQueries        int64    `json:"summary_queries"`
	DegradedAnswers       int64    `json:"degraded_answers"`
	AverageProcessingTime float64  `json:"average_processing_time"`
	Settings              Settings `json:"settings"`
	EmbeddingModel        string   `json:"embedding_model"`
	EmbeddingDimension    int      `json:"embedding_dimension"`
	LLMModel              string   `json:"llm_model"`
	LLMAvailable          bool     `json:"llm_available"`
}

// Settings are the retrieval and generation knobs of the pipeline.
type Settings struct {
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	CandidatePool       int     `json:"candidate_pool"`
	CandidateFloor      float64 `json:"candidate_floor"`
	HistoryTurns        int     `json:"history_turns"`
	MaxTokens           int     `json:"max_tokens"`
	Temperature         float64 `json:"temperature"`
	SummaryMaxTokens    int     `json:"summary_max_tokens"`
	SummaryTemperature  float64 `json:"summary_temperature"`
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		TopK:                3,
		SimilarityThreshold: 0.5,
		CandidatePool:       20,
		CandidateFloor:      0.2,
		HistoryTurns:        5,
		MaxTokens:           3000,
		Temperature:         0,
		SummaryMaxTokens:    500,
		SummaryTemperature:  0.1,
	}
}

// SettingsFromConfig extracts Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		CandidatePool:       cfg.Retrieval.CandidatePool,
		CandidateFloor:      cfg.Retrieval.CandidateFloor,
		HistoryTurns:        cfg.Retrieval.HistoryTurns,
		MaxTokens:           cfg.Generation.MaxTokens,
		Temperature:         cfg.Generation.Temperature,
		SummaryMaxTokens:    cfg.Generation.SummaryMaxTokens,
		SummaryTemperature:  cfg.Generation.SummaryTemperature,
	}
}
