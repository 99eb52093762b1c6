package http

import (
	"time"

	"github.com/fyrsmithlabs/ragd/internal/history"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Service status labels.
const (
	StatusHealthy     = "healthy"
	StatusUnhealthy   = "unhealthy"
	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
)

// HealthResponse is the response body for GET /api/v1/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}

// ServiceHealth is one entry of the detailed health report.
type ServiceHealth struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Stats  interface{} `json:"stats,omitempty"`
}

// DetailedHealthResponse is the response body for GET /api/v1/health/detailed.
type DetailedHealthResponse struct {
	Status        string                   `json:"status"`
	Timestamp     time.Time                `json:"timestamp"`
	Version       string                   `json:"version"`
	Services      map[string]ServiceHealth `json:"services"`
	Ingestion     IngestionStats           `json:"ingestion"`
	Configuration interface{}              `json:"configuration,omitempty"`
}

// IngestionStats describes the worker queue.
type IngestionStats struct {
	QueueLength      int `json:"queue_length"`
	TrackedDocuments int `json:"tracked_documents"`
}

// UploadMetadata describes an accepted file.
type UploadMetadata struct {
	Filename        string    `json:"filename"`
	FileSize        int64     `json:"file_size"`
	ContentType     string    `json:"content_type"`
	Format          string    `json:"format"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
}

// UploadResponse is the response body for POST /api/v1/documents/upload.
type UploadResponse struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Status     ingest.Status  `json:"status"`
	Message    string         `json:"message"`
	Metadata   UploadMetadata `json:"metadata"`
}

// ChunksResponse is the response body for GET /api/v1/documents/:id/chunks.
type ChunksResponse struct {
	DocumentID  string               `json:"document_id"`
	Chunks      []vectorstore.Result `json:"chunks"`
	TotalChunks int                  `json:"total_chunks"`
}

// CollectionResponse is the response body for GET /api/v1/documents.
type CollectionResponse struct {
	TotalDocuments  int               `json:"total_documents"`
	CollectionStats vectorstore.Stats `json:"collection_stats"`
}

// DocumentsResponse is the response body for GET /api/v1/documents/list-unique.
type DocumentsResponse struct {
	Documents []vectorstore.DocumentSummary `json:"documents"`
	Total     int                           `json:"total"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// HistoryResponse is the response body for GET /api/v1/query/history.
type HistoryResponse struct {
	History []history.Entry `json:"history"`
	Total   int             `json:"total"`
}

// SimilarResponse is the response body for GET /api/v1/query/similar.
type SimilarResponse struct {
	Query          string          `json:"query"`
	SimilarQueries []history.Match `json:"similar_queries"`
	Total          int             `json:"total"`
}

// EmbeddingRequest is the request body for POST /api/v1/embeddings/generate.
type EmbeddingRequest struct {
	Text string `json:"text" validate:"required,max=100000"`
}

// Re-exported for clients decoding query responses.
type (
	QueryRequest  = rag.QueryRequest
	QueryResponse = rag.QueryResponse
)
