package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleHealth reports overall and per-service status. The API is healthy
// while the vector store answers; a missing LLM only degrades answers.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	services := map[string]string{
		"vector_store":      StatusHealthy,
		"embedding_service": StatusHealthy,
		"llm_service":       StatusAvailable,
	}
	overall := StatusHealthy

	if err := s.index.Health(ctx); err != nil {
		s.logger.Warn("vector store health check failed", zap.Error(err))
		services["vector_store"] = StatusUnhealthy
		overall = StatusUnhealthy
	}
	if !s.rag.EmbeddingAvailable() {
		services["embedding_service"] = StatusUnhealthy
		overall = StatusUnhealthy
	}
	if !s.rag.LLMAvailable() {
		services["llm_service"] = StatusUnavailable
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Version:   s.config.Version,
		Services:  services,
	})
}

func (s *Server) handleHealthDetailed(c echo.Context) error {
	ctx := c.Request().Context()
	overall := StatusHealthy
	stats := s.rag.Stats()

	vs := ServiceHealth{Status: StatusHealthy}
	if err := s.index.Health(ctx); err != nil {
		vs = ServiceHealth{Status: StatusUnhealthy, Error: err.Error()}
		overall = StatusUnhealthy
	} else if st, err := s.index.Stats(ctx); err == nil {
		vs.Stats = st
	}

	emb := ServiceHealth{
		Status: StatusHealthy,
		Stats: map[string]interface{}{
			"model":     stats.EmbeddingModel,
			"dimension": stats.EmbeddingDimension,
		},
	}
	if !s.rag.EmbeddingAvailable() {
		emb.Status = StatusUnhealthy
		overall = StatusUnhealthy
	}

	llm := ServiceHealth{
		Status: StatusAvailable,
		Stats: map[string]interface{}{
			"model":            stats.LLMModel,
			"total_queries":    stats.TotalQueries,
			"degraded_answers": stats.DegradedAnswers,
		},
	}
	if !stats.LLMAvailable {
		llm.Status = StatusUnavailable
	}

	resp := DetailedHealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Version:   s.config.Version,
		Services: map[string]ServiceHealth{
			"vector_store":      vs,
			"embedding_service": emb,
			"llm_service":       llm,
		},
		Ingestion: IngestionStats{
			QueueLength:      s.ingest.QueueLen(),
			TrackedDocuments: len(s.ingest.Statuses()),
		},
	}
	if s.app != nil {
		resp.Configuration = map[string]interface{}{
			"chunk_size":           s.app.Ingest.ChunkSize,
			"chunk_overlap":        s.app.Ingest.ChunkOverlap,
			"max_file_size_mb":     s.app.Ingest.MaxFileSizeMB,
			"top_k":                s.app.Retrieval.TopK,
			"similarity_threshold": s.app.Retrieval.SimilarityThreshold,
			"vectorstore_provider": s.app.VectorStore.Provider,
			"embeddings_provider":  s.app.Embeddings.Provider,
			"generation_provider":  s.app.Generation.Provider,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
