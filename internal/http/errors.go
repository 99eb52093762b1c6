package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve),
		errors.Is(err, rag.ErrEmptyQuery),
		errors.Is(err, rag.ErrInvalidRequest),
		errors.Is(err, embeddings.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrDocumentNotFound),
		errors.Is(err, document.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrQueueFull),
		errors.Is(err, ingest.ErrNotRunning),
		errors.Is(err, embeddings.ErrEmbeddingUnavailable),
		errors.Is(err, vectorstore.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and converts it to an echo.HTTPError. Pipeline failures
// also report the state the query ended in.
func (s *Server) fail(c echo.Context, op string, err error) error {
	code := statusFor(err)
	fields := []zap.Field{
		zap.String("operation", op),
		zap.Int("status", code),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Warn("request rejected", fields...)
	}

	var state rag.State
	var pe *rag.PipelineError
	if errors.As(err, &pe) {
		state = pe.State
	}
	he := echo.NewHTTPError(code, err.Error())
	if state != "" {
		he.Message = map[string]string{"message": err.Error(), "state": string(state)}
	}
	return he
}
