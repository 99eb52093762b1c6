// Package http provides the ragd REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves the /api/v1 endpoints.
type Server struct {
	echo    *echo.Echo
	rag     *rag.Service
	ingest  *ingest.Service
	index   vectorstore.Index
	app     *config.Config
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// UploadDir receives staged uploads as {document_id}_{filename}.
	UploadDir string
	// MaxUploadBytes rejects larger uploads with 413. Zero disables the check.
	MaxUploadBytes int64
	// RequestTimeout bounds query, summary and embedding handlers.
	RequestTimeout time.Duration
	// Version is reported by the health endpoints.
	Version string
}

// ConfigFromApp derives a Config from the application configuration.
func ConfigFromApp(cfg *config.Config, version string) *Config {
	return &Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		UploadDir:      cfg.Ingest.UploadDir,
		MaxUploadBytes: cfg.Ingest.MaxFileSizeBytes(),
		RequestTimeout: cfg.Server.RequestTimeout.Duration(),
		Version:        version,
	}
}

// Dependencies are the services behind the API.
type Dependencies struct {
	RAG    *rag.Service
	Ingest *ingest.Service
	Index  vectorstore.Index
	// App is reported by /health/detailed; optional.
	App *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Dependencies, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.RAG == nil {
		return nil, fmt.Errorf("query service cannot be nil")
	}
	if deps.Ingest == nil {
		return nil, fmt.Errorf("ingest service cannot be nil")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("vector index cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:      "localhost",
			Port:      8000,
			UploadDir: "./data/uploads",
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	metrics := NewHTTPMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:    e,
		rag:     deps.RAG,
		ingest:  deps.Ingest,
		index:   deps.Index,
		app:     deps.App,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.GET("/health", s.handleHealth)
	v1.GET("/health/detailed", s.handleHealthDetailed)

	docs := v1.Group("/documents")
	docs.POST("/upload", s.handleUpload)
	docs.GET("/status/:id", s.handleStatus)
	docs.GET("/list-unique", s.handleListUnique)
	docs.POST("/reset", s.handleReset)
	docs.GET("", s.handleCollectionStats)
	docs.GET("/:id/chunks", s.handleChunks)
	docs.DELETE("/:id", s.handleDelete)

	query := v1.Group("/query")
	query.POST("", s.handleQuery)
	query.GET("/history", s.handleHistory)
	query.DELETE("/history", s.handleClearHistory)
	query.GET("/similar", s.handleSimilar)
	query.GET("/stats", s.handleQueryStats)
	query.GET("/document/:id/summary", s.handleSummary)

	v1.POST("/embeddings/generate", s.handleEmbed)
}

// Echo exposes the router, mainly for tests and extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// requestContext bounds long-running handlers by RequestTimeout.
func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}
