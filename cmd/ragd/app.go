package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/events"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	"github.com/fyrsmithlabs/ragd/internal/history"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/secrets"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// app holds the services shared by the HTTP daemon and the MCP server.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	index     vectorstore.Index
	embedder  embeddings.Provider
	generator generation.Generator
	redactor  secrets.Redactor
	publisher events.Publisher
	rag       *rag.Service
}

// loggerConfig maps the user-facing logging section onto a logging.Config.
func loggerConfig(c config.LoggingConfig, otel, stderr bool) (*logging.Config, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(c.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	if c.Format != "" {
		lc.Format = c.Format
	}
	lc.Output.OTEL = otel
	lc.Output.Stderr = stderr
	lc.Fields["version"] = version
	return lc, nil
}

// newApp loads configuration and builds every service. stderr routes logs
// away from stdout. Callers must call close.
func newApp(ctx context.Context, path string, stderr bool) (_ *app, err error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version), nil)
	if err != nil {
		return nil, err
	}

	lc, err := loggerConfig(cfg.Logging, a.telemetry.IsEnabled(), stderr)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	a.logger, err = logging.NewLogger(lc, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := a.logger.Underlying()
	if a.telemetry.Health().Degraded {
		a.logger.Warn(ctx, "telemetry degraded, continuing without some exporters")
	}

	a.index, err = vectorstore.NewIndex(ctx, cfg, zl)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	a.embedder, err = embeddings.NewProvider(cfg.Embeddings, zl)
	if err != nil {
		// Keep serving documents and health; queries report EMBEDDING_FAILED.
		a.logger.Error(ctx, "embedding provider unavailable", zap.Error(err))
		a.embedder = embeddings.NewUnavailable(cfg.Embeddings.Model, cfg.Embeddings.Dimension, err)
	}

	a.generator, err = generation.New(cfg.Generation, zl)
	switch {
	case errors.Is(err, generation.ErrNotConfigured):
		a.logger.Warn(ctx, "no LLM configured, answers will be degraded", zap.Error(err))
		a.generator, err = nil, nil
	case err != nil:
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	a.redactor = secrets.Nop{}
	if cfg.Ingest.RedactSecrets {
		r, err := secrets.NewGitleaksRedactor(nil, zl)
		if err != nil {
			return nil, fmt.Errorf("creating secret redactor: %w", err)
		}
		a.redactor = r
	}

	a.publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		p, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, zl)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		a.publisher = p
	}

	a.rag, err = rag.NewService(a.index, a.embedder, a.generator,
		rag.WithSettings(rag.SettingsFromConfig(cfg)),
		rag.WithHistory(history.NewStore(cfg.History.Capacity)),
		rag.WithLogger(a.logger.Named("rag")),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query service: %w", err)
	}

	a.logger.Info(ctx, "services initialized",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", a.embedder.Model()),
		zap.Bool("llm_available", a.rag.LLMAvailable()),
		zap.Bool("redact_secrets", cfg.Ingest.RedactSecrets),
		zap.Bool("events", cfg.Events.NATSURL != ""))
	return a, nil
}

// close releases resources in reverse order of creation.
func (a *app) close(ctx context.Context) {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "closing vector index", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.telemetry != nil {
		_ = a.telemetry.Shutdown(ctx)
	}
}
