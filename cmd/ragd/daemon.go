package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	api "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/ignore"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/watcher"
)

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, configPath)
}

// serve runs the HTTP daemon until ctx ends, then shuts down in order:
// HTTP first so no new work arrives, then the watcher, then the workers.
func serve(ctx context.Context, path string) error {
	a, err := newApp(ctx, path, false)
	if err != nil {
		return err
	}
	// cleanup runs in reverse under one shutdown deadline.
	var cleanup []func(context.Context)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i](sctx)
		}
		a.close(sctx)
	}()

	zl := a.logger.Underlying()
	a.logger.Info(ctx, "starting ragd",
		zap.String("version", version),
		zap.String("host", a.cfg.Server.Host),
		zap.Int("port", a.cfg.Server.Port))

	ingestSvc, err := ingest.NewService(ingest.ConfigFromApp(a.cfg), a.index, a.embedder,
		ingest.WithRedactor(a.redactor),
		ingest.WithPublisher(a.publisher),
		ingest.WithLogger(zl.Named("ingest")),
	)
	if err != nil {
		return fmt.Errorf("creating ingestion service: %w", err)
	}
	if err := ingestSvc.Start(ctx); err != nil {
		return fmt.Errorf("starting ingestion workers: %w", err)
	}
	cleanup = append(cleanup, func(sctx context.Context) {
		if err := ingestSvc.Stop(sctx); err != nil {
			a.logger.Warn(sctx, "ingestion workers did not stop cleanly", zap.Error(err))
		}
	})

	if dir := a.cfg.Ingest.WatchDir; dir != "" {
		skip, err := ignore.Load(dir)
		if err != nil {
			return fmt.Errorf("reading ignore file: %w", err)
		}
		w, err := watcher.New(dir, ingestSvc,
			watcher.WithLogger(zl.Named("watcher")),
			watcher.WithIgnore(skip),
		)
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		cleanup = append(cleanup, func(context.Context) { w.Stop() })
	}

	srv, err := api.NewServer(api.Dependencies{
		RAG:    a.rag,
		Ingest: ingestSvc,
		Index:  a.index,
		App:    a.cfg,
	}, zl.Named("http"), api.ConfigFromApp(a.cfg, version))
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info(context.Background(), "shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.logger.Warn(sctx, "http shutdown", zap.Error(err))
	}
	return <-errCh
}
