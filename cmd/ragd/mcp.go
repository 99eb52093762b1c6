package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools on stdio",
	Long: `Serve the rag_query, rag_list_documents, rag_document_summary and
rag_history tools over the Model Context Protocol on stdin/stdout.

The server opens the configured vector index directly. Logs go to stderr
because stdout carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serveMCP(ctx, configPath)
	},
}

func serveMCP(ctx context.Context, path string) error {
	a, err := newApp(ctx, path, true)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "ragd",
		Version: version,
		Logger:  a.logger.Underlying().Named("mcp"),
	}, a.rag, a.index, a.redactor)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "ragd MCP server started (collection %s)\n", a.cfg.VectorStore.Collection)
	return srv.Run(ctx)
}
