// Package main implements ragctl, the command-line client for the ragd HTTP API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/client"
)

var (
	// serverURL is the base URL of the ragd daemon
	serverURL string
	// timeout bounds each API call
	timeout time.Duration
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "CLI for the ragd document question answering daemon",
		Long: `ragctl uploads documents to a running ragd daemon, asks questions
about them and manages the index.

Examples:
  # Upload a document and wait until it is indexed
  ragctl upload handbook.pdf --wait

  # Ask a question restricted to one document
  ragctl query "How many vacation days do I get?" --doc 3f2a...

  # Open the interactive console
  ragctl chat`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("RAGD_URL", client.DefaultBaseURL), "ragd server URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-request timeout")

	root.AddCommand(
		newHealthCmd(),
		newUploadCmd(),
		newStatusCmd(),
		newDocsCmd(),
		newDeleteCmd(),
		newResetCmd(),
		newQueryCmd(),
		newHistoryCmd(),
		newChatCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() (*client.Client, error) {
	c, err := client.New(serverURL, client.WithTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("invalid --server: %w", err)
	}
	return c, nil
}
