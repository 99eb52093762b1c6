// Ragd is a retrieval-augmented question answering daemon.
//
// It ingests documents into a vector index and answers questions about
// them over a REST API, or over MCP on stdio with the mcp subcommand.
//
// Usage:
//
//	# Start the HTTP daemon with defaults
//	ragd
//
//	# Use a config file, overridden by environment
//	RAGD_SERVER_PORT=9000 ragd --config ragd.yaml
//
//	# Serve MCP tools on stdio
//	ragd mcp --config ragd.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Retrieval-augmented question answering daemon",
	Long: `ragd ingests documents into a vector index and answers questions
about them with a language model, citing the chunks it used.

Configuration comes from an optional YAML file and RAGD_* environment
variables.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ragd by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
