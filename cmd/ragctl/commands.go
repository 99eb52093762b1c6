package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	api "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check ragd server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			printHealth(cmd.OutOrStdout(), h)
			if h.Status != api.StatusHealthy {
				return fmt.Errorf("server is %s", h.Status)
			}
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	var wait bool
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			resp, err := c.Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s  %s\n", resp.DocumentID, resp.Filename, resp.Status)
			if !wait {
				return nil
			}

			st, err := c.WaitForStatus(cmd.Context(), resp.DocumentID, poll, func(s *ingest.ProcessingStatus) {
				fmt.Fprintf(out, "  %3.0f%%  %s\n", s.Progress, s.Message)
			})
			if err != nil {
				return err
			}
			if st.Status == ingest.StatusFailed {
				return fmt.Errorf("ingestion failed: %s", firstNonEmpty(st.ErrorDetails, st.Message))
			}
			fmt.Fprintf(out, "Indexed %d chunk(s)\n", st.TotalChunks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until processing completes")
	cmd.Flags().DurationVar(&poll, "poll", 500*time.Millisecond, "status poll interval with --wait")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show the processing status of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents", "ls"},
		Short:   "List indexed documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			docs, err := c.Documents(cmd.Context())
			if err != nil {
				return err
			}
			printDocuments(cmd.OutOrStdout(), docs.Documents)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			msg, err := c.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Message)
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all documents?") {
				return fmt.Errorf("aborted")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			msg, err := c.Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Message)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var topK int
	var docs []string
	var showChunks bool
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question about the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			resp, err := c.Query(cmd.Context(), rag.QueryRequest{
				Query:           strings.Join(args, " "),
				TopK:            topK,
				FilterDocuments: docs,
			})
			if err != nil {
				return err
			}
			printAnswer(cmd.OutOrStdout(), resp, showChunks)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of evidence chunks (1-20, server default when 0)")
	cmd.Flags().StringSliceVar(&docs, "doc", nil, "restrict to document id (repeatable)")
	cmd.Flags().BoolVar(&showChunks, "chunks", false, "print the evidence chunk text")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently answered questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			h, err := c.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if h.Total == 0 {
				fmt.Fprintln(out, "No queries yet.")
				return nil
			}
			for _, e := range h.History {
				fmt.Fprintf(out, "[%s] %s\n  %s (%s, %.2fs)\n",
					e.Timestamp.Local().Format(time.DateTime), e.Query, oneLine(e.Answer, 120), e.ModelUsed, e.ProcessingTime)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "entries to show (1-100)")
	return cmd
}

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case api.StatusHealthy, api.StatusAvailable:
		return okStyle
	default:
		return failStyle
	}
}

func printHealth(w io.Writer, h *api.HealthResponse) {
	fmt.Fprintf(w, "%s %s (version %s)\n", labelStyle.Render("Server:"), statusStyle(h.Status).Render(h.Status), h.Version)
	for _, name := range []string{"vector_store", "embedding_service", "llm_service"} {
		if s, ok := h.Services[name]; ok {
			fmt.Fprintf(w, "  %-18s %s\n", name, statusStyle(s).Render(s))
		}
	}
}

func printStatus(w io.Writer, st *ingest.ProcessingStatus) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Document:"), st.DocumentID)
	if st.Filename != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("File:"), st.Filename)
	}
	fmt.Fprintf(w, "%s %s (%.0f%%)\n", labelStyle.Render("Status:"), st.Status, st.Progress)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Message:"), st.Message)
	if st.TotalChunks > 0 {
		fmt.Fprintf(w, "%s %d/%d\n", labelStyle.Render("Chunks:"), st.ChunksProcessed, st.TotalChunks)
	}
	if st.ErrorDetails != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Error:"), failStyle.Render(st.ErrorDetails))
	}
}

func printDocuments(w io.Writer, docs []vectorstore.DocumentSummary) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{d.DocumentID, d.Filename, strconv.Itoa(d.ChunkCount), d.UploadTimestamp})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DOCUMENT ID", "FILENAME", "CHUNKS", "UPLOADED").
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

func printAnswer(w io.Writer, resp *rag.QueryResponse, showChunks bool) {
	fmt.Fprintln(w, resp.Answer)
	if len(resp.RetrievedChunks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("Sources:"))
	}
	for _, c := range resp.RetrievedChunks {
		fmt.Fprintln(w, sourceStyle.Render(fmt.Sprintf("  [%.3f] %s  %s", c.SimilarityScore, c.Metadata[vectorstore.KeyFilename], c.ChunkID)))
		if showChunks {
			fmt.Fprintf(w, "    %s\n", oneLine(c.Content, 200))
		}
	}
	tokens := "n/a"
	if resp.TotalTokens != nil {
		tokens = strconv.Itoa(*resp.TotalTokens)
	}
	fmt.Fprintln(w, sourceStyle.Render(fmt.Sprintf("model %s, %.2fs, tokens %s", resp.ModelUsed, resp.ProcessingTime, tokens)))
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
