package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/tui"
)

func newChatCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: `Open an interactive console. Type a question and press Enter.

Console commands: /topk N, /doc [ID...], /clear, /help, /quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			p := tea.NewProgram(tui.NewModel(c, topK, timeout),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "initial number of evidence chunks")
	return cmd
}
