package main

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragbot/internal/config"
	"ragbot/internal/tui"
)

func createConsoleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Ask questions in an interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// log records would draw over the UI
			a, err := loadApp(opts, io.Discard)
			if err != nil {
				return err
			}
			if err := a.cfg.Validate(config.ModeAsk); err != nil {
				return fmt.Errorf("invalid config:\n%w", err)
			}
			assistant, _, err := buildAssistant(a)
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d sources, embedder %s, generator %s",
				len(a.cfg.Sources.URLs), a.cfg.Embedder.Type, a.cfg.Generator.Type)
			m := tui.New(assistant, summary, time.Duration(a.cfg.Bot.RequestTimeoutSecs)*time.Second)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}
