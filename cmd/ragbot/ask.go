package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ragbot/internal/config"
	"ragbot/internal/service"
)

func createAskCommand(opts *rootOptions) *cobra.Command {
	var showPassages bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the terminal",
		Long:  "Run one full answer cycle (fetch, index, retrieve, generate) and print the answer with the passages it was grounded on.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, os.Stderr)
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

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(a.cfg.Bot.RequestTimeoutSecs)*time.Second)
			defer cancel()
			ans, err := assistant.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				color.New(color.FgRed).Fprintln(os.Stderr, "could not answer:", err)
				return err
			}
			printAnswer(ans, showPassages)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showPassages, "passages", "p", false, "Print the retrieved passages in full")
	return cmd
}

func printAnswer(ans *service.Answer, showPassages bool) {
	heading := color.New(color.FgGreen, color.Bold)
	dim := color.New(color.FgHiBlack)
	source := color.New(color.FgCyan)

	heading.Println("Answer")
	fmt.Println(ans.Text)
	fmt.Println()
	heading.Println("Passages")
	for i, r := range ans.Results {
		source.Printf("[%d] %s, page %d", i+1, r.Chunk.Source, r.Chunk.Page)
		dim.Printf("  distance=%.3f\n", r.Distance)
		if showPassages {
			fmt.Println(strings.TrimSpace(r.Chunk.Text))
			fmt.Println()
		}
	}
}
