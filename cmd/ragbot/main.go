package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	_ = godotenv.Load()

	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "ragbot",
		Short:         "Answer questions about a fixed set of policy documents",
		Long:          "ragbot downloads the configured documents, indexes them and answers questions grounded in them, over a Telegram webhook or from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragbot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(createServeCommand(opts))
	rootCmd.AddCommand(createAskCommand(opts))
	rootCmd.AddCommand(createConsoleCommand(opts))
	rootCmd.AddCommand(createWebhookCommand(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
