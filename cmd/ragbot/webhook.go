package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"ragbot/internal/config"
	"ragbot/internal/telegram"
	"ragbot/internal/webhook"
)

func createWebhookCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Inspect or reconcile the Telegram webhook registration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Register the configured webhook URL unless it is already in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, client, err := webhookClient(opts)
			if err != nil {
				return err
			}
			mgr := webhook.NewManager(client, webhook.Desired{
				URL:                a.cfg.Bot.WebhookURL(),
				Secret:             a.cfg.Bot.Secret(),
				DropPendingUpdates: a.cfg.Bot.DropPendingUpdates,
			}, time.Duration(a.cfg.Bot.WebhookTimeoutSecs)*time.Second, a.log)
			if err := mgr.Reconcile(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("webhook %s: %s\n", mgr.State(), a.cfg.Bot.WebhookURL())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Print the webhook currently registered for the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, client, err := webhookClient(opts)
			if err != nil {
				return err
			}
			reg, err := client.GetWebhook(cmd.Context())
			if err != nil {
				return fmt.Errorf("get webhook info: %w", err)
			}
			url := reg.URL
			if url == "" {
				url = "(none)"
			}
			fmt.Printf("registered: %s\npending updates: %d\ndesired: %s\n", url, reg.PendingUpdates, a.cfg.Bot.WebhookURL())
			return nil
		},
	})
	return cmd
}

func webhookClient(opts *rootOptions) (*app, *telegram.Client, error) {
	a, err := loadApp(opts, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	if err := a.cfg.Validate(config.ModeWebhook); err != nil {
		return nil, nil, fmt.Errorf("invalid config:\n%w", err)
	}
	b, err := bot.New(a.cfg.Bot.Token())
	if err != nil {
		return nil, nil, fmt.Errorf("create bot: %w", err)
	}
	return a, telegram.NewClient(b), nil
}
