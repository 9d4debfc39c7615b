package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ragbot/internal/config"
	"ragbot/internal/service"
	"ragbot/internal/telegram"
	"ragbot/internal/webhook"
)

func createServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Register the webhook and answer Telegram messages",
		Long:  "Validate the configuration, make sure the Telegram webhook points at this process, then serve updates on PORT until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := loadApp(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := a.cfg
	if err := cfg.Validate(config.ModeServe); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	assistant, retriever, err := buildAssistant(a)
	if err != nil {
		return err
	}

	handler := telegram.NewHandler(assistant, telegram.Messages{
		Start:  cfg.Bot.Messages.Start,
		Health: cfg.Bot.Messages.Health,
		Error:  cfg.Bot.Messages.Error,
	}, time.Duration(cfg.Bot.RequestTimeoutSecs)*time.Second, a.log.With("component", "telegram"))

	b, err := telegram.New(cfg.Bot.Token(), cfg.Bot.Secret(), handler, a.log.With("component", "telegram"))
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	mgr := webhook.NewManager(telegram.NewClient(b), webhook.Desired{
		URL:                cfg.Bot.WebhookURL(),
		Secret:             cfg.Bot.Secret(),
		DropPendingUpdates: cfg.Bot.DropPendingUpdates,
	}, time.Duration(cfg.Bot.WebhookTimeoutSecs)*time.Second, a.log.With("component", "webhook"))
	if err := mgr.Reconcile(ctx); err != nil {
		return err
	}

	go b.StartWebhook(ctx)

	if a.cfgPath != "" {
		go func() {
			err := config.Watch(ctx, a.cfgPath, a.log, func(next *config.AppConfig) {
				retriever.SetSources(sourceRefs(next.Sources.URLs))
			})
			if err != nil {
				a.log.Warn("config watch stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Bot.Port),
		Handler:           newMux(cfg.Bot.WebhookPath, b.WebhookHandler(), retriever),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", srv.Addr, "webhook", cfg.Bot.WebhookURL())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", "err", err)
	}
	handler.Wait()
	return nil
}

func newMux(webhookPath string, updates http.Handler, retriever *service.Retriever) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST "+webhookPath, updates)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "ok sources=%d\n", len(retriever.Sources()))
	})
	return mux
}
