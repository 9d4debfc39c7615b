package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"

	"ragbot/internal/logger"
	"ragbot/internal/webhook"
)

// New creates a bot that checks the webhook secret on every update and routes
// them to h. Extra options are appended, mainly for tests.
func New(token, secret string, h *Handler, log *slog.Logger, extra ...bot.Option) (*bot.Bot, error) {
	if log == nil {
		log = logger.Discard()
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(h.onText),
		bot.WithWebhookSecretToken(secret),
		bot.WithErrorsHandler(func(err error) {
			log.Error("telegram", "err", err)
		}),
	}
	b, err := bot.New(token, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	h.Register(b)
	return b, nil
}

// Client exposes the webhook calls of the bot API to the webhook manager.
type Client struct {
	b *bot.Bot
}

var _ webhook.Transport = (*Client)(nil)

// NewClient wraps b.
func NewClient(b *bot.Bot) *Client { return &Client{b: b} }

func (c *Client) GetWebhook(ctx context.Context) (webhook.Registration, error) {
	info, err := c.b.GetWebhookInfo(ctx)
	if err != nil {
		return webhook.Registration{}, err
	}
	return webhook.Registration{URL: info.URL, PendingUpdates: info.PendingUpdateCount}, nil
}

func (c *Client) SetWebhook(ctx context.Context, d webhook.Desired) error {
	ok, err := c.b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:                d.URL,
		SecretToken:        d.Secret,
		AllowedUpdates:     d.AllowedUpdates,
		DropPendingUpdates: d.DropPendingUpdates,
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("setWebhook returned false")
	}
	return nil
}
