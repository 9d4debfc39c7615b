// Package telegram connects the assistant to the Telegram bot API.
package telegram

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"ragbot/internal/logger"
)

// Replier answers a question with text ready to send. Implementations never fail.
type Replier interface {
	Reply(ctx context.Context, question string) string
}

// Messages are the fixed replies that do not involve the assistant.
type Messages struct {
	Start  string
	Health string
	Error  string
}

// sender is the part of *bot.Bot used to reply.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

const sendTimeout = 10 * time.Second

// Handler routes updates to fixed replies or to the assistant. Each question
// is answered in its own goroutine; Wait blocks until all of them are done.
type Handler struct {
	replier  Replier
	messages Messages
	timeout  time.Duration
	log      *slog.Logger

	wg sync.WaitGroup
}

// NewHandler creates a Handler. timeout bounds one answer cycle; zero means two minutes.
func NewHandler(r Replier, messages Messages, timeout time.Duration, log *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{replier: r, messages: messages, timeout: timeout, log: log}
}

// Register installs the command handlers on b. Plain text goes through the
// default handler passed to bot.New; other commands are ignored.
func (h *Handler) Register(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "start", bot.MatchTypeCommandStartOnly, h.onStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "health", bot.MatchTypeCommandStartOnly, h.onHealth)
}

// Wait blocks until every in-flight answer has been sent.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) onStart(ctx context.Context, b *bot.Bot, u *models.Update) {
	h.fixed(ctx, b, u, h.messages.Start)
}

func (h *Handler) onHealth(ctx context.Context, b *bot.Bot, u *models.Update) {
	h.fixed(ctx, b, u, h.messages.Health)
}

// onText is the default handler.
func (h *Handler) onText(ctx context.Context, b *bot.Bot, u *models.Update) {
	h.handleText(ctx, b, u)
}

func (h *Handler) fixed(ctx context.Context, s sender, u *models.Update, text string) {
	if u.Message == nil {
		return
	}
	h.send(ctx, s, u.Message.Chat.ID, text)
}

func (h *Handler) handleText(ctx context.Context, s sender, u *models.Update) {
	if u.Message == nil {
		return
	}
	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		h.log.Debug("ignoring unknown command", "chat_id", u.Message.Chat.ID, "command", strings.Fields(text)[0])
		return
	}
	chatID := u.Message.Chat.ID
	question := u.Message.Text

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				h.log.Error("message handler panicked", "chat_id", chatID, "panic", p, "stack", string(debug.Stack()))
				h.send(ctx, s, chatID, h.messages.Error)
			}
		}()

		actx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		if _, err := s.SendChatAction(actx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
			h.log.Warn("send typing action", "chat_id", chatID, "err", err)
		}
		h.send(ctx, s, chatID, h.replier.Reply(actx, question))
	}()
}

// send delivers text even when the answer cycle used up its deadline.
func (h *Handler) send(ctx context.Context, s sender, chatID int64, text string) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	if _, err := s.SendMessage(sctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.log.Error("send message", "chat_id", chatID, "err", err)
	}
}
