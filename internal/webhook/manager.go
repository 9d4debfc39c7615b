// Package webhook keeps the bot's registered callback URL consistent with the
// one the running process serves.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/logger"
)

// State is a step of the registration state machine.
type State int

const (
	Unregistered State = iota
	Checking
	NoOp
	Registering
	Registered
	Failed
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Checking:
		return "checking"
	case NoOp:
		return "noop"
	case Registering:
		return "registering"
	case Registered:
		return "registered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AllUpdateTypes lists every update kind the bot platform can deliver.
var AllUpdateTypes = []string{
	"message",
	"edited_message",
	"channel_post",
	"edited_channel_post",
	"business_connection",
	"business_message",
	"edited_business_message",
	"deleted_business_messages",
	"message_reaction",
	"message_reaction_count",
	"inline_query",
	"chosen_inline_result",
	"callback_query",
	"shipping_query",
	"pre_checkout_query",
	"purchased_paid_media",
	"poll",
	"poll_answer",
	"my_chat_member",
	"chat_member",
	"chat_join_request",
	"chat_boost",
	"removed_chat_boost",
}

// Registration is the callback currently bound to the bot account.
type Registration struct {
	URL            string
	PendingUpdates int
}

// Desired is the registration the process wants in place.
type Desired struct {
	URL                string
	Secret             string
	DropPendingUpdates bool
	AllowedUpdates     []string
}

// Transport is the subset of the bot API the manager needs.
type Transport interface {
	GetWebhook(ctx context.Context) (Registration, error)
	SetWebhook(ctx context.Context, d Desired) error
}

// Manager reconciles the registered webhook with the desired one. It is safe
// for concurrent use; once registered, further reconciles do nothing.
type Manager struct {
	transport Transport
	desired   Desired
	timeout   time.Duration
	log       *slog.Logger

	mu    sync.Mutex
	state State
}

// NewManager creates a Manager. A zero timeout means 5 seconds per call and a
// nil AllowedUpdates means every update kind.
func NewManager(t Transport, desired Desired, timeout time.Duration, log *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if desired.AllowedUpdates == nil {
		desired.AllowedUpdates = AllUpdateTypes
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{transport: t, desired: desired, timeout: timeout, log: log}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reconcile checks the current registration and registers the desired URL
// only when it differs. Failures are returned as *domain.WebhookRegistrationError
// and leave the manager in Failed; there is no retry.
func (m *Manager) Reconcile(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Registered {
		return nil
	}

	m.transition(Checking)
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	current, err := m.transport.GetWebhook(cctx)
	cancel()
	if err != nil {
		return m.fail("get", err)
	}
	m.log.Info("current webhook", "url", current.URL, "pending_updates", current.PendingUpdates)

	if current.URL == m.desired.URL {
		m.transition(NoOp)
		m.transition(Registered)
		return nil
	}

	m.transition(Registering)
	sctx, cancel := context.WithTimeout(ctx, m.timeout)
	err = m.transport.SetWebhook(sctx, m.desired)
	cancel()
	if err != nil {
		return m.fail("set", err)
	}
	m.transition(Registered)
	m.log.Info("webhook registered", "url", m.desired.URL, "dropped_pending", m.desired.DropPendingUpdates)
	return nil
}

func (m *Manager) transition(s State) {
	m.log.Debug("webhook state", "from", m.state, "to", s)
	m.state = s
}

func (m *Manager) fail(op string, err error) error {
	m.transition(Failed)
	return &domain.WebhookRegistrationError{URL: m.desired.URL, Op: op, Err: err}
}
