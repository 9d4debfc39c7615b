// Package service runs the question answering cycle: retrieve passages for a
// question, synthesize an answer, and map failures to user-facing replies.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/logger"
)

// PassageRetriever finds the passages relevant to a question.
type PassageRetriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]domain.SearchResult, error)
}

// AnswerSynthesizer writes an answer from retrieved passages.
type AnswerSynthesizer interface {
	Answer(ctx context.Context, question string, results []domain.SearchResult) (string, error)
}

// Messages are the fixed replies used when a cycle fails.
type Messages struct {
	Error       string
	NoDocuments string
}

// Answer is the outcome of one successful cycle.
type Answer struct {
	Text    string
	Results []domain.SearchResult
}

var errEmptyQuestion = errors.New("empty question")

// Assistant is the application context shared by every front end. It holds no
// per-request state and is safe for concurrent use.
type Assistant struct {
	retriever PassageRetriever
	synth     AnswerSynthesizer
	topK      int
	messages  Messages
	log       *slog.Logger
}

// NewAssistant creates an Assistant. A nil logger discards output.
func NewAssistant(r PassageRetriever, s AnswerSynthesizer, topK int, messages Messages, log *slog.Logger) *Assistant {
	if topK <= 0 {
		topK = 4
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Assistant{retriever: r, synth: s, topK: topK, messages: messages, log: log}
}

// Ask runs one answer cycle and returns the answer with the passages it was grounded on.
func (a *Assistant) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errEmptyQuestion
	}
	results, err := a.retriever.Retrieve(ctx, question, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	text, err := a.synth.Answer(ctx, question, results)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return &Answer{Text: text, Results: results}, nil
}

// Reply is the error boundary for chat front ends. It always returns text to
// send back: the answer, or a short message that leaks no internals. Panics
// are recovered and logged.
func (a *Assistant) Reply(ctx context.Context, question string) (reply string) {
	ctx, log := logger.WithRequest(ctx, a.log)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Error("answer cycle panicked", "panic", p, "stack", string(debug.Stack()))
			reply = a.messages.Error
		}
	}()

	ans, err := a.Ask(ctx, question)
	if err != nil {
		log.Error("answer cycle failed", "err", err, "took", time.Since(start))
		return a.failureMessage(err)
	}
	log.Info("answered", "passages", len(ans.Results), "chars", len([]rune(ans.Text)), "took", time.Since(start))
	return ans.Text
}

func (a *Assistant) failureMessage(err error) string {
	if errors.Is(err, domain.ErrNoUsableDocuments) && a.messages.NoDocuments != "" {
		return a.messages.NoDocuments
	}
	return a.messages.Error
}
