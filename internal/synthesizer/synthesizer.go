// Package synthesizer turns retrieved passages and a question into one bounded answer.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/logger"
)

// DefaultMaxChars is the reply ceiling imposed by the chat transport.
const DefaultMaxChars = 4000

// DefaultSystemPrompt grounds the model in the numbered passages.
const DefaultSystemPrompt = `You answer questions about insurance policies using only the numbered passages provided.
Answer in the same language as the question.
If the passages do not contain the answer, say that you do not know instead of guessing.
Finish with a line starting with "SOURCES:" that lists the sources of the passages you used.`

// Config configures answer synthesis.
type Config struct {
	MaxChars     int
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Synthesizer calls the generator once per question. It never retries.
type Synthesizer struct {
	gen domain.Generator
	cfg Config
	log *slog.Logger
}

// New creates a Synthesizer. A nil logger discards output.
func New(gen domain.Generator, cfg Config, log *slog.Logger) *Synthesizer {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Synthesizer{gen: gen, cfg: cfg, log: log}
}

// Answer generates a reply grounded in results and truncates it to the configured ceiling.
// Any generator failure, timeout or blank output is returned as a *domain.GenerationError.
func (s *Synthesizer) Answer(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	req := BuildRequest(question, results, s.cfg)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.gen.Generate(ctx, req)
	if err != nil {
		return "", &domain.GenerationError{Backend: s.gen.Name(), Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &domain.GenerationError{Backend: s.gen.Name(), Err: errors.New("empty answer")}
	}
	answer := Truncate(out, s.cfg.MaxChars)
	s.log.Debug("answer generated",
		"backend", s.gen.Name(),
		"passages", len(results),
		"chars", len([]rune(answer)),
		"truncated", len(answer) < len(out),
		"took", time.Since(start))
	return answer, nil
}

// BuildRequest renders the "stuff" prompt: every passage numbered with its
// source, followed by the question.
func BuildRequest(question string, results []domain.SearchResult, cfg Config) domain.GenerationRequest {
	var sb strings.Builder
	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Chunk.Text
		fmt.Fprintf(&sb, "[%d] (source: %s", i+1, r.Chunk.Source)
		if r.Chunk.Page > 0 {
			fmt.Fprintf(&sb, ", page %d", r.Chunk.Page)
		}
		sb.WriteString(")\n")
		sb.WriteString(strings.TrimSpace(r.Chunk.Text))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")

	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return domain.GenerationRequest{
		System:      system,
		Prompt:      sb.String(),
		Question:    question,
		Passages:    passages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// Truncate returns at most max runes of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
