// Package ollama generates answers with a chat model served by Ollama.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"ragbot/internal/domain"
)

// Config contains connection details for an Ollama server.
type Config struct {
	Host  string
	Model string
}

// Generator implements domain.Generator with the Ollama chat endpoint.
type Generator struct {
	api   *api.Client
	model string
}

var _ domain.Generator = (*Generator)(nil)

// New creates a generator for cfg.Model. Calls are bounded by the caller's context.
func New(cfg Config) (*Generator, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &Generator{api: api.NewClient(base, &http.Client{}), model: cfg.Model}, nil
}

func (g *Generator) Name() string { return "ollama:" + g.model }

// Generate sends the instructions, the passages as context and the question
// as separate chat messages.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	stream := false
	options := map[string]interface{}{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	chat := &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: req.System},
			{Role: "system", Content: "CONTENT:\n" + strings.Join(req.Passages, "\n\n")},
			{Role: "user", Content: req.Question},
		},
		Options: options,
		Stream:  &stream,
	}
	var sb strings.Builder
	err := g.api.Chat(ctx, chat, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
