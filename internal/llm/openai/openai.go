// Package openai generates answers with an OpenAI-compatible chat model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"ragbot/internal/domain"
)

// Config configures the chat model.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
}

// Generator implements domain.Generator with langchaingo.
type Generator struct {
	llm       llms.Model
	model     string
	maxTokens int
}

var _ domain.Generator = (*Generator)(nil)

// New creates a chat generator. The HTTP client carries no timeout; callers
// bound each call through the context.
func New(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	llm, err := lcopenai.New(
		lcopenai.WithToken(key),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{}),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return &Generator{llm: llm, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

func (g *Generator) Name() string { return "openai:" + g.model }

// Generate sends the system instructions and the rendered prompt as one chat turn.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}
	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	resp, err := g.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return resp.Choices[0].Content, nil
}
