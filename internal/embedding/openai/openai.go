// Package openai embeds text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"ragbot/internal/domain"
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	model    string
	embedder *embeddings.EmbedderImpl
}

var _ domain.Embedder = (*Client)(nil)

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-ada-002"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	llm, err := lcopenai.New(
		lcopenai.WithToken(key),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithEmbeddingModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Client{model: cfg.Model, embedder: emb}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// EmbedDocuments embeds texts in batches. One vector is returned per text.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	// the embedder rewrites newlines in place
	vecs, err := c.embedder.EmbedDocuments(ctx, append([]string(nil), texts...))
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// EmbedQuery embeds a single question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embedder.EmbedQuery(ctx, text)
}
