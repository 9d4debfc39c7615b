// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"ragbot/internal/domain"
)

// Config contains connection details for an Ollama server.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// Client implements domain.Embedder on top of the Ollama API.
type Client struct {
	api   *api.Client
	model string
}

var _ domain.Embedder = (*Client)(nil)

// NewClient creates an embedder talking to cfg.Host.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &Client{
		api:   api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model: cfg.Model,
	}, nil
}

func (c *Client) Name() string { return "ollama:" + c.model }

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.EmbedQuery(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embeddings(ctx, &api.EmbeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	v := make([]float32, len(resp.Embedding))
	for i, x := range resp.Embedding {
		v[i] = float32(x)
	}
	return v, nil
}
