package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Mode names what the process is about to do; serving needs more settings than asking.
type Mode int

const (
	ModeAsk Mode = iota
	ModeServe
	ModeWebhook
)

// Validate reports every configuration problem at once. ModeWebhook only
// checks the bot settings.
func (c *AppConfig) Validate(mode Mode) error {
	var errs []error
	if mode != ModeWebhook {
		errs = c.validatePipeline()
	}

	if mode == ModeServe || mode == ModeWebhook {
		if c.Bot.Token() == "" {
			errs = append(errs, fmt.Errorf("bot: %s is not set", c.Bot.TokenEnv))
		}
		if c.Bot.Secret() == "" {
			errs = append(errs, fmt.Errorf("bot: %s is not set", c.Bot.SecretEnv))
		}
		if c.Bot.PublicURL == "" {
			errs = append(errs, errors.New("bot.public_url: required (or set PUBLIC_BASE_URL / RENDER_APP_NAME)"))
		} else if u, err := url.Parse(c.Bot.PublicURL); err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("bot.public_url: %q must be an https URL", c.Bot.PublicURL))
		}
	}
	if mode == ModeServe && (c.Bot.Port <= 0 || c.Bot.Port > 65535) {
		errs = append(errs, fmt.Errorf("bot.port: %d is out of range", c.Bot.Port))
	}

	return errors.Join(errs...)
}

func (c *AppConfig) validatePipeline() []error {
	var errs []error

	if len(c.Sources.URLs) == 0 {
		errs = append(errs, errors.New("sources.urls: at least one source is required"))
	}
	for _, raw := range c.Sources.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("sources.urls: %q is not an http(s) URL", raw))
		}
	}
	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunker.size: must be positive, got %d", c.Chunker.Size))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker.overlap: must be in [0, size), got %d", c.Chunker.Overlap))
	}
	switch strings.ToLower(c.Retrieval.Metric) {
	case "", "cosine", "l2":
	default:
		errs = append(errs, fmt.Errorf("retrieval.metric: unknown metric %q", c.Retrieval.Metric))
	}
	if c.Cache.TTLSecs < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_secs: must not be negative, got %d", c.Cache.TTLSecs))
	}

	switch c.Embedder.Type {
	case "openai":
		if os.Getenv(c.Embedder.OpenAI.APIKeyEnv) == "" {
			errs = append(errs, fmt.Errorf("embedder.openai: %s is not set", c.Embedder.OpenAI.APIKeyEnv))
		}
	case "ollama", "local":
	default:
		errs = append(errs, fmt.Errorf("embedder.type: unknown embedder %q", c.Embedder.Type))
	}

	switch c.Generator.Type {
	case "openai":
		if os.Getenv(c.Generator.OpenAI.APIKeyEnv) == "" {
			errs = append(errs, fmt.Errorf("generator.openai: %s is not set", c.Generator.OpenAI.APIKeyEnv))
		}
	case "ollama", "extractive":
	default:
		errs = append(errs, fmt.Errorf("generator.type: unknown generator %q", c.Generator.Type))
	}
	return errs
}
