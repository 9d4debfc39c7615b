package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSources is the policy corpus the bot answers from when nothing else is configured.
var DefaultSources = []string{
	"https://drive.google.com/uc?export=download&id=1AAqvlCYUVYxl5iRPTjCkRVcDRTFjpzq2",
	"https://drive.google.com/uc?export=download&id=1pFMjFmS-xlj9awXfXc3qc8Dh0xNv13cx",
	"https://drive.google.com/uc?export=download&id=1jviAI9BUkgVsb0dDQGvmZNXlFpVdMmxy",
}

// SourcesConfig lists the documents and how they are fetched.
type SourcesConfig struct {
	URLs             []string `yaml:"urls"`
	MaxPages         int      `yaml:"max_pages"`
	FetchTimeoutSecs int      `yaml:"fetch_timeout_secs"`
	MaxBytes         int64    `yaml:"max_bytes"`
	Concurrency      int      `yaml:"concurrency"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size      int    `yaml:"size"`
	Overlap   int    `yaml:"overlap"`
	Separator string `yaml:"separator"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// OllamaConfig contains connection details for an Ollama server.
type OllamaConfig struct {
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LocalEmbedderConfig configures the offline hashing embedder.
type LocalEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string                `yaml:"type"`
	RequestsPerSecond float64               `yaml:"requests_per_second"`
	Burst             int                   `yaml:"burst"`
	OpenAI            *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Ollama            *OllamaConfig         `yaml:"ollama,omitempty"`
	Local             *LocalEmbedderConfig  `yaml:"local,omitempty"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	TopK   int    `yaml:"top_k"`
	Metric string `yaml:"metric"`
}

// OpenAIGeneratorConfig holds configuration for the OpenAI chat model.
type OpenAIGeneratorConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ExtractiveConfig configures the offline sentence-extracting generator.
type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type        string                 `yaml:"type"`
	Temperature float64                `yaml:"temperature"`
	TimeoutSecs int                    `yaml:"timeout_secs"`
	OpenAI      *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
	Ollama      *OllamaConfig          `yaml:"ollama,omitempty"`
	Extractive  *ExtractiveConfig      `yaml:"extractive,omitempty"`
}

// AnswerConfig bounds the reply sent back to the user.
type AnswerConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// CacheConfig controls knowledge base reuse. A zero TTL rebuilds on every question.
type CacheConfig struct {
	TTLSecs int `yaml:"ttl_secs"`
}

// MessagesConfig holds the fixed bot replies.
type MessagesConfig struct {
	Start       string `yaml:"start"`
	Health      string `yaml:"health"`
	Error       string `yaml:"error"`
	NoDocuments string `yaml:"no_documents"`
}

// BotConfig configures the Telegram transport and its webhook.
type BotConfig struct {
	TokenEnv           string         `yaml:"token_env"`
	SecretEnv          string         `yaml:"secret_env"`
	PublicURL          string         `yaml:"public_url"`
	WebhookPath        string         `yaml:"webhook_path"`
	Port               int            `yaml:"port"`
	DropPendingUpdates bool           `yaml:"drop_pending_updates"`
	WebhookTimeoutSecs int            `yaml:"webhook_timeout_secs"`
	RequestTimeoutSecs int            `yaml:"request_timeout_secs"`
	Messages           MessagesConfig `yaml:"messages"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Sources   SourcesConfig   `yaml:"sources"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Generator GeneratorConfig `yaml:"generator"`
	Answer    AnswerConfig    `yaml:"answer"`
	Cache     CacheConfig     `yaml:"cache"`
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
}

// Token returns the bot token from the environment.
func (c BotConfig) Token() string { return os.Getenv(c.TokenEnv) }

// Secret returns the webhook secret from the environment.
func (c BotConfig) Secret() string { return os.Getenv(c.SecretEnv) }

// WebhookURL is the public URL Telegram delivers updates to.
func (c BotConfig) WebhookURL() string {
	if c.PublicURL == "" {
		return ""
	}
	return strings.TrimRight(c.PublicURL, "/") + c.WebhookPath
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragbot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overlays deployment environment variables onto cfg.
func ApplyEnv(cfg *AppConfig, getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Bot.Port = port
	}
	if v := getenv("RENDER_APP_NAME"); v != "" {
		cfg.Bot.PublicURL = "https://" + v + ".onrender.com"
	}
	if v := getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Bot.PublicURL = v
	}
	if v := getenv("DOCUMENT_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.Sources.URLs = urls
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragbot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Sources: SourcesConfig{
			URLs:             append([]string(nil), DefaultSources...),
			MaxPages:         20,
			FetchTimeoutSecs: 60,
			MaxBytes:         50 << 20,
			Concurrency:      3,
		},
		Chunker:   ChunkerConfig{Size: 1000, Overlap: 200, Separator: "\n"},
		Embedder:  EmbedderConfig{Type: "openai"},
		Retrieval: RetrievalConfig{TopK: 4, Metric: "cosine"},
		Generator: GeneratorConfig{Type: "openai", TimeoutSecs: 60},
		Answer:    AnswerConfig{MaxChars: 4000},
		Cache:     CacheConfig{TTLSecs: 3600},
		Bot: BotConfig{
			TokenEnv:           "TELEGRAM_TOKEN",
			SecretEnv:          "WEBHOOK_SECRET",
			WebhookPath:        "/webhook",
			Port:               10000,
			DropPendingUpdates: true,
			WebhookTimeoutSecs: 5,
			RequestTimeoutSecs: 120,
			Messages: MessagesConfig{
				Start:       "🤖 ¡Hola! Soy tu asistente de pólizas.",
				Health:      "✅ El bot está funcionando correctamente",
				Error:       "😔 Ocurrió un error procesando tu solicitud",
				NoDocuments: "📄 No pude cargar los documentos de pólizas. Inténtalo más tarde.",
			},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Sources.MaxPages <= 0 {
		cfg.Sources.MaxPages = 20
	}
	if cfg.Sources.FetchTimeoutSecs <= 0 {
		cfg.Sources.FetchTimeoutSecs = 60
	}
	if cfg.Sources.MaxBytes <= 0 {
		cfg.Sources.MaxBytes = 50 << 20
	}
	if cfg.Sources.Concurrency <= 0 {
		cfg.Sources.Concurrency = 3
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Answer.MaxChars <= 0 {
		cfg.Answer.MaxChars = 4000
	}
	if cfg.Generator.TimeoutSecs <= 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Bot.WebhookPath == "" {
		cfg.Bot.WebhookPath = "/webhook"
	} else if !strings.HasPrefix(cfg.Bot.WebhookPath, "/") {
		cfg.Bot.WebhookPath = "/" + cfg.Bot.WebhookPath
	}
	if cfg.Bot.WebhookTimeoutSecs <= 0 {
		cfg.Bot.WebhookTimeoutSecs = 5
	}
	if cfg.Bot.RequestTimeoutSecs <= 0 {
		cfg.Bot.RequestTimeoutSecs = 120
	}

	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		e := cfg.Embedder.OpenAI
		if e.BaseURL == "" {
			e.BaseURL = "https://api.openai.com/v1"
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "OPENAI_API_KEY"
		}
		if e.Model == "" {
			e.Model = "text-embedding-ada-002"
		}
		if e.TimeoutSecs == 0 {
			e.TimeoutSecs = 30
		}
		if e.BatchSize == 0 {
			e.BatchSize = 32
		}
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		o := cfg.Embedder.Ollama
		if o.Host == "" {
			o.Host = "http://localhost:11434"
		}
		if o.Model == "" {
			o.Model = "nomic-embed-text"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	case "local":
		if cfg.Embedder.Local == nil {
			cfg.Embedder.Local = &LocalEmbedderConfig{}
		}
		if cfg.Embedder.Local.Dimension <= 0 {
			cfg.Embedder.Local.Dimension = 256
		}
	}

	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		g := cfg.Generator.OpenAI
		if g.BaseURL == "" {
			g.BaseURL = "https://api.openai.com/v1"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "OPENAI_API_KEY"
		}
		if g.Model == "" {
			g.Model = "gpt-3.5-turbo"
		}
	case "ollama":
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaConfig{}
		}
		o := cfg.Generator.Ollama
		if o.Host == "" {
			o.Host = "http://localhost:11434"
		}
		if o.Model == "" {
			o.Model = "llama3.2"
		}
	case "extractive":
		if cfg.Generator.Extractive == nil {
			cfg.Generator.Extractive = &ExtractiveConfig{}
		}
		if cfg.Generator.Extractive.MaxSentences <= 0 {
			cfg.Generator.Extractive.MaxSentences = 5
		}
	}
}
