package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"ragbot/internal/acquire"
	"ragbot/internal/chunker"
	"ragbot/internal/config"
	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/embedding/local"
	"ragbot/internal/embedding/ollama"
	"ragbot/internal/embedding/openai"
	"ragbot/internal/llm/extractive"
	llmollama "ragbot/internal/llm/ollama"
	llmopenai "ragbot/internal/llm/openai"
	"ragbot/internal/logger"
	"ragbot/internal/service"
	"ragbot/internal/synthesizer"
	"ragbot/internal/vectorstore"
)

const embedRetries = 3

// app is the loaded configuration and logger shared by every subcommand.
type app struct {
	cfg     *config.AppConfig
	cfgPath string
	log     *slog.Logger
}

func loadApp(opts *rootOptions, logOut io.Writer) (*app, error) {
	var (
		cfg  *config.AppConfig
		path = opts.configPath
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	log, err := logger.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	log.Debug("config loaded", "path", path)
	return &app{cfg: cfg, cfgPath: path, log: log}, nil
}

func sourceRefs(urls []string) []domain.SourceRef {
	refs := make([]domain.SourceRef, len(urls))
	for i, u := range urls {
		refs[i] = domain.SourceRef(u)
	}
	return refs
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "local":
		return local.NewEmbedder(cfg.Embedder.Local.Dimension), nil
	case "openai":
		e := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:   e.BaseURL,
			APIKeyEnv: e.APIKeyEnv,
			Model:     e.Model,
			Timeout:   time.Duration(e.TimeoutSecs) * time.Second,
			BatchSize: e.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	case "ollama":
		o := cfg.Embedder.Ollama
		client, err := ollama.NewClient(ollama.Config{
			Host:    o.Host,
			Model:   o.Model,
			Timeout: time.Duration(o.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
	// retries and throttling only wrap remote backends
	emb = embedding.NewRetrying(emb, embedRetries)
	return embedding.NewThrottled(emb, cfg.Embedder.RequestsPerSecond, cfg.Embedder.Burst), nil
}

func buildGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "extractive":
		return extractive.New(cfg.Generator.Extractive.MaxSentences), nil
	case "openai":
		g := cfg.Generator.OpenAI
		gen, err := llmopenai.New(llmopenai.Config{
			BaseURL:   g.BaseURL,
			APIKeyEnv: g.APIKeyEnv,
			Model:     g.Model,
			MaxTokens: g.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		return gen, nil
	case "ollama":
		gen, err := llmollama.New(llmollama.Config{Host: cfg.Generator.Ollama.Host, Model: cfg.Generator.Ollama.Model})
		if err != nil {
			return nil, fmt.Errorf("ollama generator init failed: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
}

// buildAssistant assembles the answering pipeline from configuration.
func buildAssistant(a *app) (*service.Assistant, *service.Retriever, error) {
	cfg := a.cfg

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	gen, err := buildGenerator(cfg)
	if err != nil {
		return nil, nil, err
	}
	ch, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap, chunker.WithSeparator(cfg.Chunker.Separator))
	if err != nil {
		return nil, nil, fmt.Errorf("chunker: %w", err)
	}
	metric, err := vectorstore.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		return nil, nil, err
	}

	acq := acquire.New(acquire.Config{
		MaxPages:     cfg.Sources.MaxPages,
		FetchTimeout: time.Duration(cfg.Sources.FetchTimeoutSecs) * time.Second,
		MaxBytes:     cfg.Sources.MaxBytes,
		Concurrency:  cfg.Sources.Concurrency,
	}, acquire.WithLogger(a.log.With("component", "acquire")))

	retriever := service.NewRetriever(acq, ch, emb, sourceRefs(cfg.Sources.URLs), service.RetrieverConfig{
		ChunkSize:    cfg.Chunker.Size,
		ChunkOverlap: cfg.Chunker.Overlap,
		Separator:    cfg.Chunker.Separator,
		Metric:       metric,
		TopK:         cfg.Retrieval.TopK,
		CacheTTL:     time.Duration(cfg.Cache.TTLSecs) * time.Second,
	}, a.log.With("component", "retriever"))

	synth := synthesizer.New(gen, synthesizer.Config{
		MaxChars:    cfg.Answer.MaxChars,
		Timeout:     time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		Temperature: cfg.Generator.Temperature,
	}, a.log.With("component", "synthesizer"))

	assistant := service.NewAssistant(retriever, synth, cfg.Retrieval.TopK, service.Messages{
		Error:       cfg.Bot.Messages.Error,
		NoDocuments: cfg.Bot.Messages.NoDocuments,
	}, a.log)

	a.log.Info("assistant ready",
		"sources", len(cfg.Sources.URLs),
		"embedder", emb.Name(),
		"generator", gen.Name(),
		"metric", metric,
		"cache_ttl_secs", cfg.Cache.TTLSecs)
	return assistant, retriever, nil
}
