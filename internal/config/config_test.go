package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultSources_PolicyCorpus(t *testing.T) {
	assert.Equal(t, []string{
		"https://drive.google.com/uc?export=download&id=1AAqvlCYUVYxl5iRPTjCkRVcDRTFjpzq2",
		"https://drive.google.com/uc?export=download&id=1pFMjFmS-xlj9awXfXc3qc8Dh0xNv13cx",
		"https://drive.google.com/uc?export=download&id=1jviAI9BUkgVsb0dDQGvmZNXlFpVdMmxy",
	}, DefaultSources)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSources, cfg.Sources.URLs)
	assert.Equal(t, 20, cfg.Sources.MaxPages)
	assert.Equal(t, 60, cfg.Sources.FetchTimeoutSecs)
	assert.Equal(t, 1000, cfg.Chunker.Size)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, "\n", cfg.Chunker.Separator)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 4000, cfg.Answer.MaxChars)
	assert.Equal(t, 3600, cfg.Cache.TTLSecs)
	assert.Equal(t, 10000, cfg.Bot.Port)
	assert.Equal(t, "/webhook", cfg.Bot.WebhookPath)
	assert.True(t, cfg.Bot.DropPendingUpdates)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
sources:
  urls: ["https://example.com/a.pdf"]
chunker:
  size: 500
cache:
  ttl_secs: 0
embedder:
  type: local
generator:
  type: extractive
bot:
  webhook_path: hook
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/a.pdf"}, cfg.Sources.URLs)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, 0, cfg.Cache.TTLSecs)
	require.NotNil(t, cfg.Embedder.Local)
	assert.Equal(t, 256, cfg.Embedder.Local.Dimension)
	require.NotNil(t, cfg.Generator.Extractive)
	assert.Equal(t, 5, cfg.Generator.Extractive.MaxSentences)
	assert.Equal(t, "/hook", cfg.Bot.WebhookPath)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "sources: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.TopK = 7

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Retrieval.TopK)
	assert.Equal(t, cfg.Bot.Messages, loaded.Bot.Messages)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":            "8080",
		"RENDER_APP_NAME": "polizas",
		"DOCUMENT_URLS":   " https://a/1.pdf , ,https://b/2.pdf",
		"LOG_LEVEL":       "debug",
	}
	cfg := defaultConfig()
	require.NoError(t, ApplyEnv(cfg, func(k string) string { return env[k] }))

	assert.Equal(t, 8080, cfg.Bot.Port)
	assert.Equal(t, "https://polizas.onrender.com", cfg.Bot.PublicURL)
	assert.Equal(t, "https://polizas.onrender.com/webhook", cfg.Bot.WebhookURL())
	assert.Equal(t, []string{"https://a/1.pdf", "https://b/2.pdf"}, cfg.Sources.URLs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnv_PublicBaseURLWins(t *testing.T) {
	env := map[string]string{
		"RENDER_APP_NAME": "polizas",
		"PUBLIC_BASE_URL": "https://bot.example.com/",
	}
	cfg := defaultConfig()
	require.NoError(t, ApplyEnv(cfg, func(k string) string { return env[k] }))
	assert.Equal(t, "https://bot.example.com/webhook", cfg.Bot.WebhookURL())
}

func TestApplyEnv_BadPort(t *testing.T) {
	cfg := defaultConfig()
	err := ApplyEnv(cfg, func(k string) string {
		if k == "PORT" {
			return "eighty"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	t.Run("defaults valid for ask", func(t *testing.T) {
		assert.NoError(t, defaultConfig().Validate(ModeAsk))
	})

	t.Run("serve needs public url", func(t *testing.T) {
		cfg := defaultConfig()
		err := cfg.Validate(ModeServe)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bot.public_url")

		cfg.Bot.PublicURL = "https://bot.example.com"
		assert.NoError(t, cfg.Validate(ModeServe))
	})

	t.Run("aggregates problems", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Sources.URLs = nil
		cfg.Chunker.Overlap = cfg.Chunker.Size
		cfg.Retrieval.Metric = "dot"
		err := cfg.Validate(ModeAsk)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sources.urls")
		assert.Contains(t, err.Error(), "chunker.overlap")
		assert.Contains(t, err.Error(), "retrieval.metric")
	})

	t.Run("missing secrets", func(t *testing.T) {
		t.Setenv("TELEGRAM_TOKEN", "")
		t.Setenv("WEBHOOK_SECRET", "")
		cfg := defaultConfig()
		cfg.Bot.PublicURL = "https://bot.example.com"
		err := cfg.Validate(ModeServe)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
		assert.Contains(t, err.Error(), "WEBHOOK_SECRET")
	})

	t.Run("webhook mode skips pipeline", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Sources.URLs = nil
		cfg.Bot.PublicURL = "https://bot.example.com"
		assert.NoError(t, cfg.Validate(ModeWebhook))
	})

	t.Run("non http source", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Sources.URLs = []string{"ftp://x/y.pdf"}
		assert.Error(t, cfg.Validate(ModeAsk))
	})
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "sources:\n  urls: [\"https://a/1.pdf\"]\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen [][]string
	)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, log, func(cfg *AppConfig) {
			mu.Lock()
			seen = append(seen, cfg.Sources.URLs)
			mu.Unlock()
		})
	}()

	want := []string{"https://b/2.pdf"}
	// the watcher may not be registered yet, so keep rewriting until it reports
	require.Eventually(t, func() bool {
		writeFile(t, path, "sources:\n  urls: [\"https://b/2.pdf\"]\n")
		mu.Lock()
		defer mu.Unlock()
		for _, urls := range seen {
			if assert.ObjectsAreEqual(want, urls) {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
