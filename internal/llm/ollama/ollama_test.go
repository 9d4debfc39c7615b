package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
)

func TestGenerator_Generate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Stream   *bool  `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Options map[string]any `json:"options"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Sí, está cubierto."},"done":true}`))
	}))
	defer srv.Close()

	g, err := New(Config{Host: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ollama:llama3.2", g.Name())

	answer, err := g.Generate(context.Background(), domain.GenerationRequest{
		System:   "Responde con los pasajes.",
		Question: "¿Está cubierto?",
		Passages: []string{"uno", "dos"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sí, está cubierto.", answer)

	require.Len(t, got.Messages, 3)
	assert.Equal(t, "CONTENT:\nuno\n\ndos", got.Messages[1].Content)
	assert.Equal(t, "user", got.Messages[2].Role)
	require.NotNil(t, got.Stream)
	assert.False(t, *got.Stream)
	assert.Equal(t, float64(0), got.Options["temperature"])
}

func TestGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"llama3.2\" not found"}`))
	}))
	defer srv.Close()

	g, err := New(Config{Host: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), domain.GenerationRequest{Question: "q"})
	assert.Error(t, err)
}
