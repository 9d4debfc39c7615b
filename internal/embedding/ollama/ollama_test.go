package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Embeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "nomic-embed-text", req.Model)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{float64(len(req.Prompt)), 0.5}})
	}))
	defer srv.Close()

	c, err := NewClient(Config{Host: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", c.Name())

	vecs, err := c.EmbedDocuments(context.Background(), []string{"ab", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 0.5}, {4, 0.5}}, vecs)
}

func TestClient_EmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Host: srv.URL})
	require.NoError(t, err)
	_, err = c.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Host: srv.URL})
	require.NoError(t, err)
	_, err = c.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
}
