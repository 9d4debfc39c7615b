package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEmbeddings(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "text-embedding-test", req.Model)

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Object string `json:"object"`
			Data   []item `json:"data"`
		}{Object: "list"}
		for i, in := range req.Input {
			resp.Data = append(resp.Data, item{Object: "embedding", Embedding: []float32{float32(len(in)), 1}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("RAGBOT_TEST_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "RAGBOT_TEST_KEY"})
	assert.Error(t, err)
}

func TestClient_EmbedDocumentsBatches(t *testing.T) {
	t.Setenv("RAGBOT_TEST_KEY", "sk-test")
	var calls atomic.Int32
	srv := fakeEmbeddings(t, &calls)

	c, err := NewClient(Config{
		BaseURL:   srv.URL + "/v1",
		APIKeyEnv: "RAGBOT_TEST_KEY",
		Model:     "text-embedding-test",
		BatchSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-test", c.Name())

	vecs, err := c.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1, 1}, vecs[0])
	assert.Equal(t, []float32{3, 1}, vecs[2])
	assert.Equal(t, int32(2), calls.Load())

	q, err := c.EmbedQuery(context.Background(), "dddd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, q)
}

func TestClient_ServerError(t *testing.T) {
	t.Setenv("RAGBOT_TEST_KEY", "sk-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "RAGBOT_TEST_KEY"})
	require.NoError(t, err)
	_, err = c.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
}
