package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyEmbedder struct {
	failures int
	calls    int
}

func (f *flakyEmbedder) Name() string { return "flaky" }

func (f *flakyEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("temporarily unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *flakyEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("temporarily unavailable")
	}
	return []float32{1}, nil
}

func TestRetrying_RecoversFromTransientErrors(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	r := NewRetrying(inner, 3)
	r.baseDelay = time.Millisecond

	vecs, err := r.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "flaky", r.Name())
}

func TestRetrying_GivesUp(t *testing.T) {
	inner := &flakyEmbedder{failures: 10}
	r := NewRetrying(inner, 2)
	r.baseDelay = time.Millisecond

	_, err := r.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	inner := &flakyEmbedder{failures: 10}
	r := NewRetrying(inner, 5)
	r.baseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.EmbedQuery(ctx, "q")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryDelay(t *testing.T) {
	base := 200 * time.Millisecond
	assert.Equal(t, 200*time.Millisecond, retryDelay(base, 0))
	assert.Equal(t, 800*time.Millisecond, retryDelay(base, 2))
	assert.Equal(t, 5*time.Second, retryDelay(base, 10))
}

func TestNewThrottled(t *testing.T) {
	inner := &flakyEmbedder{}
	assert.Same(t, inner, NewThrottled(inner, 0, 0))

	th := NewThrottled(inner, 1000, 2)
	_, err := th.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "flaky", th.Name())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewThrottled(&flakyEmbedder{}, 0.001, 1)
	_, _ = slow.EmbedQuery(context.Background(), "drain the bucket")
	_, err = slow.EmbedQuery(ctx, "q")
	assert.Error(t, err)
}
