// Package embedding holds the wrappers shared by every embedding backend.
package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"ragbot/internal/domain"
)

// Throttled limits the request rate towards an embedding service.
type Throttled struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// NewThrottled wraps inner with a token bucket of rps requests per second.
// A non-positive rps disables throttling and returns inner unchanged.
func NewThrottled(inner domain.Embedder, rps float64, burst int) domain.Embedder {
	if rps <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttled) Name() string { return t.inner.Name() }

func (t *Throttled) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.EmbedDocuments(ctx, texts)
}

func (t *Throttled) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.EmbedQuery(ctx, text)
}

// Retrying retries failed embedding calls with exponential backoff.
type Retrying struct {
	inner      domain.Embedder
	maxRetries int
	baseDelay  time.Duration
}

// NewRetrying wraps inner so each call is attempted up to maxRetries+1 times.
func NewRetrying(inner domain.Embedder, maxRetries int) *Retrying {
	return &Retrying{inner: inner, maxRetries: maxRetries, baseDelay: 200 * time.Millisecond}
}

func (r *Retrying) Name() string { return r.inner.Name() }

func (r *Retrying) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, func() (err error) {
		out, err = r.inner.EmbedDocuments(ctx, texts)
		return err
	})
	return out, err
}

func (r *Retrying) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, func() (err error) {
		out, err = r.inner.EmbedQuery(ctx, text)
		return err
	})
	return out, err
}

func (r *Retrying) do(ctx context.Context, call func() error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if attempt == r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(retryDelay(r.baseDelay, attempt)):
		}
	}
	return err
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
