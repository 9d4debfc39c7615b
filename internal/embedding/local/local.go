// Package local provides an offline embedder. It hashes word tokens into a
// fixed number of buckets, so no corpus preparation is needed and vectors
// built at different times stay comparable.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"math"
	"slices"

	"ragbot/internal/domain"
	"ragbot/internal/textutil"
)

// DefaultDimension is the number of hash buckets used when none is given.
const DefaultDimension = 256

// Embedder implements sublinear TF bag-of-words hashing.
type Embedder struct {
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder producing vectors of the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name identifies the embedder and its dimension, which is part of the cache key.
func (e *Embedder) Name() string { return fmt.Sprintf("local-%d", e.dimension) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *Embedder) embed(text string) []float32 {
	tf := make(map[string]int)
	for _, tok := range textutil.Tokenize(text) {
		tf[tok]++
	}
	// fixed summation order keeps colliding buckets bit-for-bit reproducible
	tokens := slices.Sorted(maps.Keys(tf))
	vec := make([]float64, e.dimension)
	for _, tok := range tokens {
		count := tf[tok]
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		// the top bit picks the sign so colliding tokens tend to cancel
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[idx] += sign * (1 + math.Log(float64(count)))
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, e.dimension)
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}
