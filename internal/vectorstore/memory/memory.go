package memory

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"ragbot/internal/domain"
	"ragbot/internal/vectorstore"
)

// Index is an exact in-memory vector index. It is immutable after Build and
// safe for concurrent searches.
type Index struct {
	metric    vectorstore.Metric
	dimension int
	vectors   [][]float32
	norms     []float64
	chunks    []domain.Chunk
}

// Build validates one vector per chunk of a single non-zero dimension.
// Malformed input is reported as an embedding service error since vectors
// come straight from the embedder.
func Build(chunks []domain.Chunk, vectors [][]float32, metric vectorstore.Metric) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, &domain.EmbeddingError{
			Op:  "build index",
			Err: fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)),
		}
	}
	if len(chunks) == 0 {
		return nil, errors.New("cannot build an empty index")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, &domain.EmbeddingError{Op: "build index", Err: errors.New("empty vector")}
	}
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &domain.EmbeddingError{
				Op:  "build index",
				Err: fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim),
			}
		}
		norms[i] = norm(v)
	}
	return &Index{
		metric:    metric,
		dimension: dim,
		vectors:   vectors,
		norms:     norms,
		chunks:    chunks,
	}, nil
}

func (s *Index) Len() int { return len(s.chunks) }

func (s *Index) Dimension() int { return s.dimension }

// Search returns the topK nearest chunks by ascending distance. Equal
// distances are ordered by chunk ID.
func (s *Index) Search(vector []float32, topK int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, &domain.EmbeddingError{
			Op:  "search",
			Err: fmt.Errorf("query dimension %d, index dimension %d", len(vector), s.dimension),
		}
	}
	if topK <= 0 {
		topK = 4
	}
	qn := norm(vector)
	dist := make([]float64, len(s.vectors))
	for i := range s.vectors {
		dist[i] = s.distance(i, vector, qn)
	}
	idxs := make([]int, len(dist))
	for i := range idxs {
		idxs[i] = i
	}
	sort.Slice(idxs, func(a, b int) bool {
		da, db := dist[idxs[a]], dist[idxs[b]]
		if da != db {
			return da < db
		}
		return s.chunks[idxs[a]].ID < s.chunks[idxs[b]].ID
	})
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Distance: dist[j]})
	}
	return results, nil
}

func (s *Index) distance(i int, q []float32, qn float64) float64 {
	v := s.vectors[i]
	if s.metric == vectorstore.L2 {
		sum := 0.0
		for k := range v {
			d := float64(v[k]) - float64(q[k])
			sum += d * d
		}
		return math.Sqrt(sum)
	}
	if s.norms[i] == 0 || qn == 0 {
		return 1
	}
	return 1 - dot(v, q)/(s.norms[i]*qn)
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
