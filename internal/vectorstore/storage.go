package vectorstore

import (
	"fmt"
	"strings"

	"ragbot/internal/domain"
)

// Metric selects the distance function used for similarity search.
type Metric string

const (
	Cosine Metric = "cosine"
	L2     Metric = "l2"
)

// ParseMetric maps a config value to a Metric. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", Cosine:
		return Cosine, nil
	case L2:
		return L2, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// Index is a built, read-only nearest-neighbour structure over chunks.
type Index interface {
	Search(vector []float32, topK int) ([]domain.SearchResult, error)
	Len() int
	Dimension() int
}
