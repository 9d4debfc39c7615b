package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
	"ragbot/internal/vectorstore"
)

func chunks(n int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{ID: i, Text: string(rune('a' + i))}
	}
	return out
}

func TestBuild_Validation(t *testing.T) {
	t.Run("count mismatch", func(t *testing.T) {
		_, err := Build(chunks(2), [][]float32{{1, 0}}, vectorstore.Cosine)
		assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Build(chunks(2), [][]float32{{1, 0}, {1, 0, 0}}, vectorstore.Cosine)
		assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	})

	t.Run("empty vector", func(t *testing.T) {
		_, err := Build(chunks(1), [][]float32{{}}, vectorstore.Cosine)
		assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	})

	t.Run("no chunks", func(t *testing.T) {
		_, err := Build(nil, nil, vectorstore.Cosine)
		assert.Error(t, err)
	})

	t.Run("ok", func(t *testing.T) {
		idx, err := Build(chunks(3), [][]float32{{1, 0}, {0, 1}, {1, 1}}, vectorstore.Cosine)
		require.NoError(t, err)
		assert.Equal(t, 3, idx.Len())
		assert.Equal(t, 2, idx.Dimension())
	})
}

func TestSearch_Cosine(t *testing.T) {
	idx, err := Build(chunks(3), [][]float32{{1, 0}, {0, 1}, {1, 1}}, vectorstore.Cosine)
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 0, res[0].Chunk.ID)
	assert.Equal(t, 2, res[1].Chunk.ID)
	assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
}

func TestSearch_L2(t *testing.T) {
	idx, err := Build(chunks(3), [][]float32{{0, 0}, {3, 4}, {10, 10}}, vectorstore.L2)
	require.NoError(t, err)

	res, err := idx.Search([]float32{3, 4}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []int{1, 0, 2}, []int{res[0].Chunk.ID, res[1].Chunk.ID, res[2].Chunk.ID})
	assert.InDelta(t, 0.0, res[0].Distance, 1e-9)
	assert.InDelta(t, 5.0, res[1].Distance, 1e-9)
}

func TestSearch_TiesPreferLowerID(t *testing.T) {
	vecs := [][]float32{{0, 1}, {1, 0}, {1, 0}, {1, 0}}
	idx, err := Build(chunks(4), vecs, vectorstore.Cosine)
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].Chunk.ID)
	assert.Equal(t, 2, res[1].Chunk.ID)
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	idx, err := Build(chunks(2), [][]float32{{1, 0}, {0, 1}}, vectorstore.Cosine)
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestSearch_ZeroVectorHasDistanceOne(t *testing.T) {
	idx, err := Build(chunks(2), [][]float32{{0, 0}, {1, 0}}, vectorstore.Cosine)
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res[0].Chunk.ID)
	assert.InDelta(t, 1.0, res[1].Distance, 1e-9)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx, err := Build(chunks(1), [][]float32{{1, 0}}, vectorstore.Cosine)
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestParseMetric(t *testing.T) {
	m, err := vectorstore.ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, vectorstore.Cosine, m)

	m, err = vectorstore.ParseMetric("L2")
	require.NoError(t, err)
	assert.Equal(t, vectorstore.L2, m)

	_, err = vectorstore.ParseMetric("dot")
	assert.Error(t, err)
}
