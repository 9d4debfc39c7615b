package chunker

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
)

// alphabet text without separators so windows are never re-cut.
func plainText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	return sb.String()
}

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := New(DefaultChunkSize, DefaultChunkOverlap)
		require.NoError(t, err)
		assert.Equal(t, 1000, c.size)
		assert.Equal(t, 200, c.overlap)
		assert.Equal(t, []rune("\n"), c.separator)
	})

	t.Run("overlap equal to size", func(t *testing.T) {
		_, err := New(100, 100)
		assert.Error(t, err)
	})

	t.Run("negative overlap", func(t *testing.T) {
		_, err := New(100, -1)
		assert.Error(t, err)
	})

	t.Run("zero size", func(t *testing.T) {
		_, err := New(0, 0)
		assert.Error(t, err)
	})

	t.Run("custom separator", func(t *testing.T) {
		c, err := New(10, 2, WithSeparator(". "))
		require.NoError(t, err)
		assert.Equal(t, []rune(". "), c.separator)
	})
}

func TestSplit_Empty(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	assert.Empty(t, c.Split(""))
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)
	text := strings.Repeat("line of policy text\n", 40)

	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
}

func TestSplit_ChunkCount(t *testing.T) {
	params := []struct{ size, overlap int }{
		{10, 0}, {10, 3}, {10, 9}, {7, 2}, {1000, 200},
	}
	for _, p := range params {
		c, err := New(p.size, p.overlap)
		require.NoError(t, err)
		for _, length := range []int{p.overlap + 1, p.size, p.size + 1, 3*p.size + 5, 2500} {
			chunks := c.Split(plainText(length))
			want := int(math.Ceil(float64(length-p.overlap) / float64(p.size-p.overlap)))
			assert.Len(t, chunks, want, "size=%d overlap=%d length=%d", p.size, p.overlap, length)
		}
	}
}

func TestSplit_WindowsAndOverlap(t *testing.T) {
	c, err := New(10, 4)
	require.NoError(t, err)
	text := plainText(37)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 10)
		assert.True(t, strings.HasPrefix(text[i*6:], ch), "chunk %d must start at offset %d", i, i*6)
		if i > 0 {
			prev := chunks[i-1]
			assert.Equal(t, prev[len(prev)-4:], ch[:4], "overlap between %d and %d", i-1, i)
		}
	}

	// first chunk plus the non-overlapping tail of every other chunk rebuilds the text
	var sb strings.Builder
	sb.WriteString(chunks[0])
	for _, ch := range chunks[1:] {
		sb.WriteString(ch[4:])
	}
	assert.Equal(t, text, sb.String())
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)
	chunks := c.Split("short")
	assert.Equal(t, []string{"short"}, chunks)
}

func TestSplit_PrefersSeparator(t *testing.T) {
	c, err := New(10, 4)
	require.NoError(t, err)

	chunks := c.Split("abcdefgh\nijklmnopqrstu")
	assert.Equal(t, []string{"abcdefgh", "gh\nijklmno", "lmnopqrstu"}, chunks)
}

func TestSplit_SeparatorOutsideTailIsIgnored(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	// newline at index 2 is before the next window start (8), so cut at the hard limit
	chunks := c.Split("ab\ncdefghijklmnop")
	require.NotEmpty(t, chunks)
	assert.Equal(t, "ab\ncdefghi", chunks[0])
}

func TestSplit_NoSeparatorOption(t *testing.T) {
	c, err := New(10, 4, WithSeparator(""))
	require.NoError(t, err)

	chunks := c.Split("abcdefgh\nijklmnopqrstu")
	assert.Equal(t, "abcdefgh\ni", chunks[0])
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	c, err := New(5, 1)
	require.NoError(t, err)

	chunks := c.Split("pólizañandú")
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 5)
		assert.True(t, utf8.ValidString(ch))
	}
	assert.Equal(t, "póliz", chunks[0])
}

func TestChunk_Provenance(t *testing.T) {
	c, err := New(6, 0)
	require.NoError(t, err)

	pages := []domain.PageText{
		{Source: "http://a", Page: 1, Text: "hello"},
		{Source: "http://b", Page: 2, Text: "world"},
	}
	chunks := c.Chunk(pages)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].ID)
	assert.Equal(t, "hello\n", chunks[0].Text)
	assert.Equal(t, domain.SourceRef("http://a"), chunks[0].Source)
	assert.Equal(t, 1, chunks[0].Page)

	assert.Equal(t, 1, chunks[1].ID)
	assert.Equal(t, 6, chunks[1].Offset)
	assert.Equal(t, "world", chunks[1].Text)
	assert.Equal(t, domain.SourceRef("http://b"), chunks[1].Source)
	assert.Equal(t, 2, chunks[1].Page)
}

func TestChunk_NoPages(t *testing.T) {
	c, err := New(6, 0)
	require.NoError(t, err)
	assert.Nil(t, c.Chunk(nil))
}
