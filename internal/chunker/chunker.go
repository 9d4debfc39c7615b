// Package chunker splits corpus text into fixed-size overlapping windows.
package chunker

import (
	"fmt"
	"sort"
	"strings"

	"ragbot/internal/domain"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
	DefaultChunkOverlap = 200

	// DefaultSeparator is the preferred chunk boundary.
	DefaultSeparator = "\n"
)

// CharacterChunker cuts text into windows of size runes, each starting
// size-overlap runes after its predecessor. A window that does not reach the
// end of the text is shortened to end at the last separator found between
// the next window's start and the hard limit, so no text is skipped.
type CharacterChunker struct {
	size      int
	overlap   int
	separator []rune
}

// Option configures a CharacterChunker.
type Option func(*CharacterChunker)

// WithSeparator sets the preferred boundary. An empty separator disables re-cutting.
func WithSeparator(sep string) Option {
	return func(c *CharacterChunker) {
		c.separator = []rune(sep)
	}
}

// New returns a chunker for the given window size and overlap.
func New(size, overlap int, opts ...Option) (*CharacterChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	c := &CharacterChunker{
		size:      size,
		overlap:   overlap,
		separator: []rune(DefaultSeparator),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type span struct{ start, end int }

// Split returns the chunk texts for text. It is pure and deterministic.
func (c *CharacterChunker) Split(text string) []string {
	runes := []rune(text)
	spans := c.windows(runes)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s.start:s.end])
	}
	return out
}

// Chunk joins pages with a newline and splits the result, recording for each
// chunk the page its first character came from.
func (c *CharacterChunker) Chunk(pages []domain.PageText) []domain.Chunk {
	if len(pages) == 0 {
		return nil
	}
	var sb strings.Builder
	starts := make([]int, len(pages))
	pos := 0
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n")
			pos++
		}
		starts[i] = pos
		sb.WriteString(p.Text)
		pos += len([]rune(p.Text))
	}
	runes := []rune(sb.String())
	spans := c.windows(runes)
	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		// last page starting at or before the chunk start
		pi := sort.Search(len(starts), func(j int) bool { return starts[j] > s.start }) - 1
		if pi < 0 {
			pi = 0
		}
		chunks[i] = domain.Chunk{
			ID:     i,
			Offset: s.start,
			Text:   string(runes[s.start:s.end]),
			Source: pages[pi].Source,
			Page:   pages[pi].Page,
		}
	}
	return chunks
}

func (c *CharacterChunker) windows(runes []rune) []span {
	n := len(runes)
	if n == 0 {
		return nil
	}
	step := c.size - c.overlap
	spans := make([]span, 0, n/step+1)
	for start := 0; ; start += step {
		end := start + c.size
		if end >= n {
			spans = append(spans, span{start, n})
			break
		}
		spans = append(spans, span{start, c.recut(runes, start+step, end)})
	}
	return spans
}

// recut returns the index of the last separator in [lo, end], or end.
func (c *CharacterChunker) recut(runes []rune, lo, end int) int {
	if len(c.separator) == 0 {
		return end
	}
	for p := end; p >= lo; p-- {
		if hasPrefixAt(runes, p, c.separator) {
			return p
		}
	}
	return end
}

func hasPrefixAt(runes []rune, at int, sep []rune) bool {
	if at+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[at+i] != r {
			return false
		}
	}
	return true
}
