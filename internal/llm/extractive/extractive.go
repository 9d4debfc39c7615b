// Package extractive answers by quoting the passage sentences that best match
// the question. It needs no model and is used offline and in tests.
package extractive

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"ragbot/internal/domain"
	"ragbot/internal/textutil"
)

// Generator ranks passage sentences by question overlap and word frequency.
type Generator struct {
	maxSentences int
}

var _ domain.Generator = (*Generator)(nil)

// New creates a generator that returns at most maxSentences sentences.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Generator{maxSentences: maxSentences}
}

func (g *Generator) Name() string { return "extractive" }

// Generate returns the best sentences in passage order.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sentences []string
	for _, p := range req.Passages {
		sentences = append(sentences, textutil.Sentences(p)...)
	}
	if len(sentences) == 0 {
		return "", errors.New("no passages to answer from")
	}

	question := make(map[string]struct{})
	for _, tok := range textutil.Tokenize(req.Question) {
		question[tok] = struct{}{}
	}

	// Compute word frequencies
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	maxF := 0.0
	for i, sent := range sentences {
		tokens[i] = textutil.Tokenize(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
			maxF = math.Max(maxF, freq[tok])
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, toks := range tokens {
		seen := make(map[string]struct{}, len(toks))
		overlap, fscore := 0, 0.0
		for _, tok := range toks {
			fscore += freq[tok] / maxF
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := question[tok]; ok {
				overlap++
			}
		}
		score := 0.0
		if l := float64(len(toks)); l > 0 {
			// Normalize by sentence length to avoid bias
			score = fscore / math.Sqrt(l)
			if len(question) > 0 {
				score += 2 * float64(overlap) / math.Sqrt(float64(len(question))*float64(len(seen)))
			}
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(g.maxSentences, len(scores))
	// Keep original order among selected
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}
