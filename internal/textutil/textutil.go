// Package textutil holds the tokenizer shared by the offline embedder and the
// extractive generator.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?…\n]+[.!?…]*`)
)

// Tokenize lowercases text and returns its word tokens without stopwords.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Sentences splits text on sentence punctuation and line breaks.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		s = strings.TrimFunc(s, unicode.IsSpace)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// English and Spanish function words.
var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "what", "which", "who", "how", "do", "does", "my", "i",
		"el", "la", "los", "las", "un", "una", "unos", "unas", "y", "o", "pero", "si", "de", "del", "al", "en", "por", "para", "con", "sin", "que", "es", "son", "ser", "fue", "está", "están", "se", "su", "sus", "lo", "le", "les", "me", "mi", "mis", "tu", "te", "como", "qué", "cuál", "cuáles", "cómo", "más", "ya", "muy", "este", "esta", "estos", "estas", "ese", "esa", "hay", "no",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
