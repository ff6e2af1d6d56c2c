package answer

import (
	"context"
	"strings"
	"unicode"
)

// Extractive answers without a language model by returning the context
// sentence sharing the most words with the question. It is meant for offline
// use and tests.
type Extractive struct{}

func (Extractive) Generate(_ context.Context, question, groundingContext string) (string, error) {
	qwords := make(map[string]bool)
	for _, w := range words(question) {
		qwords[w] = true
	}

	best, bestHits := "", 0
	for _, sentence := range sentences(groundingContext) {
		hits := 0
		for _, w := range words(sentence) {
			if qwords[w] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = sentence, hits
		}
	}
	if best == "" {
		return NotInContext, nil
	}
	return best, nil
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// sentences splits text after '.', '!' and '?'.
func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
