package transcript

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultMaxTokens     = 180
	DefaultOverlapTokens = 40
)

var (
	ErrEmptyInput    = errors.New("no words provided for chunking")
	ErrInvalidWindow = errors.New("invalid chunk window")
)

// ChunkWords splits a word stream into overlapping chunks.
//
// One word counts as one token. A chunk is closed only on a word that ends a
// sentence (., ! or ?) once at least maxTokens words have accumulated, so chunks
// may grow past maxTokens until a sentence ends. The last overlapTokens words of a
// closed chunk open the next one. Whatever remains after the scan becomes the
// final chunk.
func ChunkWords(words []TimedWord, maxTokens, overlapTokens int) ([]Chunk, error) {
	if len(words) == 0 {
		return nil, ErrEmptyInput
	}
	if maxTokens <= 0 || overlapTokens < 0 || overlapTokens >= maxTokens {
		return nil, fmt.Errorf("%w: maxTokens=%d overlapTokens=%d", ErrInvalidWindow, maxTokens, overlapTokens)
	}

	var chunks []Chunk
	current := make([]TimedWord, 0, maxTokens)

	for _, w := range words {
		current = append(current, w)

		if isSentenceEnd(w.Text) && len(current) >= maxTokens {
			chunks = append(chunks, buildChunk(current, len(chunks)))

			// copy, so the next chunk never aliases the one just emitted
			overlap := make([]TimedWord, overlapTokens, maxTokens)
			copy(overlap, current[len(current)-overlapTokens:])
			current = overlap
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, buildChunk(current, len(chunks)))
	}

	return chunks, nil
}

func isSentenceEnd(text string) bool {
	return strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?")
}

func buildChunk(words []TimedWord, index int) Chunk {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	return Chunk{
		Index:     index,
		Text:      strings.Join(texts, " "),
		StartTime: words[0].Start,
		EndTime:   words[len(words)-1].End,
		WordCount: len(words),
	}
}
