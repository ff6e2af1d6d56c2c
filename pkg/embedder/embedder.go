package embedder

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"unicode"

	"lukechampine.com/blake3"
)

// Embedder interface for generating embeddings
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelInfo() string
}

// HashEmbedder is an offline embedder that hashes words into a fixed number of
// buckets. Texts sharing vocabulary get similar vectors. It needs no network and
// is deterministic, which makes it useful for the CLI's offline mode and tests.
type HashEmbedder struct {
	dim int
}

// DefaultHashDimension is used when NewHashEmbedder gets a non-positive dimension.
const DefaultHashDimension = 512

// NewHashEmbedder creates a hashing embedder with the given dimension
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dim: dimension}
}

// Embed generates a hashed bag-of-words vector from text
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		sum := blake3.Sum256([]byte(w))
		idx := binary.LittleEndian.Uint64(sum[:8]) % uint64(e.dim)
		if sum[8]&1 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	l2normalize(vec)
	return vec, nil
}

// Dimension returns the embedding dimension
func (e *HashEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *HashEmbedder) ModelInfo() string {
	return "hash-embedder-v1"
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
