package retrieval

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
// If either vector has zero norm the similarity is 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

// Search scores every segment in the session against the query embedding and
// returns the topK best, highest first. Segments with equal scores keep their
// transcript order.
func Search(s *Session, queryEmbedding []float32, topK int) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(s.Segments))

	for i := range s.Segments {
		score, err := CosineSimilarity(queryEmbedding, s.Embeddings[i])
		if err != nil {
			return nil, fmt.Errorf("scoring segment %d: %w", i, err)
		}
		results = append(results, SearchResult{
			Segment: s.Segments[i],
			Score:   score,
			Rank:    i,
		})
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	// Return top-k results
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i
	}

	return results, nil
}
