package retrieval

import (
	"errors"
	"fmt"

	"github.com/perbu/videoqa/pkg/transcript"
)

const DefaultMergeThreshold = 0.78

var ErrLengthMismatch = errors.New("chunks and embeddings differ in length")

// MergeChunks coalesces neighbouring chunks that stay on the same topic.
//
// Each chunk is compared with the chunk right before it, using the unmerged
// per-chunk embeddings. A similarity below threshold starts a new segment;
// anything else, including a similarity equal to threshold, extends the current
// segment's text and end time. The returned segments carry no embedding.
func MergeChunks(chunks []transcript.Chunk, embeddings [][]float32, threshold float64) ([]transcript.Segment, error) {
	if len(chunks) == 0 || len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d chunks, %d embeddings", ErrLengthMismatch, len(chunks), len(embeddings))
	}

	var merged []transcript.Segment
	current := segmentFromChunk(chunks[0])

	for i := 1; i < len(chunks); i++ {
		sim, err := CosineSimilarity(embeddings[i-1], embeddings[i])
		if err != nil {
			return nil, fmt.Errorf("comparing chunk %d with %d: %w", i-1, i, err)
		}

		if sim < threshold {
			// topic drift
			merged = append(merged, current)
			current = segmentFromChunk(chunks[i])
			continue
		}
		current.Text += " " + chunks[i].Text
		current.EndTime = chunks[i].EndTime
		current.ChunkCount++
	}

	merged = append(merged, current)
	return merged, nil
}

func segmentFromChunk(c transcript.Chunk) transcript.Segment {
	return transcript.Segment{
		Index:      c.Index,
		Text:       c.Text,
		StartTime:  c.StartTime,
		EndTime:    c.EndTime,
		ChunkCount: 1,
	}
}
