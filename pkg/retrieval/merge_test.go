package retrieval

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/perbu/videoqa/pkg/transcript"
)

func makeChunks(n int) []transcript.Chunk {
	chunks := make([]transcript.Chunk, n)
	for i := range chunks {
		chunks[i] = transcript.Chunk{
			Index:     i,
			Text:      fmt.Sprintf("c%d", i),
			StartTime: float64(i * 10),
			EndTime:   float64(i*10 + 12),
		}
	}
	return chunks
}

func TestMergeChunks_TopicDrift(t *testing.T) {
	chunks := makeChunks(5)
	embeddings := [][]float32{
		{1, 0},
		{1, 0.05},
		{0, 1},
		{0.05, 1},
		{1, 0},
	}
	segments, err := MergeChunks(chunks, embeddings, DefaultMergeThreshold)
	if err != nil {
		t.Fatal(err)
	}
	want := []transcript.Segment{
		{Index: 0, Text: "c0 c1", StartTime: 0, EndTime: 22, ChunkCount: 2},
		{Index: 2, Text: "c2 c3", StartTime: 20, EndTime: 42, ChunkCount: 2},
		{Index: 4, Text: "c4", StartTime: 40, EndTime: 52, ChunkCount: 1},
	}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segments), segments)
	}
	for i := range want {
		if segments[i] != want[i] {
			t.Errorf("segment %d: got %+v, want %+v", i, segments[i], want[i])
		}
	}
}

func TestMergeChunks_ThresholdEqualityMerges(t *testing.T) {
	chunks := makeChunks(2)
	embeddings := [][]float32{{1, 2, 3}, {3, 1, 2}}
	sim, err := CosineSimilarity(embeddings[0], embeddings[1])
	if err != nil {
		t.Fatal(err)
	}

	segments, err := MergeChunks(chunks, embeddings, sim)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 {
		t.Errorf("similarity equal to the threshold should merge, got %d segments", len(segments))
	}

	segments, err = MergeChunks(chunks, embeddings, sim+1e-9)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 2 {
		t.Errorf("similarity below the threshold should split, got %d segments", len(segments))
	}
}

func TestMergeChunks_ComparesConsecutiveChunks(t *testing.T) {
	// each step turns 20 degrees: neighbours stay similar while the ends are 60 degrees apart
	chunks := makeChunks(4)
	embeddings := [][]float32{{1, 0}, {0.9397, 0.3420}, {0.7660, 0.6428}, {0.5, 0.8660}}
	segments, err := MergeChunks(chunks, embeddings, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 {
		t.Errorf("expected a single drifting segment, got %d", len(segments))
	}
}

func TestMergeChunks_Coverage(t *testing.T) {
	chunks := makeChunks(50)
	embeddings := make([][]float32, len(chunks))
	for i := range embeddings {
		// alternate topics every 3 chunks
		if (i/3)%2 == 0 {
			embeddings[i] = []float32{1, 0}
		} else {
			embeddings[i] = []float32{0, 1}
		}
	}
	segments, err := MergeChunks(chunks, embeddings, DefaultMergeThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) > len(chunks) {
		t.Fatalf("more segments than chunks")
	}

	var total int
	var texts []string
	for i, s := range segments {
		total += s.ChunkCount
		texts = append(texts, s.Text)
		if s.StartTime > s.EndTime {
			t.Errorf("segment %d: start after end", i)
		}
		if i > 0 && s.StartTime < segments[i-1].StartTime {
			t.Errorf("segment %d starts before segment %d", i, i-1)
		}
		if i > 0 && s.Index != segments[i-1].Index+segments[i-1].ChunkCount {
			t.Errorf("segment %d is not contiguous with the previous one", i)
		}
	}
	if total != len(chunks) {
		t.Errorf("segments cover %d chunks, want %d", total, len(chunks))
	}
	var all []string
	for _, c := range chunks {
		all = append(all, c.Text)
	}
	if strings.Join(texts, " ") != strings.Join(all, " ") {
		t.Error("merged text does not reproduce the chunk texts in order")
	}
}

func TestMergeChunks_DoesNotMutateInput(t *testing.T) {
	chunks := makeChunks(3)
	embeddings := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	if _, err := MergeChunks(chunks, embeddings, DefaultMergeThreshold); err != nil {
		t.Fatal(err)
	}
	if chunks[0].Text != "c0" || chunks[0].EndTime != 12 {
		t.Errorf("first chunk was modified: %+v", chunks[0])
	}
}

func TestMergeChunks_Errors(t *testing.T) {
	if _, err := MergeChunks(nil, nil, DefaultMergeThreshold); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch for empty input, got %v", err)
	}
	if _, err := MergeChunks(makeChunks(2), [][]float32{{1}}, DefaultMergeThreshold); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := MergeChunks(makeChunks(2), [][]float32{{1, 0}, {1}}, DefaultMergeThreshold); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
