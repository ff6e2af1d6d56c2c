package retrieval

import (
	"time"

	"github.com/perbu/videoqa/pkg/transcript"
)

// Session holds one ingested transcript, ready for questions.
// A Session is never modified after it has been stored.
type Session struct {
	ID          string
	Fingerprint string               // blake3 of the source words
	Transcript  string               // Plain transcript text
	Chunks      []transcript.Chunk   // Chunks before merging
	Segments    []transcript.Segment // Merged segments
	Embeddings  [][]float32          // Corresponding embeddings (segment[i] ↔ embedding[i])
	Dimension   int                  // Embedding vector dimension
	ModelInfo   string
	CreatedAt   time.Time
}

// SearchResult is a segment with its similarity to the question
type SearchResult struct {
	Segment transcript.Segment
	Score   float64
	Rank    int
}

// Answer is the result of a question. AnswerText is nil when confidence gating
// blocked the answer; Message then explains why and Source is nil.
type Answer struct {
	SessionID  string          `json:"sessionId"`
	Question   string          `json:"question"`
	AnswerText *string         `json:"answer"`
	Confidence ConfidenceBlock `json:"confidence"`
	Source     *SourceRange    `json:"source,omitempty"`
	Message    string          `json:"message,omitempty"`
	Summary    bool            `json:"summary"`
}

type ConfidenceBlock struct {
	Score float64 `json:"score"`
	Level Level   `json:"level"`
}

type SourceRange struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// IngestResult summarizes a completed ingestion.
type IngestResult struct {
	SessionID   string `json:"sessionId"`
	Fingerprint string `json:"fingerprint"`
	Words       int    `json:"words"`
	Chunks      int    `json:"chunks"`
	Segments    int    `json:"segments"`
	Dimension   int    `json:"dimension"`
}
