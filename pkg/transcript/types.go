package transcript

// TimedWord is a single recognized word with its time range, as reported by the
// transcription provider. Times are in the provider's unit (milliseconds for AssemblyAI).
type TimedWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Chunk is a window of consecutive words
type Chunk struct {
	Index     int     `json:"chunkIndex"`
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	WordCount int     `json:"wordCount"`
}

// Segment is one or more adjacent chunks merged because they cover the same topic.
// Index is the index of the first chunk in the segment.
type Segment struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	ChunkCount int     `json:"chunkCount"` // Number of source chunks
}
