package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ReadWords decodes timed words from JSON. It accepts a bare array of words or
// an object with a "words" array, such as a saved AssemblyAI transcript.
func ReadWords(r io.Reader) ([]TimedWord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var words []TimedWord
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &words); err != nil {
			return nil, fmt.Errorf("decoding words: %w", err)
		}
		return words, nil
	}

	var doc struct {
		Words []TimedWord `json:"words"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	return doc.Words, nil
}
