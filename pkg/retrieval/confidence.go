package retrieval

import "fmt"

type Level string

const (
	LevelLow           Level = "low"
	LevelMedium        Level = "medium"
	LevelHigh          Level = "high"
	LevelVeryConfident Level = "very_confident"
)

// Bands are the lower bounds of each confidence level above low. Each band is
// half-open: a score equal to a bound belongs to the higher level.
type Bands struct {
	Medium        float64 `yaml:"medium"`
	High          float64 `yaml:"high"`
	VeryConfident float64 `yaml:"very_confident"`
}

func DefaultBands() Bands {
	return Bands{Medium: 0.20, High: 0.40, VeryConfident: 0.60}
}

func (b Bands) Validate() error {
	if !(b.Medium < b.High && b.High < b.VeryConfident) {
		return fmt.Errorf("confidence bands must be ascending, got %.3f/%.3f/%.3f", b.Medium, b.High, b.VeryConfident)
	}
	return nil
}

type ConfidenceResult struct {
	Level       Level
	AllowAnswer bool
}

// Evaluate maps the best retrieval score to a confidence level. Only low
// confidence blocks an answer.
func (b Bands) Evaluate(score float64) ConfidenceResult {
	switch {
	case score < b.Medium:
		return ConfidenceResult{Level: LevelLow, AllowAnswer: false}
	case score < b.High:
		return ConfidenceResult{Level: LevelMedium, AllowAnswer: true}
	case score < b.VeryConfident:
		return ConfidenceResult{Level: LevelHigh, AllowAnswer: true}
	default:
		return ConfidenceResult{Level: LevelVeryConfident, AllowAnswer: true}
	}
}
