package retrieval

import (
	"strings"

	"github.com/shopspring/decimal"
)

func DefaultSummaryKeywords() []string {
	return []string{"summary", "summarize", "overview", "about this video"}
}

// IsSummaryQuestion reports whether the question asks for the whole transcript
// rather than a specific detail. Matching is a case-insensitive substring test.
func IsSummaryQuestion(question string, keywords []string) bool {
	q := strings.ToLower(question)
	for _, k := range keywords {
		if k != "" && strings.Contains(q, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// BuildContext returns the grounding text for the answer generator. Summary
// questions get every segment in transcript order; other questions get the
// search results in score order. Parts are separated by blank lines.
func BuildContext(s *Session, results []SearchResult, summary bool) string {
	var parts []string
	if summary {
		parts = make([]string, len(s.Segments))
		for i, seg := range s.Segments {
			parts[i] = seg.Text
		}
	} else {
		parts = make([]string, len(results))
		for i, r := range results {
			parts[i] = r.Segment.Text
		}
	}
	return strings.Join(parts, "\n\n")
}

func roundScore(score float64) float64 {
	f, _ := decimal.NewFromFloat(score).Round(3).Float64()
	return f
}
