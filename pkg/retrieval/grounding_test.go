package retrieval

import "testing"

func TestIsSummaryQuestion(t *testing.T) {
	keywords := DefaultSummaryKeywords()
	cases := map[string]bool{
		"Can you give me a summary?":                true,
		"SUMMARIZE the talk":                        true,
		"Give me an overview":                       true,
		"What is this about this video anyway":      true,
		"What did the speaker say about gradients?": false,
		"What is this video about?":                 false,
	}
	for q, want := range cases {
		if got := IsSummaryQuestion(q, keywords); got != want {
			t.Errorf("%q: got %v, want %v", q, got, want)
		}
	}
}

func TestBuildContext(t *testing.T) {
	s := testSession([]float32{1}, []float32{1}, []float32{1})
	results := []SearchResult{
		{Segment: s.Segments[2]},
		{Segment: s.Segments[0]},
	}
	if got := BuildContext(s, results, false); got != "C\n\nA" {
		t.Errorf("top-k context: got %q", got)
	}
	if got := BuildContext(s, results, true); got != "A\n\nB\n\nC" {
		t.Errorf("summary context: got %q", got)
	}
}

func TestRoundScore(t *testing.T) {
	cases := map[float64]float64{
		0.85749:  0.857,
		0.8575:   0.858,
		0.1:      0.1,
		-0.12345: -0.123,
	}
	for in, want := range cases {
		if got := roundScore(in); got != want {
			t.Errorf("roundScore(%v) = %v, want %v", in, got, want)
		}
	}
}
