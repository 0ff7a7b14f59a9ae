package sentiment

import (
	"testing"

	"github.com/LJTian/MediaMon/internal/domain"
)

func TestColorThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{1, "success"},
		{0.31, "success"},
		{0.3, "info"},
		{0.01, "info"},
		{0, "info"},
		{-0.01, "warning"},
		{-0.3, "warning"},
		{-0.31, "danger"},
		{-1, "danger"},
	}
	for _, tt := range tests {
		if got := Color(tt.score); got != tt.want {
			t.Errorf("Color(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestLabelFollowsSignAndLanguage(t *testing.T) {
	tests := []struct {
		score float64
		lang  domain.Language
		want  string
	}{
		{0.5, domain.LangIndonesian, "Positif"},
		{0, domain.LangIndonesian, "Netral"},
		{-0.5, domain.LangIndonesian, "Negatif"},
		{0.5, domain.LangEnglish, "Positive"},
		{0, domain.LangEnglish, "Neutral"},
		{-0.01, domain.LangEnglish, "Negative"},
	}
	for _, tt := range tests {
		if got := Label(tt.score, tt.lang); got != tt.want {
			t.Errorf("Label(%v, %s) = %q, want %q", tt.score, tt.lang, got, tt.want)
		}
	}
}

func TestScoreEmptyTextSkipsPolarity(t *testing.T) {
	called := false
	s := NewScorer(PolarityFunc(func(string) float64 {
		called = true
		return 1
	}))
	if got := s.Score(""); got != 0 {
		t.Fatalf("Score(\"\") = %v, want 0", got)
	}
	if called {
		t.Fatalf("polarity should not be invoked for empty text")
	}
}

func TestScoreClampsRoundsAndRecovers(t *testing.T) {
	tests := []struct {
		name string
		p    PolarityFunc
		want float64
	}{
		{"round", func(string) float64 { return 0.456 }, 0.46},
		{"clamp high", func(string) float64 { return 3 }, 1},
		{"clamp low", func(string) float64 { return -7 }, -1},
		{"negative zero", func(string) float64 { return -0.001 }, 0},
		{"panic", func(string) float64 { panic("boom") }, 0},
	}
	for _, tt := range tests {
		s := NewScorer(tt.p)
		if got := s.Score("text"); got != tt.want {
			t.Errorf("%s: Score = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAnalyzeUsesLanguageHeuristic(t *testing.T) {
	s := NewScorer(nil)

	r := s.Analyze("Timnas menang dan juara di Jakarta")
	if r.Language != domain.LangIndonesian {
		t.Fatalf("language = %s, want id", r.Language)
	}
	if r.Score <= 0 || r.Label != "Positif" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Color != Color(r.Score) {
		t.Fatalf("color %q does not match score %v", r.Color, r.Score)
	}

	r = s.Analyze("Flood disaster kills dozens")
	if r.Language != domain.LangEnglish || r.Score >= 0 || r.Label != "Negative" {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestLexiconNegation(t *testing.T) {
	l := NewLexicon()
	if p := l.Polarity("this is good"); p <= 0 {
		t.Fatalf("good should be positive, got %v", p)
	}
	if p := l.Polarity("this is not good"); p >= 0 {
		t.Fatalf("not good should be negative, got %v", p)
	}
	if p := l.Polarity("tidak sangat buruk"); p <= 0 {
		t.Fatalf("negated intensified negative should be positive, got %v", p)
	}
	if p := l.Polarity("nothing to see here"); p != 0 {
		t.Fatalf("no hits should be neutral, got %v", p)
	}
}
