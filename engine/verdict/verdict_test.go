package verdict

import "testing"

func TestQualityClamp(t *testing.T) {
	tests := []struct {
		rel, comp, fact float64
		want            float64
	}{
		{2, 2, 2, 1},
		{-1, -1, -1, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0.5, 0.5, 0.5, 0.5},
		{1, 0, 0, 0.4},
	}
	for _, tt := range tests {
		got := Quality(tt.rel, tt.comp, tt.fact)
		if d := got - tt.want; d > 1e-12 || d < -1e-12 {
			t.Errorf("Quality(%v, %v, %v) = %v, want %v", tt.rel, tt.comp, tt.fact, got, tt.want)
		}
	}
}

func TestDecide(t *testing.T) {
	half := Thresholds{RelevanceMin: 0.5, CompletenessMin: 0.5, FactualityMin: 0.5}
	tests := []struct {
		name            string
		rel, comp, fact float64
		th              Thresholds
		want            Verdict
	}{
		{"factuality dominates", 0.9, 0.9, 0.1, half, Fail},
		{"low relevance warns", 0.5, 0.8, 0.8, Thresholds{RelevanceMin: 0.6, CompletenessMin: 0.5, FactualityMin: 0.5}, Warn},
		{"all pass", 0.9, 0.8, 0.9, half, Pass},
		{"low completeness warns", 0.9, 0.1, 0.9, half, Warn},
		{"equality passes", 0.5, 0.5, 0.5, half, Pass},
		{"factuality equality passes", 0.1, 0.9, 0.5, half, Warn},
		{"fail beats warn", 0.1, 0.1, 0.1, half, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.rel, tt.comp, tt.fact, tt.th); got != tt.want {
				t.Errorf("Decide(%v, %v, %v) = %s, want %s", tt.rel, tt.comp, tt.fact, got, tt.want)
			}
		})
	}
}
