// Package verdict aggregates the scored dimensions into a quality score and
// a PASS/WARN/FAIL decision against configured thresholds.
package verdict

// Verdict is the categorical outcome of an evaluation.
type Verdict string

const (
	Pass Verdict = "PASS"
	Warn Verdict = "WARN"
	Fail Verdict = "FAIL"
)

// Quality weights.
const (
	RelevanceWeight    = 0.4
	CompletenessWeight = 0.3
	FactualityWeight   = 0.3
)

// Quality returns the weighted score clamped to [0, 1].
func Quality(relevance, completeness, factuality float64) float64 {
	q := RelevanceWeight*relevance + CompletenessWeight*completeness + FactualityWeight*factuality
	return max(0, min(1, q))
}

// Decide applies the thresholds. Low factuality fails regardless of the
// other dimensions; low relevance or completeness warns. A score equal to
// its threshold passes it.
func Decide(relevance, completeness, factuality float64, t Thresholds) Verdict {
	if !(factuality >= t.FactualityMin) {
		return Fail
	}
	if !(relevance >= t.RelevanceMin) || !(completeness >= t.CompletenessMin) {
		return Warn
	}
	return Pass
}
