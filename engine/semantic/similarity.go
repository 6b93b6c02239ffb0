// Package semantic holds the similarity primitives used by the scorers:
// cosine similarity and nearest-chunk search over a per-call index.
package semantic

import "math"

// Cosine returns the cosine similarity of a and b. It is 0 when either
// vector has zero magnitude or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SquaredL2 returns the squared Euclidean distance between equal-length vectors.
func SquaredL2(a, b []float32) float64 {
	var d float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		d += diff * diff
	}
	return d
}

// DistanceScore maps a distance to 1/(1+d): 0 maps to 1 and larger
// distances approach 0. It is not bounded to [0,1] for negative inputs.
func DistanceScore(d float64) float64 {
	return 1 / (1 + d)
}
