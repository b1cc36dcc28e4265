package store

import "math"

// cosineDistance matches pgvector's <=> operator: 1 - cos(a, b). Vectors of
// different width or with zero magnitude are reported as not comparable.
func cosineDistance(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), true
}
