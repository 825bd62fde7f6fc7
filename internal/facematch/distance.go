package facematch

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// EuclideanDistance computes the L2 distance between two embeddings.
// Vectors of different or zero length are infinitely distant.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// Distances returns the distance from query to every reference, in gallery order.
func Distances(refs []Reference, query []float64) []float64 {
	out := make([]float64, len(refs))
	for i, ref := range refs {
		out[i] = EuclideanDistance(ref.Embedding, query)
	}
	return out
}

// argMin returns the index of the first minimum, or -1 for an empty slice.
func argMin(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}
