package cluster

import (
	"github.com/viant/vec/search"
)

// euclidean returns the Euclidean distance between two rows.
func euclidean(a, b []float32) float64 {
	return float64(search.Float32s(a).EuclideanDistance(b))
}

// cosineDistance returns 1 - cosine similarity. The magnitudes are the
// callers' precomputed L2 norms, used here only to short-circuit zero
// vectors, which have no direction and are treated as maximally distant.
func cosineDistance(a, b []float32, magA, magB float32) float64 {
	if magA == 0 || magB == 0 {
		return 1
	}
	return float64(search.Float32s(a).CosineDistance(b))
}

// magnitude returns the L2 norm of a row.
func magnitude(a []float32) float32 {
	return search.Float32s(a).Magnitude()
}

// centroidOf computes the mean vector of the given rows.
func centroidOf(points [][]float32, members []int) []float32 {
	if len(members) == 0 || len(points) == 0 {
		return nil
	}
	dims := len(points[members[0]])
	sum := make([]float64, dims)
	for _, idx := range members {
		for d, v := range points[idx] {
			sum[d] += float64(v)
		}
	}
	centroid := make([]float32, dims)
	for d := range sum {
		centroid[d] = float32(sum[d] / float64(len(members)))
	}
	return centroid
}
