package cluster

import (
	"math"
	"math/rand"
)

// DefaultComponents is the default target dimensionality for the
// reduction+density path.
const DefaultComponents = 50

// ReductionParams configures reduction+density clustering.
type ReductionParams struct {
	NComponents    int
	MinClusterSize int
	MinSamples     int
}

func (p ReductionParams) withDefaults() ReductionParams {
	if p.NComponents <= 0 {
		p.NComponents = DefaultComponents
	}
	return p
}

// reduceCosine projects high-dimensional rows into nComponents dimensions
// using seeded landmark embedding: landmarks are chosen by farthest-point
// sampling under cosine distance in the source space, and each output
// coordinate is the cosine similarity of a point to one landmark. Nearby
// points under cosine distance land near each other in the reduced space,
// which is then clustered with plain Euclidean distance.
//
// The projection is randomized through the initial landmark pick only, so a
// fixed seed makes it fully reproducible. Distances in the reduced space are
// not interpretable as cosine distances in the source space.
func reduceCosine(points [][]float32, nComponents int, seed int64) [][]float32 {
	n := len(points)
	if n == 0 {
		return nil
	}
	if nComponents > n {
		nComponents = n
	}

	mags := make([]float32, n)
	for i, row := range points {
		mags[i] = magnitude(row)
	}

	rng := rand.New(rand.NewSource(seed))
	landmarks := farthestPointLandmarks(points, mags, nComponents, rng)

	reduced := make([][]float32, n)
	for i, row := range points {
		coords := make([]float32, len(landmarks))
		for j, l := range landmarks {
			coords[j] = float32(1 - cosineDistance(row, points[l], mags[i], mags[l]))
		}
		reduced[i] = coords
	}
	return reduced
}

// farthestPointLandmarks greedily picks rows that maximize the minimum cosine
// distance to already-chosen landmarks. Ties break to the lowest index.
func farthestPointLandmarks(points [][]float32, mags []float32, count int, rng *rand.Rand) []int {
	n := len(points)
	landmarks := make([]int, 0, count)

	first := rng.Intn(n)
	landmarks = append(landmarks, first)

	minDist := make([]float64, n)
	for i := range points {
		minDist[i] = cosineDistance(points[i], points[first], mags[i], mags[first])
	}

	for len(landmarks) < count {
		next := -1
		nextD := math.Inf(-1)
		for i, d := range minDist {
			if d > nextD {
				nextD = d
				next = i
			}
		}
		landmarks = append(landmarks, next)
		for i := range points {
			if d := cosineDistance(points[i], points[next], mags[i], mags[next]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return landmarks
}
