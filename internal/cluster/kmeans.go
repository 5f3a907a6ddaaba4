package cluster

import (
	"fmt"
	"math"
	"math/rand"
)

// Centroid clustering defaults. The minibatch threshold is a performance
// heuristic, not a behavioral contract: both paths honor the same seed and
// produce a complete partition with no noise.
const (
	minibatchThreshold = 10000
	minibatchBatchSize = 1000
	defaultNInit       = 10
	defaultMaxIter     = 100
)

// CentroidParams configures centroid-based clustering.
type CentroidParams struct {
	K       int
	NInit   int
	MaxIter int
}

func (p CentroidParams) withDefaults() CentroidParams {
	if p.NInit <= 0 {
		p.NInit = defaultNInit
	}
	if p.MaxIter <= 0 {
		p.MaxIter = defaultMaxIter
	}
	return p
}

// centroidCluster partitions points into exactly K clusters minimizing
// within-cluster sum of squared distances. Given the same input, K and seed
// the partition structure is identical across invocations (label numbering
// aside).
func centroidCluster(points [][]float32, p CentroidParams, seed int64) ([]int, [][]float32, float64, error) {
	p = p.withDefaults()
	n := len(points)
	if p.K < 1 {
		return nil, nil, 0, fmt.Errorf("k must be >= 1, got %d", p.K)
	}
	if p.K > n {
		return nil, nil, 0, fmt.Errorf("k=%d exceeds sample count %d", p.K, n)
	}

	rng := rand.New(rand.NewSource(seed))
	minibatch := n > minibatchThreshold

	var bestLabels []int
	var bestCentroids [][]float32
	bestInertia := math.Inf(1)

	for restart := 0; restart < p.NInit; restart++ {
		centroids := seedCentroids(points, p.K, rng)
		var labels []int
		if minibatch {
			labels = lloydMinibatch(points, centroids, p.MaxIter, rng)
		} else {
			labels = lloyd(points, centroids, p.MaxIter)
		}
		inertia := totalInertia(points, centroids, labels)
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
			bestCentroids = centroids
		}
	}

	return bestLabels, bestCentroids, bestInertia, nil
}

// seedCentroids picks K starting centroids with k-means++ weighting.
func seedCentroids(points [][]float32, k int, rng *rand.Rand) [][]float32 {
	n := len(points)
	centroids := make([][]float32, 0, k)

	first := rng.Intn(n)
	centroids = append(centroids, copyRow(points[first]))

	minSq := make([]float64, n)
	for i := range points {
		d := euclidean(points[i], centroids[0])
		minSq[i] = d * d
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range minSq {
			total += d
		}
		var pick int
		if total == 0 {
			pick = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			acc := 0.0
			pick = n - 1
			for i, d := range minSq {
				acc += d
				if acc >= target {
					pick = i
					break
				}
			}
		}
		centroids = append(centroids, copyRow(points[pick]))
		for i := range points {
			d := euclidean(points[i], points[pick])
			if sq := d * d; sq < minSq[i] {
				minSq[i] = sq
			}
		}
	}
	return centroids
}

// lloyd iterates assignment/update until labels stop changing or maxIter.
func lloyd(points [][]float32, centroids [][]float32, maxIter int) []int {
	n := len(points)
	k := len(centroids)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, pt := range points {
			best := nearestCentroid(pt, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		recomputeCentroids(points, labels, centroids)
		repairEmptyCentroids(points, labels, centroids, k)
	}
	return labels
}

// lloydMinibatch updates centroids from random batches with per-center
// counts, then runs one full assignment pass. Trades exactness for speed on
// large inputs; the contract (complete partition, seeded determinism) holds.
func lloydMinibatch(points [][]float32, centroids [][]float32, maxIter int, rng *rand.Rand) []int {
	n := len(points)
	counts := make([]float64, len(centroids))

	for iter := 0; iter < maxIter; iter++ {
		for b := 0; b < minibatchBatchSize; b++ {
			i := rng.Intn(n)
			c := nearestCentroid(points[i], centroids)
			counts[c]++
			eta := 1 / counts[c]
			for d := range centroids[c] {
				centroids[c][d] += float32(eta * (float64(points[i][d]) - float64(centroids[c][d])))
			}
		}
	}

	labels := make([]int, n)
	for i, pt := range points {
		labels[i] = nearestCentroid(pt, centroids)
	}
	return labels
}

func nearestCentroid(pt []float32, centroids [][]float32) int {
	best := 0
	bestD := math.Inf(1)
	for c, centroid := range centroids {
		if d := euclidean(pt, centroid); d < bestD {
			bestD = d
			best = c
		}
	}
	return best
}

func recomputeCentroids(points [][]float32, labels []int, centroids [][]float32) {
	dims := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, pt := range points {
		c := labels[i]
		counts[c]++
		for d, v := range pt {
			sums[c][d] += float64(v)
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
		}
	}
}

// repairEmptyCentroids moves any empty centroid onto the point farthest from
// its current centroid. Deterministic: scans points in index order.
func repairEmptyCentroids(points [][]float32, labels []int, centroids [][]float32, k int) {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		farIdx := 0
		farD := -1.0
		for i, pt := range points {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := euclidean(pt, centroids[labels[i]]); d > farD {
				farD = d
				farIdx = i
			}
		}
		counts[labels[farIdx]]--
		labels[farIdx] = c
		counts[c] = 1
		centroids[c] = copyRow(points[farIdx])
	}
}

func totalInertia(points [][]float32, centroids [][]float32, labels []int) float64 {
	total := 0.0
	for i, pt := range points {
		d := euclidean(pt, centroids[labels[i]])
		total += d * d
	}
	return total
}

func copyRow(row []float32) []float32 {
	dup := make([]float32, len(row))
	copy(dup, row)
	return dup
}
