package cluster

import (
	"math"
	"math/rand"
)

// silhouetteSampleCap bounds the silhouette computation on large inputs.
const silhouetteSampleCap = 10000

// QualityMetrics summarizes internal clustering quality, computed only over
// non-noise points. Field meanings:
//   - Silhouette: in [-1, 1], higher is better. Per-point own-cluster vs
//     nearest-other-cluster mean distance, averaged over a bounded sample.
//   - CalinskiHarabasz: between/within variance ratio, higher is better.
//   - DaviesBouldin: mean intra-cluster distance over minimum inter-centroid
//     distance, lower is better.
type QualityMetrics struct {
	Silhouette       float64 `json:"silhouette_score"`
	CalinskiHarabasz float64 `json:"calinski_harabasz_score"`
	DaviesBouldin    float64 `json:"davies_bouldin_score"`
}

// Evaluate computes quality metrics for a labeling, ignoring noise (-1).
// Returns nil when fewer than 2 clusters exist or every point is noise;
// callers must surface that absence rather than reporting zeros.
func Evaluate(points [][]float32, labels []int, rng *rand.Rand) *QualityMetrics {
	clusters := map[int][]int{}
	kept := make([]int, 0, len(labels))
	for i, l := range labels {
		if l < 0 {
			continue
		}
		clusters[l] = append(clusters[l], i)
		kept = append(kept, i)
	}
	if len(clusters) < 2 || len(kept) == 0 {
		return nil
	}

	return &QualityMetrics{
		Silhouette:       silhouette(points, labels, clusters, kept, rng),
		CalinskiHarabasz: varianceRatio(points, clusters, kept),
		DaviesBouldin:    dispersionRatio(points, clusters, kept),
	}
}

func silhouette(points [][]float32, labels []int, clusters map[int][]int, kept []int, rng *rand.Rand) float64 {
	sample := kept
	if len(kept) > silhouetteSampleCap {
		perm := rng.Perm(len(kept))
		sample = make([]int, silhouetteSampleCap)
		for i := range sample {
			sample[i] = kept[perm[i]]
		}
	}

	total := 0.0
	for _, i := range sample {
		own := labels[i]
		a := 0.0
		if members := clusters[own]; len(members) > 1 {
			for _, j := range members {
				if j == i {
					continue
				}
				a += euclidean(points[i], points[j])
			}
			a /= float64(len(members) - 1)
		} else {
			// Singleton clusters contribute zero by convention.
			continue
		}

		b := math.Inf(1)
		for l, members := range clusters {
			if l == own {
				continue
			}
			sum := 0.0
			for _, j := range members {
				sum += euclidean(points[i], points[j])
			}
			if mean := sum / float64(len(members)); mean < b {
				b = mean
			}
		}

		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(len(sample))
}

func varianceRatio(points [][]float32, clusters map[int][]int, kept []int) float64 {
	overall := centroidOf(points, kept)

	between := 0.0
	within := 0.0
	for _, members := range clusters {
		centroid := centroidOf(points, members)
		d := euclidean(centroid, overall)
		between += float64(len(members)) * d * d
		for _, i := range members {
			dd := euclidean(points[i], centroid)
			within += dd * dd
		}
	}

	n := float64(len(kept))
	k := float64(len(clusters))
	if within == 0 {
		// Degenerate duplicate-point clusters; report a large finite ratio so
		// the value stays JSON-encodable.
		return math.MaxFloat32
	}
	return (between / (k - 1)) / (within / (n - k))
}

func dispersionRatio(points [][]float32, clusters map[int][]int, kept []int) float64 {
	centroids := map[int][]float32{}
	for l, members := range clusters {
		centroids[l] = centroidOf(points, members)
	}

	intra := 0.0
	for l, members := range clusters {
		for _, i := range members {
			intra += euclidean(points[i], centroids[l])
		}
	}
	intra /= float64(len(kept))

	minSep := math.Inf(1)
	labelsSeen := make([]int, 0, len(centroids))
	for l := range centroids {
		labelsSeen = append(labelsSeen, l)
	}
	for i := 0; i < len(labelsSeen); i++ {
		for j := i + 1; j < len(labelsSeen); j++ {
			if d := euclidean(centroids[labelsSeen[i]], centroids[labelsSeen[j]]); d < minSep {
				minSep = d
			}
		}
	}
	if minSep == 0 {
		return math.MaxFloat32
	}
	return intra / minSep
}
