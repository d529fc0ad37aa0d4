package mesh

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Constants for the partition-based clustering baseline.
const (
	// DefaultMaxIterations bounds centroid refinement per k-means run.
	DefaultMaxIterations = 100
	// convergenceEpsilon is the centroid shift below which refinement stops.
	convergenceEpsilon = 1e-9
)

// kmeansResult holds the raw output of one k-means run before profiles
// and outlier handling are applied.
type kmeansResult struct {
	centroids []FeatureVector
	labels    []int // index into centroids, one per input vector
}

// kmeansSeeded runs k-means++ initialisation followed by Lloyd iteration.
// All randomness comes from rng, so the same vectors, k, and seed produce
// the same partition. An empty cluster after convergence (or a collapse
// during refinement) returns *DegenerateClusterError so the caller can
// retry with k−1.
func kmeansSeeded(vectors []FeatureVector, k int, rng *rand.Rand, maxIter int) (*kmeansResult, error) {
	n := len(vectors)
	if k < 1 || n < k {
		return nil, &InsufficientDataError{Got: n, Need: k}
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	dims := len(vectors[0])

	centroids := initPlusPlus(vectors, k, rng)
	labels := make([]int, n)
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}

	for iter := 0; iter < maxIter; iter++ {
		// Assignment step: nearest centroid, lowest index wins ties.
		for i, v := range vectors {
			best, bestDist := 0, math.Inf(1)
			for c, cent := range centroids {
				d := floats.Distance(v, cent, 2)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			labels[i] = best
		}

		// Update step.
		for c := range centroids {
			counts[c] = 0
			for d := range sums[c] {
				sums[c][d] = 0
			}
		}
		for i, v := range vectors {
			c := labels[i]
			counts[c]++
			floats.Add(sums[c], v)
		}
		for c := range centroids {
			if counts[c] == 0 {
				return nil, &DegenerateClusterError{K: k}
			}
		}

		var shift float64
		for c := range centroids {
			next := make(FeatureVector, dims)
			copy(next, sums[c])
			floats.Scale(1/float64(counts[c]), next)
			shift += floats.Distance(centroids[c], next, 2)
			centroids[c] = next
		}
		if shift < convergenceEpsilon {
			break
		}
	}

	return &kmeansResult{centroids: centroids, labels: labels}, nil
}

// initPlusPlus picks k initial centroids with k-means++ weighting: the
// first uniformly, the rest proportional to squared distance from the
// nearest already-chosen centroid.
func initPlusPlus(vectors []FeatureVector, k int, rng *rand.Rand) []FeatureVector {
	n := len(vectors)
	centroids := make([]FeatureVector, 0, k)
	centroids = append(centroids, cloneVector(vectors[rng.Intn(n)]))

	dist2 := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			nearest := math.Inf(1)
			for _, cent := range centroids {
				d := floats.Distance(v, cent, 2)
				if d < nearest {
					nearest = d
				}
			}
			dist2[i] = nearest * nearest
			total += dist2[i]
		}
		if total == 0 {
			// Remaining points coincide with chosen centroids; duplicating
			// one forces the degenerate-cluster path downstream.
			centroids = append(centroids, cloneVector(vectors[rng.Intn(n)]))
			continue
		}
		target := rng.Float64() * total
		var acc float64
		pick := n - 1
		for i := range vectors {
			acc += dist2[i]
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, cloneVector(vectors[pick]))
	}
	return centroids
}

func cloneVector(v FeatureVector) FeatureVector {
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}
