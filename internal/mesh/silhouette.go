package mesh

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// silhouetteScore computes the mean silhouette coefficient of a
// partition: for each vector, (b−a)/max(a,b) where a is the mean
// distance to its own cluster and b the smallest mean distance to any
// other cluster. Singleton clusters contribute 0, matching the usual
// convention. Scores are in [−1,1]; higher means tighter, better
// separated clusters.
func silhouetteScore(vectors []FeatureVector, labels []int, k int) float64 {
	n := len(vectors)
	if n == 0 || k < 2 {
		return 0
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	scores := make([]float64, n)
	meanDist := make([]float64, k)
	for i, v := range vectors {
		own := labels[i]
		if counts[own] <= 1 {
			scores[i] = 0
			continue
		}
		for c := range meanDist {
			meanDist[c] = 0
		}
		for j, w := range vectors {
			if i == j {
				continue
			}
			meanDist[labels[j]] += floats.Distance(v, w, 2)
		}
		a := meanDist[own] / float64(counts[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			if m := meanDist[c] / float64(counts[c]); m < b {
				b = m
			}
		}
		if math.IsInf(b, 1) {
			scores[i] = 0
			continue
		}
		if m := math.Max(a, b); m > 0 {
			scores[i] = (b - a) / m
		}
	}
	return stat.Mean(scores, nil)
}
