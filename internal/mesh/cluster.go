package mesh

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/meshwise/internal/monitoring"
)

// Clustering engine defaults.
const (
	// DefaultKMin is the smallest candidate cluster count in the sweep.
	DefaultKMin = 2
	// DefaultKMax is the largest candidate cluster count in the sweep.
	DefaultKMax = 6
	// DefaultOutlierDistanceThreshold marks observations farther than this
	// from every centroid as outliers. Feature space is a unit hypercube,
	// so 0.8 is roughly a third of its diagonal.
	DefaultOutlierDistanceThreshold = 0.8
	// minSamplesPerCluster is the required ratio of observations to k.
	minSamplesPerCluster = 2
)

// ClusterEngine partitions normalized observations into performance
// clusters. It knows nothing about zones or APs beyond carrying their
// identifiers through; clustering is purely geometric.
type ClusterEngine struct {
	KMin             int
	KMax             int
	Seed             int64
	OutlierThreshold float64
	MaxIterations    int
}

// NewClusterEngine creates an engine with the given k range and seed,
// filling in defaults for out-of-range values.
func NewClusterEngine(kMin, kMax int, seed int64, outlierThreshold float64) *ClusterEngine {
	if kMin < 2 {
		kMin = DefaultKMin
	}
	if kMax < kMin {
		kMax = kMin
	}
	if outlierThreshold <= 0 {
		outlierThreshold = DefaultOutlierDistanceThreshold
	}
	return &ClusterEngine{
		KMin:             kMin,
		KMax:             kMax,
		Seed:             seed,
		OutlierThreshold: outlierThreshold,
		MaxIterations:    DefaultMaxIterations,
	}
}

// ClusterRun is the result of one clustering run. Cluster IDs are stable
// only within the run: profiles are sorted by centroid and renumbered, so
// downstream consumers key decisions off profile content, never off a
// cluster ID remembered from an earlier run.
type ClusterRun struct {
	RunID        string              `json:"run_id"`
	K            int                 `json:"k"`
	Silhouette   float64             `json:"silhouette"`
	Profiles     []ClusterProfile    `json:"profiles"`
	Assignments  []ClusterAssignment `json:"assignments"`
	OutlierCount int                 `json:"outlier_count"`

	profilesByID map[int]*ClusterProfile
}

// ProfileFor returns the profile an assignment references, or nil for the
// reserved outlier cluster.
func (r *ClusterRun) ProfileFor(a ClusterAssignment) *ClusterProfile {
	return r.profilesByID[a.ClusterID]
}

// Run selects k via a silhouette sweep over [KMin, KMax], partitions the
// observations, tags outliers, and produces one ClusterProfile per
// surviving cluster plus one ClusterAssignment per observation.
//
// Fails with *InsufficientDataError below 2×KMin observations. A k whose
// refinement converges with an empty cluster is retried at k−1; if every
// candidate k degenerates the engine surfaces *DegenerateClusterError.
func (e *ClusterEngine) Run(obs []Observation) (*ClusterRun, error) {
	n := len(obs)
	need := minSamplesPerCluster * e.KMin
	if n < need {
		return nil, &InsufficientDataError{Got: n, Need: need}
	}

	vectors := make([]FeatureVector, n)
	for i := range obs {
		vectors[i] = obs[i].Vector
	}

	kMax := e.KMax
	if limit := n / minSamplesPerCluster; kMax > limit {
		kMax = limit
	}

	var (
		best      *kmeansResult
		bestK     int
		bestScore float64
		lastErr   error
	)
	for k := e.KMin; k <= kMax; k++ {
		res, usedK, err := e.runWithRetry(vectors, k)
		if err != nil {
			lastErr = err
			continue
		}
		score := silhouetteScore(vectors, res.labels, usedK)
		// Strict improvement only: ties keep the smaller k.
		if best == nil || score > bestScore {
			best, bestK, bestScore = res, usedK, score
		}
	}
	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &DegenerateClusterError{K: e.KMin}
	}

	return e.assemble(obs, best, bestK, bestScore), nil
}

// runWithRetry attempts k-means at k, stepping down on degenerate
// convergence until k reaches KMin. Returns the k actually used.
func (e *ClusterEngine) runWithRetry(vectors []FeatureVector, k int) (*kmeansResult, int, error) {
	for ; k >= e.KMin; k-- {
		// Seed varies with k so each sweep candidate is independently
		// reproducible.
		rng := rand.New(rand.NewSource(e.Seed + int64(k)))
		res, err := kmeansSeeded(vectors, k, rng, e.MaxIterations)
		if err == nil {
			return res, k, nil
		}
		if _, degenerate := err.(*DegenerateClusterError); !degenerate {
			return nil, 0, err
		}
		monitoring.Logf("clustering: empty cluster at k=%d, retrying with k=%d", k, k-1)
	}
	return nil, 0, &DegenerateClusterError{K: e.KMin}
}

// assemble tags outliers, builds sorted profiles, and remaps assignments
// onto the renumbered cluster IDs.
func (e *ClusterEngine) assemble(obs []Observation, res *kmeansResult, k int, score float64) *ClusterRun {
	n := len(obs)
	run := &ClusterRun{
		RunID:      uuid.NewString(),
		K:          k,
		Silhouette: score,
	}

	// Outlier tagging: vectors are assigned to their nearest centroid, so
	// a distance beyond the threshold there is beyond it for every
	// centroid.
	assigned := make([]int, n)
	dists := make([]float64, n)
	for i := range obs {
		c := res.labels[i]
		d := floats.Distance(obs[i].Vector, res.centroids[c], 2)
		if d > e.OutlierThreshold {
			assigned[i] = OutlierClusterID
			run.OutlierCount++
		} else {
			assigned[i] = c
		}
		dists[i] = d
	}

	// Profiles from surviving members; clusters emptied by outlier
	// tagging produce no profile.
	type memberSet struct {
		centroid FeatureVector
		indices  []int
	}
	members := make([]memberSet, k)
	for c := 0; c < k; c++ {
		members[c].centroid = res.centroids[c]
	}
	for i := range obs {
		if assigned[i] == OutlierClusterID {
			continue
		}
		members[assigned[i]].indices = append(members[assigned[i]].indices, i)
	}

	survivors := make([]memberSet, 0, k)
	for _, m := range members {
		if len(m.indices) > 0 {
			survivors = append(survivors, m)
		}
	}
	// Deterministic output: order clusters by centroid, dimension by
	// dimension, then renumber.
	sort.Slice(survivors, func(i, j int) bool {
		return lessVector(survivors[i].centroid, survivors[j].centroid)
	})

	remap := make(map[string]int) // observation index is unique per run
	run.Profiles = make([]ClusterProfile, len(survivors))
	for newID, m := range survivors {
		var means MetricMeans
		for _, idx := range m.indices {
			raw := obs[idx].RawMeans
			means.RSSIDbm += raw.RSSIDbm
			means.PacketErrorRate += raw.PacketErrorRate
			means.LatencyMs += raw.LatencyMs
			means.ThroughputMbps += raw.ThroughputMbps
			means.ChannelUtilization += raw.ChannelUtilization
			means.BytesTransferred += raw.BytesTransferred
			remap[obs[idx].ObservationID] = newID
		}
		cnt := float64(len(m.indices))
		means.RSSIDbm /= cnt
		means.PacketErrorRate /= cnt
		means.LatencyMs /= cnt
		means.ThroughputMbps /= cnt
		means.ChannelUtilization /= cnt
		means.BytesTransferred /= cnt

		run.Profiles[newID] = ClusterProfile{
			ClusterID:   newID,
			Centroid:    m.centroid,
			MemberCount: len(m.indices),
			MeanMetrics: means,
		}
	}

	run.Assignments = make([]ClusterAssignment, n)
	for i := range obs {
		cid := OutlierClusterID
		if assigned[i] != OutlierClusterID {
			cid = remap[obs[i].ObservationID]
		}
		run.Assignments[i] = ClusterAssignment{
			ObservationID:      obs[i].ObservationID,
			ClusterID:          cid,
			DistanceToCentroid: dists[i],
		}
	}

	run.profilesByID = make(map[int]*ClusterProfile, len(run.Profiles))
	for i := range run.Profiles {
		run.profilesByID[run.Profiles[i].ClusterID] = &run.Profiles[i]
	}
	return run
}

func lessVector(a, b FeatureVector) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
