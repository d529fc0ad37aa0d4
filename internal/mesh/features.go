package mesh

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// AggregationMode selects how samples become clustering observations.
type AggregationMode string

const (
	// AggregatePerSample emits one vector per sample for fine-grained
	// clustering.
	AggregatePerSample AggregationMode = "per_sample"
	// AggregateWindowedMean emits one mean vector per (zone, AP, window).
	AggregateWindowedMean AggregationMode = "windowed_mean"
	// AggregateWindowedMeanVariance is windowed_mean plus an extra
	// stability dimension capturing within-window instability.
	AggregateWindowedMeanVariance AggregationMode = "windowed_mean_plus_variance"
)

// IsValid reports whether the mode is a recognized aggregation mode.
func (m AggregationMode) IsValid() bool {
	switch m {
	case AggregatePerSample, AggregateWindowedMean, AggregateWindowedMeanVariance:
		return true
	}
	return false
}

// DefaultAggregationWindow is the window used when none is configured.
const DefaultAggregationWindow = 5 * time.Minute

// FeatureBuilder groups validated MetricSamples by (zone, AP, window) and
// emits normalized feature vectors in a deterministic order. The
// clustering engine operates purely on vector geometry, so dimension
// order and observation order must be identical run to run.
type FeatureBuilder struct {
	mode   AggregationMode
	window time.Duration
	norm   *Normalizer
}

// NewFeatureBuilder creates a builder for the given aggregation mode and
// window duration. A non-positive window falls back to the default.
func NewFeatureBuilder(mode AggregationMode, window time.Duration, norm *Normalizer) (*FeatureBuilder, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown aggregation mode %q", mode)
	}
	if window <= 0 {
		window = DefaultAggregationWindow
	}
	return &FeatureBuilder{mode: mode, window: window, norm: norm}, nil
}

// Build converts samples into clustering observations. Samples must have
// passed validation; a validation failure here aborts the build.
// Output ordering is deterministic: (zone, AP, window start, timestamp).
func (fb *FeatureBuilder) Build(samples []MetricSample) ([]Observation, error) {
	if fb.mode == AggregatePerSample {
		return fb.buildPerSample(samples)
	}
	return fb.buildWindowed(samples)
}

func (fb *FeatureBuilder) buildPerSample(samples []MetricSample) ([]Observation, error) {
	obs := make([]Observation, 0, len(samples))
	for i := range samples {
		s := &samples[i]
		vec, err := fb.norm.Normalize(s)
		if err != nil {
			return nil, fmt.Errorf("normalize sample %s: %w", s.SampleID, err)
		}
		id := s.SampleID
		if id == "" {
			id = fmt.Sprintf("%s|%s|%d", s.ZoneID, s.APID, s.Timestamp.UnixNano())
		}
		raw := rawMetrics(s)
		obs = append(obs, Observation{
			ObservationID: id,
			ZoneID:        s.ZoneID,
			APID:          s.APID,
			WindowStart:   s.Timestamp.Truncate(fb.window),
			Timestamp:     s.Timestamp,
			SampleIDs:     []string{s.SampleID},
			Vector:        vec,
			RawMeans:      meansFromRaw(raw),
		})
	}
	sortObservations(obs)
	return obs, nil
}

func (fb *FeatureBuilder) buildWindowed(samples []MetricSample) ([]Observation, error) {
	type group struct {
		zoneID, apID string
		windowStart  time.Time
		sampleIDs    []string
		lastSeen     time.Time
		vectors      []FeatureVector
		rawSums      [NumFeatures]float64
	}
	groups := make(map[string]*group)
	for i := range samples {
		s := &samples[i]
		vec, err := fb.norm.Normalize(s)
		if err != nil {
			return nil, fmt.Errorf("normalize sample %s: %w", s.SampleID, err)
		}
		ws := s.Timestamp.Truncate(fb.window)
		key := fmt.Sprintf("%s|%s|%d", s.ZoneID, s.APID, ws.UnixNano())
		g, ok := groups[key]
		if !ok {
			g = &group{zoneID: s.ZoneID, apID: s.APID, windowStart: ws}
			groups[key] = g
		}
		g.sampleIDs = append(g.sampleIDs, s.SampleID)
		if s.Timestamp.After(g.lastSeen) {
			g.lastSeen = s.Timestamp
		}
		g.vectors = append(g.vectors, vec)
		raw := rawMetrics(s)
		for dim := 0; dim < NumFeatures; dim++ {
			g.rawSums[dim] += raw[dim]
		}
	}

	obs := make([]Observation, 0, len(groups))
	for key, g := range groups {
		n := float64(len(g.vectors))
		dims := NumFeatures
		if fb.mode == AggregateWindowedMeanVariance {
			dims = NumFeatures + 1
		}
		vec := make(FeatureVector, dims)
		col := make([]float64, len(g.vectors))
		var stdSum float64
		for dim := 0; dim < NumFeatures; dim++ {
			for i, v := range g.vectors {
				col[i] = v[dim]
			}
			mean, std := stat.MeanStdDev(col, nil)
			if len(col) == 1 {
				mean, std = col[0], 0
			}
			vec[dim] = mean
			stdSum += std
		}
		if fb.mode == AggregateWindowedMeanVariance {
			// Normalized dimensions live in [0,1], so per-dim standard
			// deviation tops out at 0.5; doubling maps instability onto
			// the full range before inverting to higher = steadier.
			vec[FeatStability] = 1 - clamp(2*stdSum/float64(NumFeatures), 0, 1)
		}
		var raw [NumFeatures]float64
		for dim := 0; dim < NumFeatures; dim++ {
			raw[dim] = g.rawSums[dim] / n
		}
		obs = append(obs, Observation{
			ObservationID: key,
			ZoneID:        g.zoneID,
			APID:          g.apID,
			WindowStart:   g.windowStart,
			Timestamp:     g.lastSeen,
			SampleIDs:     g.sampleIDs,
			Vector:        vec,
			RawMeans:      meansFromRaw(raw),
		})
	}
	sortObservations(obs)
	return obs, nil
}

func meansFromRaw(raw [NumFeatures]float64) MetricMeans {
	return MetricMeans{
		RSSIDbm:            raw[FeatSignal],
		PacketErrorRate:    raw[FeatReliability],
		LatencyMs:          raw[FeatResponsiveness],
		ThroughputMbps:     raw[FeatThroughput],
		ChannelUtilization: raw[FeatAirtime],
		BytesTransferred:   raw[FeatVolume],
	}
}

func sortObservations(obs []Observation) {
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].ZoneID != obs[j].ZoneID {
			return obs[i].ZoneID < obs[j].ZoneID
		}
		if obs[i].APID != obs[j].APID {
			return obs[i].APID < obs[j].APID
		}
		if !obs[i].WindowStart.Equal(obs[j].WindowStart) {
			return obs[i].WindowStart.Before(obs[j].WindowStart)
		}
		if !obs[i].Timestamp.Equal(obs[j].Timestamp) {
			return obs[i].Timestamp.Before(obs[j].Timestamp)
		}
		return obs[i].ObservationID < obs[j].ObservationID
	})
}
