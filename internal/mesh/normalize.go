package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// NormalizationMethod selects how raw metrics are rescaled. The choice is
// fixed per deployment: cluster geometry is scale-dependent, so mixing
// methods across runs would make profiles incomparable.
type NormalizationMethod string

const (
	// NormalizeMinMax rescales against fixed per-metric domain bounds.
	NormalizeMinMax NormalizationMethod = "minmax"
	// NormalizeZScore standardises against the run's own batch statistics,
	// clamped at ±3σ and rescaled into [0,1].
	NormalizeZScore NormalizationMethod = "zscore"
)

// IsValid reports whether the method is a recognized normalization method.
func (m NormalizationMethod) IsValid() bool {
	return m == NormalizeMinMax || m == NormalizeZScore
}

// MetricBounds is the fixed domain range for one raw metric under min-max
// scaling. Values outside the range clamp to the nearest bound.
type MetricBounds struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// DefaultDomainBounds returns the per-metric domain bounds used by min-max
// scaling, indexed by feature dimension. The latency and throughput spans
// are deliberately narrower than the validation ranges: a 500 ms sample is
// physically possible but already saturates "worst" for decision purposes.
func DefaultDomainBounds() [NumFeatures]MetricBounds {
	return [NumFeatures]MetricBounds{
		FeatSignal:         {Lo: RSSIMinDbm, Hi: RSSIMaxDbm},
		FeatReliability:    {Lo: 0, Hi: 1},
		FeatResponsiveness: {Lo: 0, Hi: 100},  // ms
		FeatThroughput:     {Lo: 0, Hi: 200},  // Mbps
		FeatAirtime:        {Lo: 0, Hi: 1},
		FeatVolume:         {Lo: 0, Hi: 1e9}, // bytes per sample interval
	}
}

// lowerIsBetter marks dimensions whose raw metric improves as it
// decreases. After normalization these are flipped so that every
// dimension reads higher = better.
var lowerIsBetter = [NumFeatures]bool{
	FeatReliability:    true, // packet error rate
	FeatResponsiveness: true, // latency
	FeatAirtime:        true, // channel utilization
}

// Calibration is the versioned normalization state for one run. It is
// built once from the run's configuration (and, for z-score, the run's
// own samples) and then passed by value, so concurrent per-zone
// processing never races on shared calibration updates.
type Calibration struct {
	Version string                  `json:"version"`
	Method  NormalizationMethod     `json:"method"`
	Bounds  [NumFeatures]MetricBounds `json:"bounds"`
	Mean    [NumFeatures]float64    `json:"mean,omitempty"`
	StdDev  [NumFeatures]float64    `json:"std_dev,omitempty"`
}

// calibrationVersion identifies the bounds/polarity layout above. Bump it
// whenever the feature order or default bounds change.
const calibrationVersion = "cal-v1"

// rawMetrics extracts the sample's metrics in feature-dimension order.
func rawMetrics(s *MetricSample) [NumFeatures]float64 {
	return [NumFeatures]float64{
		FeatSignal:         s.RSSIDbm,
		FeatReliability:    s.PacketErrorRate,
		FeatResponsiveness: s.LatencyMs,
		FeatThroughput:     s.ThroughputMbps,
		FeatAirtime:        s.ChannelUtilization,
		FeatVolume:         float64(s.BytesTransferred),
	}
}

// NewCalibration builds the calibration for a run. Min-max calibration
// uses the fixed domain bounds only; z-score calibration additionally
// computes per-metric mean and standard deviation from the supplied
// (already validated) samples.
func NewCalibration(method NormalizationMethod, samples []MetricSample) (Calibration, error) {
	if !method.IsValid() {
		return Calibration{}, fmt.Errorf("unknown normalization method %q", method)
	}
	cal := Calibration{
		Version: calibrationVersion,
		Method:  method,
		Bounds:  DefaultDomainBounds(),
	}
	if method != NormalizeZScore {
		return cal, nil
	}
	if len(samples) < 2 {
		return Calibration{}, &InsufficientDataError{Got: len(samples), Need: 2}
	}
	col := make([]float64, len(samples))
	for dim := 0; dim < NumFeatures; dim++ {
		for i := range samples {
			col[i] = rawMetrics(&samples[i])[dim]
		}
		mean, std := stat.MeanStdDev(col, nil)
		cal.Mean[dim] = mean
		cal.StdDev[dim] = std
	}
	return cal, nil
}

// Normalizer rescales validated MetricSamples onto the shared
// higher-is-better [0,1] feature space.
type Normalizer struct {
	cal Calibration
}

// NewNormalizer creates a normalizer for the given calibration.
func NewNormalizer(cal Calibration) *Normalizer {
	return &Normalizer{cal: cal}
}

// Calibration returns the calibration this normalizer was built with.
func (n *Normalizer) Calibration() Calibration { return n.cal }

// zScoreClampSigma bounds the z-score range mapped onto [0,1].
const zScoreClampSigma = 3.0

// Normalize converts a MetricSample into a FeatureVector. The sample is
// validated first; out-of-range fields yield an *InvalidMetricError.
// Every output dimension is in [0,1] and reads higher = better.
func (n *Normalizer) Normalize(s *MetricSample) (FeatureVector, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	raw := rawMetrics(s)
	vec := make(FeatureVector, NumFeatures)
	for dim := 0; dim < NumFeatures; dim++ {
		var v float64
		switch n.cal.Method {
		case NormalizeZScore:
			std := n.cal.StdDev[dim]
			if std == 0 {
				v = 0.5 // constant metric carries no information
			} else {
				z := (raw[dim] - n.cal.Mean[dim]) / std
				v = (clamp(z, -zScoreClampSigma, zScoreClampSigma) + zScoreClampSigma) / (2 * zScoreClampSigma)
			}
		default: // minmax
			b := n.cal.Bounds[dim]
			v = clamp((raw[dim]-b.Lo)/(b.Hi-b.Lo), 0, 1)
		}
		if lowerIsBetter[dim] {
			v = 1 - v
		}
		vec[dim] = v
	}
	return vec, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
