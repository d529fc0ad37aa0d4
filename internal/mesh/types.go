// Package mesh implements the zone recommendation analytics core for
// multi-AP mesh Wi-Fi deployments. It turns per-zone link telemetry into
// normalized feature vectors, groups them into performance clusters, labels
// the clusters with an ordered rule table, and aggregates per-sample
// verdicts into one stable recommendation per zone.
package mesh

import "time"

// QualityLabel classifies the link quality of a cluster or sample.
type QualityLabel string

const (
	// LabelGood indicates a healthy link profile
	LabelGood QualityLabel = "good"
	// LabelMarginal indicates a serviceable but degraded link profile
	LabelMarginal QualityLabel = "marginal"
	// LabelPoor indicates a link profile clients should move away from
	LabelPoor QualityLabel = "poor"
)

// Action is the recommended client action for a zone or sample.
type Action string

const (
	// ActionKeep keeps the client on its current access point
	ActionKeep Action = "keep"
	// ActionSwitchToMain moves the client to the main access point
	ActionSwitchToMain Action = "switch_to_main"
	// ActionSwitchToExtender moves the client to the best extender
	ActionSwitchToExtender Action = "switch_to_extender"
	// ActionInvestigate flags the zone for operator attention
	ActionInvestigate Action = "investigate"
)

// Physically plausible metric ranges. Samples outside these bounds are
// rejected at validation, before any normalization.
const (
	RSSIMinDbm         = -100.0
	RSSIMaxDbm         = 0.0
	LatencyMaxMs       = 10000.0
	ThroughputMaxMbps  = 10000.0
	FractionMin        = 0.0
	FractionMax        = 1.0
	BytesTransferredMin = 0
)

// MetricSample is one telemetry observation for a (zone, AP) link.
// Samples are immutable once created; they are produced by an external
// telemetry collector and validated on the way into the pipeline.
type MetricSample struct {
	SampleID           string    `json:"sample_id"`
	ZoneID             string    `json:"zone_id"`
	APID               string    `json:"ap_id"`
	Timestamp          time.Time `json:"timestamp"`
	RSSIDbm            float64   `json:"rssi_dbm"`
	PacketErrorRate    float64   `json:"packet_error_rate"`
	LatencyMs          float64   `json:"latency_ms"`
	ThroughputMbps     float64   `json:"throughput_mbps"`
	ChannelUtilization float64   `json:"channel_utilization"`
	BytesTransferred   int64     `json:"bytes_transferred"`
}

// Validate checks every field against its physically plausible range.
// Returns an *InvalidMetricError describing the first offending field.
func (s *MetricSample) Validate() error {
	if s.ZoneID == "" {
		return &InvalidMetricError{Field: "zone_id", Reason: "missing"}
	}
	if s.APID == "" {
		return &InvalidMetricError{Field: "ap_id", Reason: "missing"}
	}
	if s.Timestamp.IsZero() {
		return &InvalidMetricError{Field: "timestamp", Reason: "missing"}
	}
	if s.RSSIDbm < RSSIMinDbm || s.RSSIDbm > RSSIMaxDbm {
		return &InvalidMetricError{Field: "rssi_dbm", Value: s.RSSIDbm,
			Reason: "outside [-100,0] dBm"}
	}
	if s.PacketErrorRate < FractionMin || s.PacketErrorRate > FractionMax {
		return &InvalidMetricError{Field: "packet_error_rate", Value: s.PacketErrorRate,
			Reason: "outside [0,1]"}
	}
	if s.LatencyMs < 0 || s.LatencyMs > LatencyMaxMs {
		return &InvalidMetricError{Field: "latency_ms", Value: s.LatencyMs,
			Reason: "outside [0,10000] ms"}
	}
	if s.ThroughputMbps < 0 || s.ThroughputMbps > ThroughputMaxMbps {
		return &InvalidMetricError{Field: "throughput_mbps", Value: s.ThroughputMbps,
			Reason: "outside [0,10000] Mbps"}
	}
	if s.ChannelUtilization < FractionMin || s.ChannelUtilization > FractionMax {
		return &InvalidMetricError{Field: "channel_utilization", Value: s.ChannelUtilization,
			Reason: "outside [0,1]"}
	}
	if s.BytesTransferred < BytesTransferredMin {
		return &InvalidMetricError{Field: "bytes_transferred", Value: float64(s.BytesTransferred),
			Reason: "negative"}
	}
	return nil
}

// Feature dimension indices. The order is fixed and shared by the
// normalizer, the clustering engine, and the rule table: downstream code
// reasons over geometry only, so every vector must use this layout.
// After normalization every dimension is in [0,1] with higher = better.
const (
	FeatSignal         = iota // from RSSI
	FeatReliability           // from packet error rate (inverted)
	FeatResponsiveness        // from latency (inverted)
	FeatThroughput            // from throughput
	FeatAirtime               // from channel utilization (inverted)
	FeatVolume                // from bytes transferred
	NumFeatures
)

// FeatStability is the optional extra dimension appended in
// windowed_mean_plus_variance aggregation. Higher = steadier link.
const FeatStability = NumFeatures

// FeatureNames maps feature dimension indices to the names used in rule
// conditions and diagnostics. Index FeatStability is only present on
// vectors built with variance aggregation.
var FeatureNames = []string{
	FeatSignal:         "signal",
	FeatReliability:    "reliability",
	FeatResponsiveness: "responsiveness",
	FeatThroughput:     "throughput",
	FeatAirtime:        "airtime",
	FeatVolume:         "volume",
	FeatStability:      "stability",
}

// FeatureVector is an ordered sequence of scaled scalar features.
// Length is NumFeatures, or NumFeatures+1 with the stability dimension.
type FeatureVector []float64

// MetricMeans holds per-metric raw means for a group of samples. Profiles
// carry these so operators can read cluster centroids in physical units.
type MetricMeans struct {
	RSSIDbm            float64 `json:"rssi_dbm"`
	PacketErrorRate    float64 `json:"packet_error_rate"`
	LatencyMs          float64 `json:"latency_ms"`
	ThroughputMbps     float64 `json:"throughput_mbps"`
	ChannelUtilization float64 `json:"channel_utilization"`
	BytesTransferred   float64 `json:"bytes_transferred"`
}

// Observation is one clustering input: a feature vector for a
// (zone, AP, window) group plus the raw-metric means behind it.
// In per_sample aggregation an observation wraps a single sample.
type Observation struct {
	ObservationID string       `json:"observation_id"`
	ZoneID        string       `json:"zone_id"`
	APID          string       `json:"ap_id"`
	WindowStart   time.Time    `json:"window_start"`
	Timestamp     time.Time    `json:"timestamp"`
	SampleIDs     []string     `json:"sample_ids"`
	Vector        FeatureVector `json:"vector"`
	RawMeans      MetricMeans  `json:"raw_means"`
}

// OutlierClusterID is the reserved cluster for observations farther than
// the outlier distance threshold from every centroid. No ClusterProfile
// is produced for it.
const OutlierClusterID = -1

// ClusterAssignment maps one observation to its cluster for a single run.
// Cluster IDs are stable only within a run; re-running may renumber
// clusters, so downstream code keys decisions off profile content.
type ClusterAssignment struct {
	ObservationID      string  `json:"observation_id"`
	ClusterID          int     `json:"cluster_id"`
	DistanceToCentroid float64 `json:"distance_to_centroid"`
}

// ClusterProfile summarises one surviving cluster from a clustering run.
type ClusterProfile struct {
	ClusterID   int           `json:"cluster_id"`
	Centroid    FeatureVector `json:"centroid"`
	MemberCount int           `json:"member_count"`
	MeanMetrics MetricMeans   `json:"mean_metrics"`

	// Filled in by the rule engine.
	Label         QualityLabel `json:"label,omitempty"`
	DefaultAction Action       `json:"default_action,omitempty"`
	MatchedRule   string       `json:"matched_rule,omitempty"`
}

// ZoneVerdict is the per-observation decision derived from the
// observation's cluster label plus zone-local overrides.
type ZoneVerdict struct {
	ZoneID        string       `json:"zone_id"`
	APID          string       `json:"ap_id"`
	ObservationID string       `json:"observation_id"`
	Timestamp     time.Time    `json:"timestamp"`
	ClusterID     int          `json:"cluster_id"`
	Quality       QualityLabel `json:"quality_label"`
	Action        Action       `json:"recommended_action"`
	// PreferredAP is the AP this verdict votes for: the verdict's own AP
	// for keep, the switch target for switch actions, empty for
	// investigate. The aggregator tallies these votes.
	PreferredAP string  `json:"preferred_ap,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// EvidenceWindow describes the span of samples behind a recommendation.
type EvidenceWindow struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	SampleCount int       `json:"sample_count"`
}

// ZoneRecommendation is the externally visible output: one per zone per
// run, aggregated over the evidence window to avoid reacting to single
// noisy samples.
type ZoneRecommendation struct {
	ZoneID         string         `json:"zone_id"`
	FinalAction    Action         `json:"final_action"`
	PreferredAP    string         `json:"preferred_ap,omitempty"`
	Confidence     float64        `json:"confidence"`
	StabilityScore float64        `json:"stability_score"`
	EvidenceWindow EvidenceWindow `json:"evidence_window"`
}
