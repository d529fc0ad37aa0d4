package mesh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/meshwise/internal/monitoring"
)

// Params is the full, explicitly passed configuration for one pipeline
// run. It is a value type: runs never share mutable calibration or rule
// state, so per-zone stages can execute concurrently without races.
type Params struct {
	NormalizationMethod      NormalizationMethod
	AggregationMode          AggregationMode
	Window                   time.Duration
	KMin                     int
	KMax                     int
	Seed                     int64
	OutlierDistanceThreshold float64
	Rules                    []Rule
	MainAPID                 string
	HysteresisFraction       float64
	MinWindowSamples         int
}

// DefaultParams returns the stock pipeline configuration.
func DefaultParams() Params {
	return Params{
		NormalizationMethod:      NormalizeMinMax,
		AggregationMode:          AggregatePerSample,
		Window:                   DefaultAggregationWindow,
		KMin:                     DefaultKMin,
		KMax:                     DefaultKMax,
		OutlierDistanceThreshold: DefaultOutlierDistanceThreshold,
		MainAPID:                 DefaultMainAPID,
		HysteresisFraction:       DefaultHysteresisFraction,
		MinWindowSamples:         DefaultMinWindowSamples,
	}
}

// Validate checks the parameter combination before a run starts.
func (p *Params) Validate() error {
	if !p.NormalizationMethod.IsValid() {
		return fmt.Errorf("unknown normalization method %q", p.NormalizationMethod)
	}
	if !p.AggregationMode.IsValid() {
		return fmt.Errorf("unknown aggregation mode %q", p.AggregationMode)
	}
	if p.KMin < 2 {
		return fmt.Errorf("k_min must be at least 2, got %d", p.KMin)
	}
	if p.KMax < p.KMin {
		return fmt.Errorf("k_max %d below k_min %d", p.KMax, p.KMin)
	}
	if p.HysteresisFraction <= 0 || p.HysteresisFraction > 1 {
		return fmt.Errorf("hysteresis_fraction must be in (0,1], got %g", p.HysteresisFraction)
	}
	if p.MinWindowSamples < 1 {
		return fmt.Errorf("min_window_samples must be positive, got %d", p.MinWindowSamples)
	}
	return nil
}

// RejectedSample records one sample dropped at validation. The run
// continues with the remaining samples.
type RejectedSample struct {
	SampleID string `json:"sample_id"`
	ZoneID   string `json:"zone_id"`
	APID     string `json:"ap_id"`
	Reason   string `json:"reason"`
}

// ZoneInconclusive records a zone whose evidence window could not support
// a recommendation this run.
type ZoneInconclusive struct {
	ZoneID  string `json:"zone_id"`
	Samples int    `json:"samples"`
	Reason  string `json:"reason"`
}

// RunReport is the full output of one pipeline run: recommendations plus
// the diagnostics a dashboard or operator needs to audit them.
type RunReport struct {
	RunID            string                    `json:"run_id"`
	GeneratedAt      time.Time                 `json:"generated_at"`
	SampleCount      int                       `json:"sample_count"`
	ObservationCount int                       `json:"observation_count"`
	K                int                       `json:"k"`
	Silhouette       float64                   `json:"silhouette"`
	OutlierCount     int                       `json:"outlier_count"`
	Calibration      Calibration               `json:"calibration"`
	Profiles         []ClusterProfile          `json:"profiles"`
	Recommendations  []ZoneRecommendation      `json:"recommendations"`
	Inconclusive     []ZoneInconclusive        `json:"inconclusive,omitempty"`
	Rejected         []RejectedSample          `json:"rejected,omitempty"`
	Warnings         []UnmatchedPatternWarning `json:"warnings,omitempty"`
}

// Pipeline wires the analytics stages together for batch runs.
type Pipeline struct {
	params Params
}

// NewPipeline validates the parameters and builds a pipeline.
func NewPipeline(params Params) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline params: %w", err)
	}
	re := NewRuleEngine(params.Rules, params.MainAPID)
	if err := re.ValidateRules(); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	return &Pipeline{params: params}, nil
}

// Run processes one batch of samples collected over an evidence window.
//
// Stages: validate (reject bad samples, keep going), calibrate and
// normalize, build feature vectors, cluster — the one global
// synchronization point, since clusters are defined across all zones —
// then label, derive verdicts, and aggregate per zone in parallel.
//
// The caller bounds the run with ctx; once the deadline passes the whole
// run fails rather than emitting partial recommendations.
func (p *Pipeline) Run(ctx context.Context, samples []MetricSample) (*RunReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run aborted before start: %w", err)
	}

	valid := make([]MetricSample, 0, len(samples))
	var rejected []RejectedSample
	for i := range samples {
		s := samples[i]
		if err := s.Validate(); err != nil {
			rejected = append(rejected, RejectedSample{
				SampleID: s.SampleID,
				ZoneID:   s.ZoneID,
				APID:     s.APID,
				Reason:   err.Error(),
			})
			monitoring.Logf("pipeline: rejecting sample %s (zone %s): %v", s.SampleID, s.ZoneID, err)
			continue
		}
		valid = append(valid, s)
	}

	cal, err := NewCalibration(p.params.NormalizationMethod, valid)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	builder, err := NewFeatureBuilder(p.params.AggregationMode, p.params.Window, NewNormalizer(cal))
	if err != nil {
		return nil, err
	}
	obs, err := builder.Build(valid)
	if err != nil {
		return nil, fmt.Errorf("feature build: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run exceeded time budget before clustering: %w", err)
	}

	engine := NewClusterEngine(p.params.KMin, p.params.KMax, p.params.Seed, p.params.OutlierDistanceThreshold)
	run, err := engine.Run(obs)
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}

	ruleEngine := NewRuleEngine(p.params.Rules, p.params.MainAPID)
	warnings := ruleEngine.LabelProfiles(run)
	verdicts := ruleEngine.Verdicts(run, obs)

	byZone := make(map[string][]ZoneVerdict)
	for i := range verdicts {
		byZone[verdicts[i].ZoneID] = append(byZone[verdicts[i].ZoneID], verdicts[i])
	}
	zones := make([]string, 0, len(byZone))
	for zone := range byZone {
		zones = append(zones, zone)
	}
	sort.Strings(zones)

	// Zones are independent once clustering is done; aggregate them
	// concurrently with one result slot per zone.
	agg := NewAggregator(p.params.HysteresisFraction, p.params.MinWindowSamples)
	recs := make([]*ZoneRecommendation, len(zones))
	incs := make([]*ZoneInconclusive, len(zones))

	g, gctx := errgroup.WithContext(ctx)
	for i, zone := range zones {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := agg.Aggregate(zone, byZone[zone])
			if err != nil {
				var inc *InconclusiveError
				if errors.As(err, &inc) {
					incs[i] = &ZoneInconclusive{ZoneID: inc.ZoneID, Samples: inc.Samples, Reason: inc.Reason}
					monitoring.Logf("pipeline: %v", inc)
					return nil
				}
				return fmt.Errorf("aggregate zone %s: %w", zone, err)
			}
			recs[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run exceeded time budget: %w", err)
	}

	report := &RunReport{
		RunID:            run.RunID,
		GeneratedAt:      time.Now().UTC(),
		SampleCount:      len(valid),
		ObservationCount: len(obs),
		K:                run.K,
		Silhouette:       run.Silhouette,
		OutlierCount:     run.OutlierCount,
		Calibration:      cal,
		Profiles:         run.Profiles,
		Rejected:         rejected,
		Warnings:         warnings,
	}
	for i := range zones {
		if recs[i] != nil {
			report.Recommendations = append(report.Recommendations, *recs[i])
		}
		if incs[i] != nil {
			report.Inconclusive = append(report.Inconclusive, *incs[i])
		}
	}
	return report, nil
}
