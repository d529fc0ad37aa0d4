package mesh

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/meshwise/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// Normalized fixture centroids under the default min-max bounds. These
// mirror the -45 dBm / -75 dBm link archetypes used across the package
// tests.
var (
	goodCentroid = FeatureVector{0.55, 0.99, 0.92, 0.45, 0.80, 0.005}
	midCentroid  = FeatureVector{0.40, 0.80, 0.50, 0.20, 0.50, 0.005}
	weakCentroid = FeatureVector{0.25, 0.88, 0.40, 0.075, 0.30, 0.0004}
)

func labelRank(l QualityLabel) int {
	switch l {
	case LabelGood:
		return 2
	case LabelMarginal:
		return 1
	default:
		return 0
	}
}

func runWithCentroids(centroids ...FeatureVector) *ClusterRun {
	run := &ClusterRun{profilesByID: map[int]*ClusterProfile{}}
	for i, c := range centroids {
		run.Profiles = append(run.Profiles, ClusterProfile{ClusterID: i, Centroid: c, MemberCount: 1})
	}
	for i := range run.Profiles {
		run.profilesByID[i] = &run.Profiles[i]
	}
	return run
}

// linkObs fabricates n observations on one (zone, AP) link sharing the
// given vector, ten seconds apart.
func linkObs(zoneID, apID string, n int, vec FeatureVector) []Observation {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	obs := make([]Observation, n)
	for i := range obs {
		obs[i] = Observation{
			ObservationID: fmt.Sprintf("%s-%s-%03d", zoneID, apID, i),
			ZoneID:        zoneID,
			APID:          apID,
			Timestamp:     start.Add(time.Duration(i) * 10 * time.Second),
			Vector:        vec,
		}
	}
	return obs
}

func TestDefaultRulesValidate(t *testing.T) {
	t.Parallel()

	re := NewRuleEngine(nil, "")
	require.NoError(t, re.ValidateRules())
	assert.Equal(t, DefaultMainAPID, re.MainAPID)
}

func TestValidateRulesRejectsBadTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rules []Rule
	}{
		{"unknown feature", []Rule{{Name: "r", Conditions: []Condition{{Feature: "jitter", Op: CompareAtLeast, Value: 0.5}}, Label: LabelGood, Action: ActionKeep}}},
		{"unknown comparator", []Rule{{Name: "r", Conditions: []Condition{{Feature: "signal", Op: "eq", Value: 0.5}}, Label: LabelGood, Action: ActionKeep}}},
		{"no conditions", []Rule{{Name: "r", Label: LabelGood, Action: ActionKeep}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, NewRuleEngine(tt.rules, "").ValidateRules())
		})
	}
}

func TestLabelProfilesDefaultTable(t *testing.T) {
	t.Parallel()

	re := NewRuleEngine(nil, "")
	run := runWithCentroids(goodCentroid, midCentroid, weakCentroid)

	warnings := re.LabelProfiles(run)
	assert.Empty(t, warnings)

	assert.Equal(t, LabelGood, run.Profiles[0].Label)
	assert.Equal(t, ActionKeep, run.Profiles[0].DefaultAction)
	assert.Equal(t, "strong-link", run.Profiles[0].MatchedRule)

	assert.Equal(t, LabelMarginal, run.Profiles[1].Label)
	assert.Equal(t, "serviceable-link", run.Profiles[1].MatchedRule)

	assert.Equal(t, LabelPoor, run.Profiles[2].Label)
	assert.Equal(t, ActionSwitchToMain, run.Profiles[2].DefaultAction)
	assert.Equal(t, "weak-signal", run.Profiles[2].MatchedRule)
}

func TestLabelProfilesFirstMatchWins(t *testing.T) {
	t.Parallel()

	// Both rules match the centroid; table order decides.
	rules := []Rule{
		{
			Name:       "broad-marginal",
			Conditions: []Condition{{Feature: "signal", Op: CompareAtLeast, Value: 0.2}},
			Label:      LabelMarginal,
			Action:     ActionInvestigate,
		},
		{
			Name:       "broad-good",
			Conditions: []Condition{{Feature: "signal", Op: CompareAtLeast, Value: 0.2}},
			Label:      LabelGood,
			Action:     ActionKeep,
		},
	}
	re := NewRuleEngine(rules, "")
	run := runWithCentroids(goodCentroid)

	re.LabelProfiles(run)
	assert.Equal(t, LabelMarginal, run.Profiles[0].Label)
	assert.Equal(t, "broad-marginal", run.Profiles[0].MatchedRule)
}

func TestLabelProfilesUnmatchedFallsBackConservatively(t *testing.T) {
	t.Parallel()

	rules := []Rule{{
		Name:       "excellent-only",
		Conditions: []Condition{{Feature: "signal", Op: CompareAtLeast, Value: 0.95}},
		Label:      LabelGood,
		Action:     ActionKeep,
	}}
	re := NewRuleEngine(rules, "")
	run := runWithCentroids(midCentroid)

	warnings := re.LabelProfiles(run)
	require.Len(t, warnings, 1)
	assert.Equal(t, 0, warnings[0].ClusterID)
	assert.NotEmpty(t, warnings[0].String())

	// Policy gaps never fail open toward good.
	assert.Equal(t, LabelPoor, run.Profiles[0].Label)
	assert.Equal(t, ActionInvestigate, run.Profiles[0].DefaultAction)
	assert.Empty(t, run.Profiles[0].MatchedRule)
}

func TestStabilityConditionNeverMatchesShortVectors(t *testing.T) {
	t.Parallel()

	rules := []Rule{{
		Name:       "steady",
		Conditions: []Condition{{Feature: "stability", Op: CompareAtLeast, Value: 0.5}},
		Label:      LabelGood,
		Action:     ActionKeep,
	}}
	re := NewRuleEngine(rules, "")
	require.NoError(t, re.ValidateRules())

	// goodCentroid has no stability dimension, so the rule cannot match
	// and the profile takes the conservative fallback.
	run := runWithCentroids(goodCentroid)
	warnings := re.LabelProfiles(run)
	require.Len(t, warnings, 1)
	assert.Equal(t, LabelPoor, run.Profiles[0].Label)
}

func TestLabelsMonotonicUnderDegradation(t *testing.T) {
	t.Parallel()

	re := NewRuleEngine(nil, "")
	prev := 2 // rank of "good"
	for _, delta := range []float64{0, 0.1, 0.2, 0.3, 0.5, 0.8} {
		degraded := make(FeatureVector, NumFeatures)
		for i, v := range goodCentroid {
			degraded[i] = clamp(v-delta, 0, 1)
		}
		run := runWithCentroids(degraded)
		re.LabelProfiles(run)
		rank := labelRank(run.Profiles[0].Label)
		assert.LessOrEqual(t, rank, prev, "delta %.1f must not improve the label", delta)
		prev = rank
	}
}

func TestVerdictsZoneOverrides(t *testing.T) {
	t.Parallel()

	// One zone, healthy main link and degraded extender link, clustered
	// into the two archetype profiles.
	obs := append(
		linkObs("z1", "ext", 3, weakCentroid),
		linkObs("z1", "main", 3, goodCentroid)...,
	)
	run := runWithCentroids(goodCentroid, weakCentroid)
	run.Assignments = make([]ClusterAssignment, len(obs))
	for i := range obs {
		cid := 1 // weak profile
		if obs[i].APID == "main" {
			cid = 0
		}
		run.Assignments[i] = ClusterAssignment{ObservationID: obs[i].ObservationID, ClusterID: cid}
	}

	re := NewRuleEngine(nil, "main")
	re.LabelProfiles(run)
	verdicts := re.Verdicts(run, obs)
	require.Len(t, verdicts, len(obs))

	for i, v := range verdicts {
		switch obs[i].APID {
		case "main":
			assert.Equal(t, LabelGood, v.Quality)
			assert.Equal(t, ActionKeep, v.Action)
			assert.Equal(t, "main", v.PreferredAP)
			assert.InDelta(t, verdictConfidenceMax, v.Confidence, 1e-9)
		case "ext":
			assert.Equal(t, LabelPoor, v.Quality)
			assert.Equal(t, ActionSwitchToMain, v.Action)
			assert.Equal(t, "main", v.PreferredAP)
		}
	}
}

func TestVerdictOutlierBypassesTable(t *testing.T) {
	t.Parallel()

	obs := []Observation{{ObservationID: "o1", ZoneID: "z1", APID: "main", Vector: goodCentroid}}
	run := &ClusterRun{
		Assignments: []ClusterAssignment{{ObservationID: "o1", ClusterID: OutlierClusterID, DistanceToCentroid: 1.4}},
	}

	verdicts := NewRuleEngine(nil, "main").Verdicts(run, obs)
	require.Len(t, verdicts, 1)
	assert.Equal(t, LabelPoor, verdicts[0].Quality)
	assert.Equal(t, ActionInvestigate, verdicts[0].Action)
	assert.Equal(t, outlierVerdictConfidence, verdicts[0].Confidence)
	assert.Empty(t, verdicts[0].PreferredAP)
}

func TestVerdictPoorOnBestAPInvestigates(t *testing.T) {
	t.Parallel()

	// Single-AP zone: a switch recommendation has nowhere to go.
	obs := []Observation{{ObservationID: "o1", ZoneID: "z1", APID: "main", Vector: weakCentroid}}
	run := runWithCentroids(weakCentroid)
	run.Profiles[0].Label = LabelPoor
	run.Profiles[0].DefaultAction = ActionSwitchToMain
	run.Assignments = []ClusterAssignment{{ObservationID: "o1", ClusterID: 0}}

	verdicts := NewRuleEngine(nil, "main").Verdicts(run, obs)
	require.Len(t, verdicts, 1)
	assert.Equal(t, ActionInvestigate, verdicts[0].Action)
	assert.Empty(t, verdicts[0].PreferredAP)
}

func TestVerdictGoodDowngradedWhenSiblingDominates(t *testing.T) {
	t.Parallel()

	low := make(FeatureVector, NumFeatures)
	high := make(FeatureVector, NumFeatures)
	for i := range low {
		low[i] = 0.3
		high[i] = 0.7
	}
	obs := []Observation{
		{ObservationID: "o1", ZoneID: "z1", APID: "ext", Vector: low},
		{ObservationID: "o2", ZoneID: "z1", APID: "main", Vector: high},
	}
	run := runWithCentroids(low, high)
	for i := range run.Profiles {
		run.Profiles[i].Label = LabelGood
		run.Profiles[i].DefaultAction = ActionKeep
	}
	run.Assignments = []ClusterAssignment{
		{ObservationID: "o1", ClusterID: 0},
		{ObservationID: "o2", ClusterID: 1},
	}

	verdicts := NewRuleEngine(nil, "main").Verdicts(run, obs)
	require.Len(t, verdicts, 2)

	// The extender link is nominally good but its zone sibling outscores
	// it by more than the flip margin.
	assert.Equal(t, LabelMarginal, verdicts[0].Quality)
	assert.Equal(t, ActionInvestigate, verdicts[0].Action)
	assert.InDelta(t, verdictConfidenceMax-0.15, verdicts[0].Confidence, 1e-9)

	assert.Equal(t, LabelGood, verdicts[1].Quality)
	assert.Equal(t, ActionKeep, verdicts[1].Action)
	assert.Equal(t, "main", verdicts[1].PreferredAP)
}

func TestBestZoneAPTieBreak(t *testing.T) {
	t.Parallel()

	ap, score := bestZoneAP(map[string]float64{"ext-a": 0.5, "main": 0.5, "ext-b": 0.4}, "main")
	assert.Equal(t, "main", ap)
	assert.Equal(t, 0.5, score)

	ap, _ = bestZoneAP(map[string]float64{"ext-a": 0.6, "main": 0.5}, "main")
	assert.Equal(t, "ext-a", ap)

	ap, score = bestZoneAP(nil, "main")
	assert.Empty(t, ap)
	assert.Zero(t, score)
}

func TestSwitchActionFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ActionSwitchToMain, switchActionFor("main", "main"))
	assert.Equal(t, ActionSwitchToExtender, switchActionFor("ext-2", "main"))
}

func TestDistanceConfidence(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, verdictConfidenceMax, distanceConfidence(0, DefaultOutlierDistanceThreshold), 1e-9)
	assert.InDelta(t, verdictConfidenceMin, distanceConfidence(DefaultOutlierDistanceThreshold, DefaultOutlierDistanceThreshold), 1e-9)
	mid := distanceConfidence(DefaultOutlierDistanceThreshold/2, DefaultOutlierDistanceThreshold)
	assert.Greater(t, mid, verdictConfidenceMin)
	assert.Less(t, mid, verdictConfidenceMax)
	assert.Equal(t, verdictConfidenceMin, distanceConfidence(10, DefaultOutlierDistanceThreshold))
}
