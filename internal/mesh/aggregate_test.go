package mesh

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var verdictWindowStart = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func verdictAt(i int, ap string, action Action, preferred string) ZoneVerdict {
	return ZoneVerdict{
		ZoneID:        "z1",
		APID:          ap,
		ObservationID: fmt.Sprintf("v%03d", i),
		Timestamp:     verdictWindowStart.Add(time.Duration(i) * 10 * time.Second),
		Quality:       LabelGood,
		Action:        action,
		PreferredAP:   preferred,
		Confidence:    0.9,
	}
}

func TestAggregateUnanimousKeep(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0, 0)
	verdicts := make([]ZoneVerdict, 30)
	for i := range verdicts {
		verdicts[i] = verdictAt(i, "main", ActionKeep, "main")
	}

	rec, err := agg.Aggregate("z1", verdicts)
	require.NoError(t, err)
	assert.Equal(t, ActionKeep, rec.FinalAction)
	assert.Equal(t, "main", rec.PreferredAP)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.Equal(t, 1.0, rec.StabilityScore)
	assert.Equal(t, 30, rec.EvidenceWindow.SampleCount)
	assert.True(t, rec.EvidenceWindow.From.Before(rec.EvidenceWindow.To))
}

func TestAggregateHysteresisAbsorbsNoise(t *testing.T) {
	t.Parallel()

	// One flapped verdict out of thirty must not flip the zone.
	agg := NewAggregator(DefaultHysteresisFraction, DefaultMinWindowSamples)
	verdicts := make([]ZoneVerdict, 30)
	for i := range verdicts {
		verdicts[i] = verdictAt(i, "main", ActionKeep, "main")
	}
	verdicts[13] = verdictAt(13, "main", ActionSwitchToExtender, "ext")

	rec, err := agg.Aggregate("z1", verdicts)
	require.NoError(t, err)
	assert.Equal(t, ActionKeep, rec.FinalAction)
	assert.Equal(t, "main", rec.PreferredAP)
	assert.InDelta(t, 29.0/30.0, rec.Confidence, 1e-9)
	// Two transitions (into the flap and back out) across 29 steps.
	assert.InDelta(t, 1.0-2.0/29.0, rec.StabilityScore, 1e-9)
}

func TestAggregateSwitchQuorum(t *testing.T) {
	t.Parallel()

	// Main-AP verdicts keep, extender verdicts switch toward main; both
	// vote for the main AP so together they clear the quorum and the zone
	// emits the switch.
	agg := NewAggregator(DefaultHysteresisFraction, DefaultMinWindowSamples)
	verdicts := make([]ZoneVerdict, 0, 60)
	for i := 0; i < 30; i++ {
		verdicts = append(verdicts, verdictAt(i, "main", ActionKeep, "main"))
	}
	for i := 30; i < 60; i++ {
		v := verdictAt(i, "ext", ActionSwitchToMain, "main")
		v.Quality = LabelPoor
		verdicts = append(verdicts, v)
	}

	rec, err := agg.Aggregate("z1", verdicts)
	require.NoError(t, err)
	assert.Equal(t, ActionSwitchToMain, rec.FinalAction)
	assert.Equal(t, "main", rec.PreferredAP)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.Equal(t, 60, rec.EvidenceWindow.SampleCount)
}

func TestAggregateShortWindowInconclusive(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0, 0)
	verdicts := []ZoneVerdict{verdictAt(0, "main", ActionKeep, "main")}

	_, err := agg.Aggregate("z1", verdicts)
	var ie *InconclusiveError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "z1", ie.ZoneID)
	assert.Equal(t, 1, ie.Samples)
}

func TestAggregateSplitVoteInconclusive(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(DefaultHysteresisFraction, DefaultMinWindowSamples)
	verdicts := make([]ZoneVerdict, 0, 30)
	for i := 0; i < 15; i++ {
		verdicts = append(verdicts, verdictAt(i, "main", ActionKeep, "main"))
	}
	for i := 15; i < 30; i++ {
		verdicts = append(verdicts, verdictAt(i, "main", ActionSwitchToExtender, "ext"))
	}

	_, err := agg.Aggregate("z1", verdicts)
	var ie *InconclusiveError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Error(), "quorum")
}

func TestAggregateInvestigateMajority(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(DefaultHysteresisFraction, DefaultMinWindowSamples)
	verdicts := make([]ZoneVerdict, 10)
	for i := range verdicts {
		v := verdictAt(i, "main", ActionInvestigate, "")
		v.Quality = LabelMarginal
		verdicts[i] = v
	}

	rec, err := agg.Aggregate("z1", verdicts)
	require.NoError(t, err)
	assert.Equal(t, ActionInvestigate, rec.FinalAction)
	assert.Empty(t, rec.PreferredAP)
}

func TestAggregateStabilityReflectsFlapping(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0.5, DefaultMinWindowSamples)
	verdicts := make([]ZoneVerdict, 10)
	for i := range verdicts {
		if i%2 == 0 {
			verdicts[i] = verdictAt(i, "main", ActionKeep, "main")
		} else {
			verdicts[i] = verdictAt(i, "main", ActionSwitchToExtender, "ext")
		}
	}

	rec, err := agg.Aggregate("z1", verdicts)
	require.NoError(t, err)
	// Alternating votes transition at every step.
	assert.InDelta(t, 0.0, rec.StabilityScore, 1e-9)
}

func TestWinningVoteTieBreaks(t *testing.T) {
	t.Parallel()

	ap, count := winningVote(map[string]int{"": 5, "main": 5})
	assert.Equal(t, "main", ap)
	assert.Equal(t, 5, count)

	ap, _ = winningVote(map[string]int{"ext-a": 3, "ext-b": 3})
	assert.Equal(t, "ext-a", ap)
}

func TestNewAggregatorDefaults(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(1.5, -1)
	assert.Equal(t, DefaultHysteresisFraction, agg.HysteresisFraction)
	assert.Equal(t, DefaultMinWindowSamples, agg.MinWindowSamples)
}
