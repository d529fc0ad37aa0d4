package mesh

import (
	"sort"
)

// Aggregator defaults.
const (
	// DefaultHysteresisFraction is the fraction of window verdicts that
	// must agree before an action is emitted.
	DefaultHysteresisFraction = 0.6
	// DefaultMinWindowSamples is the smallest evidence window that can
	// support a recommendation.
	DefaultMinWindowSamples = 5
)

// Aggregator merges a zone's verdict stream over its evidence window into
// one stable ZoneRecommendation. Hysteresis keeps single noisy samples
// from flipping the outcome: an action only wins once HysteresisFraction
// of the window's verdicts vote for the same preferred AP.
type Aggregator struct {
	HysteresisFraction float64
	MinWindowSamples   int
}

// NewAggregator creates an aggregator, substituting defaults for
// out-of-range values. The fraction must land in (0,1].
func NewAggregator(hysteresisFraction float64, minWindowSamples int) *Aggregator {
	if hysteresisFraction <= 0 || hysteresisFraction > 1 {
		hysteresisFraction = DefaultHysteresisFraction
	}
	if minWindowSamples < 1 {
		minWindowSamples = DefaultMinWindowSamples
	}
	return &Aggregator{
		HysteresisFraction: hysteresisFraction,
		MinWindowSamples:   minWindowSamples,
	}
}

// Aggregate reduces one zone's verdicts to a recommendation.
//
// Verdicts vote by preferred AP (keep votes for the verdict's own AP,
// switch votes for the switch target, investigate votes for no AP). The
// winning vote must clear the hysteresis fraction; windows that are too
// short or have no quorum fail with *InconclusiveError rather than
// guessing. Confidence is the agreeing fraction; the stability score is
// one minus the vote transition rate across the time-ordered window.
func (a *Aggregator) Aggregate(zoneID string, verdicts []ZoneVerdict) (*ZoneRecommendation, error) {
	n := len(verdicts)
	if n < a.MinWindowSamples {
		return nil, &InconclusiveError{
			ZoneID:  zoneID,
			Samples: n,
			Reason:  "window below minimum sample count",
		}
	}

	ordered := make([]ZoneVerdict, n)
	copy(ordered, verdicts)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ObservationID < ordered[j].ObservationID
	})

	votes := make(map[string]int) // preferred AP, "" = investigate
	for i := range ordered {
		votes[ordered[i].PreferredAP]++
	}

	winner, winnerCount := winningVote(votes)
	if float64(winnerCount)/float64(n) < a.HysteresisFraction {
		return nil, &InconclusiveError{
			ZoneID:  zoneID,
			Samples: n,
			Reason:  "verdicts split below hysteresis quorum",
		}
	}

	rec := &ZoneRecommendation{
		ZoneID:      zoneID,
		PreferredAP: winner,
		Confidence:  float64(winnerCount) / float64(n),
		EvidenceWindow: EvidenceWindow{
			From:        ordered[0].Timestamp,
			To:          ordered[n-1].Timestamp,
			SampleCount: n,
		},
	}
	rec.FinalAction = finalAction(winner, ordered)
	rec.StabilityScore = stabilityScore(ordered)
	return rec, nil
}

// winningVote returns the vote key with the highest count. Ties resolve
// deterministically: a named AP beats the investigate vote, then
// lexicographic order decides.
func winningVote(votes map[string]int) (string, int) {
	keys := make([]string, 0, len(votes))
	for k := range votes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if votes[keys[i]] != votes[keys[j]] {
			return votes[keys[i]] > votes[keys[j]]
		}
		// "" sorts last so a concrete AP wins count ties.
		if (keys[i] == "") != (keys[j] == "") {
			return keys[j] == ""
		}
		return keys[i] < keys[j]
	})
	return keys[0], votes[keys[0]]
}

// finalAction maps the winning vote back onto an action. A zone whose
// agreeing verdicts all already sit on the preferred AP keeps; a zone
// with any verdict switching toward it emits that switch action.
func finalAction(winner string, ordered []ZoneVerdict) Action {
	if winner == "" {
		return ActionInvestigate
	}
	action := ActionKeep
	for i := range ordered {
		v := &ordered[i]
		if v.PreferredAP != winner {
			continue
		}
		if v.Action == ActionSwitchToMain || v.Action == ActionSwitchToExtender {
			action = v.Action
		}
	}
	return action
}

// stabilityScore measures how steady the vote stream is: 1 for a window
// that never changes its mind, approaching 0 for one that flips every
// sample.
func stabilityScore(ordered []ZoneVerdict) float64 {
	n := len(ordered)
	if n < 2 {
		return 1
	}
	transitions := 0
	for i := 1; i < n; i++ {
		if ordered[i].PreferredAP != ordered[i-1].PreferredAP {
			transitions++
		}
	}
	return 1 - float64(transitions)/float64(n-1)
}
