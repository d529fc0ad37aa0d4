package mesh

import (
	"fmt"
	"sort"

	"github.com/banshee-data/meshwise/internal/monitoring"
)

// Comparator is the comparison direction of a rule condition.
type Comparator string

const (
	// CompareAtLeast matches when the feature value is >= the threshold.
	CompareAtLeast Comparator = "gte"
	// CompareAtMost matches when the feature value is <= the threshold.
	CompareAtMost Comparator = "lte"
)

// Condition is one predicate over a named feature dimension of a cluster
// centroid. All values are normalized, so higher always means better and
// thresholds read the same way for every metric.
type Condition struct {
	Feature string     `json:"feature"`
	Op      Comparator `json:"op"`
	Value   float64    `json:"value"`
}

// Rule is one entry of the decision table: a conjunction of conditions
// and the label/action to apply when they all hold.
type Rule struct {
	Name       string       `json:"name"`
	Conditions []Condition  `json:"conditions"`
	Label      QualityLabel `json:"label"`
	Action     Action       `json:"action"`
}

// DefaultRules returns the stock decision table, tuned for min-max
// normalization with the default domain bounds. Rules are evaluated in
// order and the first match wins, so the healthy profile must come
// before the broader marginal band. Operators retune deployments by
// supplying their own ordered table through configuration, not by
// editing control flow.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "strong-link",
			Conditions: []Condition{
				{Feature: "signal", Op: CompareAtLeast, Value: 0.50},
				{Feature: "throughput", Op: CompareAtLeast, Value: 0.35},
				{Feature: "reliability", Op: CompareAtLeast, Value: 0.90},
				{Feature: "responsiveness", Op: CompareAtLeast, Value: 0.70},
			},
			Label:  LabelGood,
			Action: ActionKeep,
		},
		{
			Name: "serviceable-link",
			Conditions: []Condition{
				{Feature: "signal", Op: CompareAtLeast, Value: 0.35},
				{Feature: "reliability", Op: CompareAtLeast, Value: 0.75},
				{Feature: "responsiveness", Op: CompareAtLeast, Value: 0.40},
			},
			Label:  LabelMarginal,
			Action: ActionInvestigate,
		},
		{
			Name: "weak-signal",
			Conditions: []Condition{
				{Feature: "signal", Op: CompareAtMost, Value: 0.35},
			},
			Label:  LabelPoor,
			Action: ActionSwitchToMain,
		},
		{
			Name: "lossy-link",
			Conditions: []Condition{
				{Feature: "reliability", Op: CompareAtMost, Value: 0.75},
			},
			Label:  LabelPoor,
			Action: ActionSwitchToMain,
		},
		{
			Name: "slow-link",
			Conditions: []Condition{
				{Feature: "responsiveness", Op: CompareAtMost, Value: 0.40},
			},
			Label:  LabelPoor,
			Action: ActionSwitchToMain,
		},
	}
}

// RuleEngine labels cluster profiles and derives per-observation
// verdicts from an explicit ordered decision table.
type RuleEngine struct {
	Rules []Rule
	// MainAPID identifies the main access point in verdict actions.
	// Switch ties between equally scoring APs prefer this AP.
	MainAPID string

	featureIndex map[string]int
}

// DefaultMainAPID is the AP identifier assumed for the main access point
// when the deployment does not configure one.
const DefaultMainAPID = "main"

// NewRuleEngine creates a rule engine. Nil rules fall back to the stock
// table; an empty main AP ID falls back to DefaultMainAPID.
func NewRuleEngine(rules []Rule, mainAPID string) *RuleEngine {
	if rules == nil {
		rules = DefaultRules()
	}
	if mainAPID == "" {
		mainAPID = DefaultMainAPID
	}
	idx := make(map[string]int, len(FeatureNames))
	for i, name := range FeatureNames {
		idx[name] = i
	}
	return &RuleEngine{Rules: rules, MainAPID: mainAPID, featureIndex: idx}
}

// ValidateRules checks that every condition references a known feature
// and a known comparator.
func (re *RuleEngine) ValidateRules() error {
	for _, r := range re.Rules {
		if len(r.Conditions) == 0 {
			return fmt.Errorf("rule %q has no conditions", r.Name)
		}
		for _, c := range r.Conditions {
			if _, ok := re.featureIndex[c.Feature]; !ok {
				return fmt.Errorf("rule %q references unknown feature %q", r.Name, c.Feature)
			}
			if c.Op != CompareAtLeast && c.Op != CompareAtMost {
				return fmt.Errorf("rule %q has unknown comparator %q", r.Name, c.Op)
			}
		}
	}
	return nil
}

// matches reports whether every condition of the rule holds for the
// centroid. Conditions on dimensions the vector does not carry (the
// optional stability dimension) never match.
func (re *RuleEngine) matches(r *Rule, centroid FeatureVector) bool {
	for _, c := range r.Conditions {
		dim := re.featureIndex[c.Feature]
		if dim >= len(centroid) {
			return false
		}
		v := centroid[dim]
		switch c.Op {
		case CompareAtLeast:
			if v < c.Value {
				return false
			}
		case CompareAtMost:
			if v > c.Value {
				return false
			}
		}
	}
	return true
}

// LabelProfiles walks the decision table for every profile in the run,
// recording the label, default action, and matched rule name on the
// profile. Centroids matching no rule fall back to poor/investigate and
// produce an UnmatchedPatternWarning; the fallback is deliberately the
// worst label so policy gaps never fail open toward "good".
func (re *RuleEngine) LabelProfiles(run *ClusterRun) []UnmatchedPatternWarning {
	var warnings []UnmatchedPatternWarning
	for i := range run.Profiles {
		p := &run.Profiles[i]
		matched := false
		for r := range re.Rules {
			if re.matches(&re.Rules[r], p.Centroid) {
				p.Label = re.Rules[r].Label
				p.DefaultAction = re.Rules[r].Action
				p.MatchedRule = re.Rules[r].Name
				matched = true
				break
			}
		}
		if !matched {
			p.Label = LabelPoor
			p.DefaultAction = ActionInvestigate
			p.MatchedRule = ""
			w := UnmatchedPatternWarning{ClusterID: p.ClusterID, Centroid: p.Centroid}
			warnings = append(warnings, w)
			monitoring.Logf("rules: %s", w.String())
		}
	}
	return warnings
}

// Confidence shaping for verdicts: observations near their centroid take
// the cluster's label at higher confidence than borderline members.
const (
	verdictConfidenceMax     = 0.95
	verdictConfidenceMin     = 0.30
	outlierVerdictConfidence = 0.30
)

// Verdicts derives one ZoneVerdict per observation from its cluster's
// label plus zone-local overrides:
//
//   - A poor observation whose zone has a better-scoring AP becomes a
//     switch toward that AP; if its own AP is already the zone's best the
//     action downgrades to investigate (nowhere better to go).
//   - A good observation on an AP that a sibling AP outscores decisively
//     is downgraded to marginal: the cluster said the link is fine, but
//     the zone-local ranking disagrees.
//   - Outliers bypass the table entirely: poor/investigate at low
//     confidence, so transient anomalies never drive a switch.
//
// Ties between candidate switch targets prefer the main AP.
func (re *RuleEngine) Verdicts(run *ClusterRun, obs []Observation) []ZoneVerdict {
	apScores := zoneAPScores(obs)

	verdicts := make([]ZoneVerdict, 0, len(obs))
	for i := range obs {
		o := &obs[i]
		a := run.Assignments[i]
		v := ZoneVerdict{
			ZoneID:        o.ZoneID,
			APID:          o.APID,
			ObservationID: o.ObservationID,
			Timestamp:     o.Timestamp,
			ClusterID:     a.ClusterID,
		}

		p := run.ProfileFor(a)
		if p == nil { // reserved outlier cluster
			v.Quality = LabelPoor
			v.Action = ActionInvestigate
			v.Confidence = outlierVerdictConfidence
			verdicts = append(verdicts, v)
			continue
		}

		v.Quality = p.Label
		v.Action = p.DefaultAction
		v.Confidence = distanceConfidence(a.DistanceToCentroid, re.outlierSpan())

		bestAP, bestScore := bestZoneAP(apScores[o.ZoneID], re.MainAPID)
		ownScore := apScores[o.ZoneID][o.APID]

		switch v.Quality {
		case LabelPoor:
			if v.Action == ActionSwitchToMain || v.Action == ActionSwitchToExtender {
				if bestAP == "" || bestAP == o.APID {
					v.Action = ActionInvestigate
				} else {
					v.Action = switchActionFor(bestAP, re.MainAPID)
					v.PreferredAP = bestAP
				}
			}
		case LabelGood:
			// Zone-local downgrade: the cluster mate comparison flipped.
			if bestAP != "" && bestAP != o.APID && bestScore-ownScore > zoneFlipMargin {
				v.Quality = LabelMarginal
				v.Action = ActionInvestigate
				v.Confidence = clampConfidence(v.Confidence-0.15, verdictConfidenceMin, verdictConfidenceMax)
			}
		}

		if v.Action == ActionKeep {
			v.PreferredAP = o.APID
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}

// zoneFlipMargin is the composite score gap beyond which a sibling AP is
// considered decisively better than the observation's own AP.
const zoneFlipMargin = 0.20

// zoneAPScores computes the mean composite feature score per (zone, AP).
// The composite is the mean of the shared feature dimensions, which reads
// higher = better by construction.
func zoneAPScores(obs []Observation) map[string]map[string]float64 {
	sums := make(map[string]map[string]float64)
	counts := make(map[string]map[string]int)
	for i := range obs {
		o := &obs[i]
		if sums[o.ZoneID] == nil {
			sums[o.ZoneID] = make(map[string]float64)
			counts[o.ZoneID] = make(map[string]int)
		}
		var total float64
		for dim := 0; dim < NumFeatures; dim++ {
			total += o.Vector[dim]
		}
		sums[o.ZoneID][o.APID] += total / NumFeatures
		counts[o.ZoneID][o.APID]++
	}
	for zone, aps := range sums {
		for ap := range aps {
			sums[zone][ap] /= float64(counts[zone][ap])
		}
	}
	return sums
}

// bestZoneAP returns the highest scoring AP in a zone. Ties prefer the
// main AP, then lexicographic order, so results are deterministic.
func bestZoneAP(scores map[string]float64, mainAPID string) (string, float64) {
	if len(scores) == 0 {
		return "", 0
	}
	aps := make([]string, 0, len(scores))
	for ap := range scores {
		aps = append(aps, ap)
	}
	sort.Strings(aps)

	best, bestScore := "", -1.0
	for _, ap := range aps {
		s := scores[ap]
		if s > bestScore || (s == bestScore && ap == mainAPID) {
			best, bestScore = ap, s
		}
	}
	return best, bestScore
}

func switchActionFor(targetAP, mainAPID string) Action {
	if targetAP == mainAPID {
		return ActionSwitchToMain
	}
	return ActionSwitchToExtender
}

// outlierSpan is the distance at which verdict confidence bottoms out.
func (re *RuleEngine) outlierSpan() float64 {
	return DefaultOutlierDistanceThreshold
}

// distanceConfidence maps distance-to-centroid onto verdict confidence:
// centroid members score near the maximum, members at the outlier
// boundary score the minimum.
func distanceConfidence(dist, span float64) float64 {
	if span <= 0 {
		return verdictConfidenceMax
	}
	c := verdictConfidenceMax - (dist/span)*(verdictConfidenceMax-verdictConfidenceMin)
	return clampConfidence(c, verdictConfidenceMin, verdictConfidenceMax)
}

// clampConfidence clamps a confidence value to the range [lo, hi].
func clampConfidence(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
