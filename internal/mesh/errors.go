package mesh

import "fmt"

// InvalidMetricError reports a sample field outside its physically
// plausible range, or a missing required field. Invalid samples are
// rejected individually; the run continues with the remaining samples.
type InvalidMetricError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidMetricError) Error() string {
	if e.Reason == "missing" {
		return fmt.Sprintf("invalid metric: %s is missing", e.Field)
	}
	return fmt.Sprintf("invalid metric: %s = %g %s", e.Field, e.Value, e.Reason)
}

// InsufficientDataError reports too few observations for a stable
// clustering run or window aggregate.
type InsufficientDataError struct {
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d observations, need at least %d", e.Got, e.Need)
}

// DegenerateClusterError reports that clustering converged with an empty
// cluster and could not recover by reducing k.
type DegenerateClusterError struct {
	K int
}

func (e *DegenerateClusterError) Error() string {
	return fmt.Sprintf("degenerate clustering: empty cluster at k=%d with no retry left", e.K)
}

// InconclusiveError reports that a zone's evidence window could not
// support a recommendation: too few samples, or verdicts split with no
// quorum. Non-fatal; the affected zone is skipped, the run continues.
type InconclusiveError struct {
	ZoneID  string
	Samples int
	Reason  string
}

func (e *InconclusiveError) Error() string {
	return fmt.Sprintf("zone %s inconclusive: %s (%d samples)", e.ZoneID, e.Reason, e.Samples)
}

// UnmatchedPatternWarning records a cluster centroid that matched no rule
// in the decision table. The cluster defaults conservatively to
// poor/investigate; the warning is surfaced so operators can extend the
// rule set. Not an error: recommendations never fail open toward an
// optimistic label, but the run does not stop either.
type UnmatchedPatternWarning struct {
	ClusterID int           `json:"cluster_id"`
	Centroid  FeatureVector `json:"centroid"`
}

func (w UnmatchedPatternWarning) String() string {
	return fmt.Sprintf("no rule matched cluster %d centroid %v; defaulting to poor/investigate",
		w.ClusterID, []float64(w.Centroid))
}
