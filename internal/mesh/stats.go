package mesh

// RunStatistics holds aggregate statistics for one pipeline run, keyed
// for dashboards and rule-set maintenance.
type RunStatistics struct {
	ZoneCount           int                  `json:"zone_count"`
	RecommendationCount int                  `json:"recommendation_count"`
	InconclusiveCount   int                  `json:"inconclusive_count"`
	RejectedCount       int                  `json:"rejected_count"`
	OutlierRatio        float64              `json:"outlier_ratio"`
	LabelCounts         map[QualityLabel]int `json:"label_counts"`
	ActionCounts        map[Action]int       `json:"action_counts"`
	AvgConfidence       float64              `json:"avg_confidence"`
	AvgStability        float64              `json:"avg_stability"`
}

// Statistics computes aggregate statistics from the report. Label counts
// are weighted by cluster membership so they reflect observations, not
// cluster count.
func (r *RunReport) Statistics() *RunStatistics {
	stats := &RunStatistics{
		ZoneCount:           len(r.Recommendations) + len(r.Inconclusive),
		RecommendationCount: len(r.Recommendations),
		InconclusiveCount:   len(r.Inconclusive),
		RejectedCount:       len(r.Rejected),
		LabelCounts:         make(map[QualityLabel]int),
		ActionCounts:        make(map[Action]int),
	}
	if r.ObservationCount > 0 {
		stats.OutlierRatio = float64(r.OutlierCount) / float64(r.ObservationCount)
	}
	for i := range r.Profiles {
		stats.LabelCounts[r.Profiles[i].Label] += r.Profiles[i].MemberCount
	}
	var confSum, stabSum float64
	for i := range r.Recommendations {
		rec := &r.Recommendations[i]
		stats.ActionCounts[rec.FinalAction]++
		confSum += rec.Confidence
		stabSum += rec.StabilityScore
	}
	if n := len(r.Recommendations); n > 0 {
		stats.AvgConfidence = confSum / float64(n)
		stats.AvgStability = stabSum / float64(n)
	}
	return stats
}
