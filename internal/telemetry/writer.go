package telemetry

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/meshwise/internal/mesh"
)

// WriteReport writes the full run report as indented JSON. The report's
// field and enum values are the output contract; no wire format beyond
// JSON is mandated.
func WriteReport(w io.Writer, report *mesh.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	return nil
}

// WriteRecommendations writes only the per-zone recommendations, for
// consumers that do not want the run diagnostics.
func WriteRecommendations(w io.Writer, recs []mesh.ZoneRecommendation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	return nil
}
