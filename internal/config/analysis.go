// Package config loads and validates analysis tuning configuration.
// Fields omitted from the JSON file keep their defaults, so partial
// configs are safe; the Get* accessors provide the fallback values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/meshwise/internal/mesh"
)

// AnalysisConfig is the per-deployment tuning for a pipeline run. All
// fields are optional pointers; the same JSON document can seed a full
// deployment config or override a single knob.
type AnalysisConfig struct {
	// Normalization and feature building
	NormalizationMethod *string `json:"normalization_method,omitempty"` // "minmax" or "zscore"
	AggregationMode     *string `json:"aggregation_mode,omitempty"`     // "per_sample", "windowed_mean", "windowed_mean_plus_variance"
	Window              *string `json:"window,omitempty"`               // duration string like "5m"

	// Clustering
	KMin                     *int     `json:"k_min,omitempty"`
	KMax                     *int     `json:"k_max,omitempty"`
	Seed                     *int64   `json:"seed,omitempty"`
	OutlierDistanceThreshold *float64 `json:"outlier_distance_threshold,omitempty"`

	// Decision layer
	Rules    []mesh.Rule `json:"rule_thresholds,omitempty"`
	MainAPID *string     `json:"main_ap_id,omitempty"`

	// Aggregation
	HysteresisFraction *float64 `json:"hysteresis_fraction,omitempty"`
	MinWindowSamples   *int     `json:"min_window_samples,omitempty"`

	// Batch control
	RunTimeBudget *string `json:"run_time_budget,omitempty"` // duration string like "30s"
}

// Empty returns an AnalysisConfig with all fields unset.
func Empty() *AnalysisConfig {
	return &AnalysisConfig{}
}

// maxConfigFileSize bounds config reads for safety.
const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// Load reads an AnalysisConfig from a JSON file. The path must carry a
// .json extension and stay under the max file size.
func Load(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every field that is set. Unset fields are always valid
// because the Get* accessors substitute known-good defaults.
func (c *AnalysisConfig) Validate() error {
	if c.NormalizationMethod != nil {
		if !mesh.NormalizationMethod(*c.NormalizationMethod).IsValid() {
			return fmt.Errorf("unknown normalization_method %q", *c.NormalizationMethod)
		}
	}
	if c.AggregationMode != nil {
		if !mesh.AggregationMode(*c.AggregationMode).IsValid() {
			return fmt.Errorf("unknown aggregation_mode %q", *c.AggregationMode)
		}
	}
	if c.Window != nil && *c.Window != "" {
		if _, err := time.ParseDuration(*c.Window); err != nil {
			return fmt.Errorf("invalid window %q: %w", *c.Window, err)
		}
	}
	if c.KMin != nil && *c.KMin < 2 {
		return fmt.Errorf("k_min must be at least 2, got %d", *c.KMin)
	}
	if c.KMax != nil && c.KMin != nil && *c.KMax < *c.KMin {
		return fmt.Errorf("k_max %d below k_min %d", *c.KMax, *c.KMin)
	}
	if c.OutlierDistanceThreshold != nil && *c.OutlierDistanceThreshold <= 0 {
		return fmt.Errorf("outlier_distance_threshold must be positive, got %g", *c.OutlierDistanceThreshold)
	}
	if c.HysteresisFraction != nil {
		if *c.HysteresisFraction <= 0 || *c.HysteresisFraction > 1 {
			return fmt.Errorf("hysteresis_fraction must be in (0,1], got %g", *c.HysteresisFraction)
		}
	}
	if c.MinWindowSamples != nil && *c.MinWindowSamples < 1 {
		return fmt.Errorf("min_window_samples must be positive, got %d", *c.MinWindowSamples)
	}
	if c.RunTimeBudget != nil && *c.RunTimeBudget != "" {
		if _, err := time.ParseDuration(*c.RunTimeBudget); err != nil {
			return fmt.Errorf("invalid run_time_budget %q: %w", *c.RunTimeBudget, err)
		}
	}
	return nil
}

// GetWindow parses and returns the aggregation window.
func (c *AnalysisConfig) GetWindow() time.Duration {
	if c.Window == nil || *c.Window == "" {
		return mesh.DefaultAggregationWindow
	}
	d, err := time.ParseDuration(*c.Window)
	if err != nil {
		return mesh.DefaultAggregationWindow
	}
	return d
}

// DefaultRunTimeBudget bounds a batch run when none is configured.
const DefaultRunTimeBudget = 30 * time.Second

// GetRunTimeBudget parses and returns the run time budget.
func (c *AnalysisConfig) GetRunTimeBudget() time.Duration {
	if c.RunTimeBudget == nil || *c.RunTimeBudget == "" {
		return DefaultRunTimeBudget
	}
	d, err := time.ParseDuration(*c.RunTimeBudget)
	if err != nil {
		return DefaultRunTimeBudget
	}
	return d
}

// ToParams materialises the configuration as pipeline parameters,
// substituting package defaults for unset fields.
func (c *AnalysisConfig) ToParams() mesh.Params {
	params := mesh.DefaultParams()
	if c.NormalizationMethod != nil {
		params.NormalizationMethod = mesh.NormalizationMethod(*c.NormalizationMethod)
	}
	if c.AggregationMode != nil {
		params.AggregationMode = mesh.AggregationMode(*c.AggregationMode)
	}
	params.Window = c.GetWindow()
	if c.KMin != nil {
		params.KMin = *c.KMin
	}
	if c.KMax != nil {
		params.KMax = *c.KMax
	}
	if c.Seed != nil {
		params.Seed = *c.Seed
	}
	if c.OutlierDistanceThreshold != nil {
		params.OutlierDistanceThreshold = *c.OutlierDistanceThreshold
	}
	if c.Rules != nil {
		params.Rules = c.Rules
	}
	if c.MainAPID != nil {
		params.MainAPID = *c.MainAPID
	}
	if c.HysteresisFraction != nil {
		params.HysteresisFraction = *c.HysteresisFraction
	}
	if c.MinWindowSamples != nil {
		params.MinWindowSamples = *c.MinWindowSamples
	}
	return params
}
