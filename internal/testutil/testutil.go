// Package testutil provides shared telemetry fixtures for tests.
//
// This package centralises common sample builders to reduce duplication
// across test files: most analytics tests need the same two link
// archetypes, a strong main-AP link and a weak extender link.
package testutil

import (
	"fmt"
	"time"

	"github.com/banshee-data/meshwise/internal/mesh"
)

// FixtureStart is the base timestamp for generated fixture windows.
var FixtureStart = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

// GoodSample returns a healthy main-AP-grade sample for the given zone
// and AP at offset i in the window.
func GoodSample(zoneID, apID string, i int) mesh.MetricSample {
	return mesh.MetricSample{
		SampleID:           fmt.Sprintf("%s-%s-good-%03d", zoneID, apID, i),
		ZoneID:             zoneID,
		APID:               apID,
		Timestamp:          FixtureStart.Add(time.Duration(i) * 10 * time.Second),
		RSSIDbm:            -45,
		PacketErrorRate:    0.01,
		LatencyMs:          8,
		ThroughputMbps:     90,
		ChannelUtilization: 0.2,
		BytesTransferred:   5_000_000,
	}
}

// WeakSample returns a degraded extender-grade sample for the given zone
// and AP at offset i in the window.
func WeakSample(zoneID, apID string, i int) mesh.MetricSample {
	return mesh.MetricSample{
		SampleID:           fmt.Sprintf("%s-%s-weak-%03d", zoneID, apID, i),
		ZoneID:             zoneID,
		APID:               apID,
		Timestamp:          FixtureStart.Add(time.Duration(i) * 10 * time.Second),
		RSSIDbm:            -75,
		PacketErrorRate:    0.12,
		LatencyMs:          60,
		ThroughputMbps:     15,
		ChannelUtilization: 0.7,
		BytesTransferred:   400_000,
	}
}

// LinkWindow returns n samples of the given builder for one (zone, AP)
// link, spaced 10 seconds apart.
func LinkWindow(zoneID, apID string, n int, build func(string, string, int) mesh.MetricSample) []mesh.MetricSample {
	samples := make([]mesh.MetricSample, n)
	for i := 0; i < n; i++ {
		samples[i] = build(zoneID, apID, i)
	}
	return samples
}
