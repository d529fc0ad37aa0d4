package telemetry

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/meshwise/internal/mesh"
	"github.com/banshee-data/meshwise/internal/units"
)

// LinkProfile parameterises one synthetic (zone, AP) link. Gaussian noise
// is applied around each center so repeated samples cluster naturally.
type LinkProfile struct {
	RSSIDbm            float64
	RSSIJitterDb       float64
	PacketErrorRate    float64
	LatencyMs          float64
	LatencyJitterMs    float64
	ChannelUtilization float64
	BandwidthMHz       float64
}

// Canned link profiles. Throughput is derived from the profile's RSSI via
// the Shannon estimate, so signal and throughput degrade together the way
// they do on real links.
var (
	// GoodLink approximates a client near the main AP.
	GoodLink = LinkProfile{
		RSSIDbm:            -45,
		RSSIJitterDb:       3,
		PacketErrorRate:    0.01,
		LatencyMs:          8,
		LatencyJitterMs:    2,
		ChannelUtilization: 0.2,
		BandwidthMHz:       20,
	}
	// WeakLink approximates a client on a distant or overloaded extender.
	WeakLink = LinkProfile{
		RSSIDbm:            -75,
		RSSIJitterDb:       4,
		PacketErrorRate:    0.12,
		LatencyMs:          60,
		LatencyJitterMs:    12,
		ChannelUtilization: 0.7,
		BandwidthMHz:       20,
	}
)

// Generator produces seeded synthetic zone telemetry: each zone gets the
// main AP plus one extender, alternating which of the two carries the
// good link so clustering has both tiers to find.
type Generator struct {
	Seed         int64
	Zones        int
	SamplesPerAP int
	Interval     time.Duration
	Start        time.Time
	MainAPID     string
}

// NewGenerator creates a generator with sensible demo defaults.
func NewGenerator(seed int64, zones, samplesPerAP int) *Generator {
	if zones < 1 {
		zones = 1
	}
	if samplesPerAP < 1 {
		samplesPerAP = 30
	}
	return &Generator{
		Seed:         seed,
		Zones:        zones,
		SamplesPerAP: samplesPerAP,
		Interval:     10 * time.Second,
		Start:        time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		MainAPID:     mesh.DefaultMainAPID,
	}
}

// Generate returns the full synthetic batch, deterministic for a given
// seed and shape.
func (g *Generator) Generate() []mesh.MetricSample {
	rng := rand.New(rand.NewSource(g.Seed))
	var samples []mesh.MetricSample
	for z := 0; z < g.Zones; z++ {
		zoneID := fmt.Sprintf("zone-%02d", z+1)
		extenderID := fmt.Sprintf("ext-%02d", z+1)

		mainProfile, extProfile := GoodLink, WeakLink
		if z%2 == 1 {
			// Odd zones sit closer to the extender.
			mainProfile, extProfile = WeakLink, GoodLink
		}
		samples = append(samples, g.generateLink(rng, zoneID, g.MainAPID, mainProfile)...)
		samples = append(samples, g.generateLink(rng, zoneID, extenderID, extProfile)...)
	}
	return samples
}

func (g *Generator) generateLink(rng *rand.Rand, zoneID, apID string, p LinkProfile) []mesh.MetricSample {
	samples := make([]mesh.MetricSample, g.SamplesPerAP)
	for i := range samples {
		rssi := clampRange(p.RSSIDbm+rng.NormFloat64()*p.RSSIJitterDb, mesh.RSSIMinDbm, mesh.RSSIMaxDbm)
		per := clampRange(p.PacketErrorRate*(1+0.3*rng.NormFloat64()), 0, 1)
		latency := clampRange(p.LatencyMs+rng.NormFloat64()*p.LatencyJitterMs, 0.1, mesh.LatencyMaxMs)
		util := clampRange(p.ChannelUtilization+0.05*rng.NormFloat64(), 0, 1)

		// Capacity follows the drawn RSSI; realised throughput is capacity
		// discounted by loss and contention.
		capacity := units.ShannonRateMbps(rssi, units.DefaultNoiseFloorDbm, p.BandwidthMHz)
		throughput := clampRange(capacity*(1-per)*(1-util), 0.1, mesh.ThroughputMaxMbps)

		ts := g.Start.Add(time.Duration(i) * g.Interval)
		samples[i] = mesh.MetricSample{
			SampleID:           deterministicID(rng),
			ZoneID:             zoneID,
			APID:               apID,
			Timestamp:          ts,
			RSSIDbm:            rssi,
			PacketErrorRate:    per,
			LatencyMs:          latency,
			ThroughputMbps:     throughput,
			ChannelUtilization: util,
			BytesTransferred:   int64(throughput * 1e6 / 8 * g.Interval.Seconds()),
		}
	}
	return samples
}

// deterministicID draws a UUID from the generator's own rand stream so
// the whole batch, IDs included, reproduces for a given seed.
func deterministicID(rng *rand.Rand) string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], rng.Uint64())
	binary.BigEndian.PutUint64(b[8:], rng.Uint64())
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
