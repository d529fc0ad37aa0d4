// Package units provides shared constants and conversions for RF link
// metrics: signal power (dBm/mW), signal-to-noise ratio, and capacity
// estimates. Telemetry stores signal strength in dBm and throughput in
// Mbps; everything here converts from those canonical units.
package units

import "math"

// Canonical metric unit names, as carried on the telemetry schema.
const (
	Dbm      = "dbm"
	Fraction = "fraction"
	Ms       = "ms"
	Mbps     = "mbps"
	Bytes    = "bytes"
)

// ValidUnits contains all valid metric unit values.
var ValidUnits = []string{Dbm, Fraction, Ms, Mbps, Bytes}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// DefaultNoiseFloorDbm is the thermal noise floor assumed for SNR and
// capacity estimates when the deployment does not measure its own.
const DefaultNoiseFloorDbm = -100.0

// DbmToMilliwatts converts a power level from dBm to milliwatts.
func DbmToMilliwatts(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

// MilliwattsToDbm converts a power level from milliwatts to dBm.
// Non-positive power has no dBm representation and returns -Inf.
func MilliwattsToDbm(mw float64) float64 {
	if mw <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(mw)
}

// SNRLinear returns the linear signal-to-noise ratio for a received
// signal strength and noise floor, both in dBm.
func SNRLinear(rssiDbm, noiseDbm float64) float64 {
	return DbmToMilliwatts(rssiDbm) / DbmToMilliwatts(noiseDbm)
}

// ShannonRateMbps estimates the Shannon capacity in Mbps for a link with
// the given received signal strength, noise floor, and channel bandwidth.
// rate = B * log2(1 + SNR), with bandwidth in MHz giving Mbps directly.
func ShannonRateMbps(rssiDbm, noiseDbm, bandwidthMHz float64) float64 {
	return bandwidthMHz * math.Log2(1+SNRLinear(rssiDbm, noiseDbm))
}
