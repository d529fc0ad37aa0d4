package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	t.Parallel()

	for _, unit := range ValidUnits {
		assert.True(t, IsValid(unit), unit)
	}
	assert.False(t, IsValid("parsecs"))
	assert.False(t, IsValid(""))
}

func TestDbmConversions(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, DbmToMilliwatts(0), 1e-12)
	assert.InDelta(t, 100.0, DbmToMilliwatts(20), 1e-9)
	assert.InDelta(t, 1e-10, DbmToMilliwatts(DefaultNoiseFloorDbm), 1e-20)

	assert.InDelta(t, 0.0, MilliwattsToDbm(1), 1e-12)
	assert.True(t, math.IsInf(MilliwattsToDbm(0), -1))
	assert.True(t, math.IsInf(MilliwattsToDbm(-5), -1))

	// Round trip across the telemetry RSSI range.
	for dbm := -100.0; dbm <= 0; dbm += 12.5 {
		assert.InDelta(t, dbm, MilliwattsToDbm(DbmToMilliwatts(dbm)), 1e-9)
	}
}

func TestSNRLinear(t *testing.T) {
	t.Parallel()

	// 30 dB above the noise floor is a factor of 1000.
	assert.InDelta(t, 1000.0, SNRLinear(-70, -100), 1e-6)
	assert.InDelta(t, 1.0, SNRLinear(-100, -100), 1e-12)
}

func TestShannonRateMbps(t *testing.T) {
	t.Parallel()

	// SNR of 3 gives log2(4) = 2 bits/s/Hz.
	snr3Dbm := MilliwattsToDbm(3 * DbmToMilliwatts(DefaultNoiseFloorDbm))
	assert.InDelta(t, 40.0, ShannonRateMbps(snr3Dbm, DefaultNoiseFloorDbm, 20), 1e-6)

	// Capacity is monotonic in signal strength.
	prev := 0.0
	for _, rssi := range []float64{-90, -75, -60, -45, -30} {
		rate := ShannonRateMbps(rssi, DefaultNoiseFloorDbm, 20)
		assert.Greater(t, rate, prev, "rssi %f", rssi)
		prev = rate
	}
}
