package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packedField(lap int) FieldState {
	// Ten cars nose to tail, spread over the three sectors.
	sectors := []string{"S1", "S1", "S1", "S2", "S2", "S2", "S3", "S3", "S3", "S3"}
	cars := make([]CarPosition, 10)
	for i := range cars {
		gap := 1.0
		if i == 0 {
			gap = 0
		}
		cars[i] = CarPosition{
			DriverID:    driverID(i),
			Position:    i + 1,
			Sector:      sectors[i],
			GapAheadSec: gap,
		}
	}
	return FieldState{Lap: lap, TotalLaps: 50, Cars: cars}
}

func driverID(i int) string {
	return string(rune('a' + i))
}

func TestEstimate_EmptyField(t *testing.T) {
	m := NewTrafficModel(DefaultConfig())
	_, err := m.Estimate(FieldState{Lap: 5}, "a")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEstimate_UnknownDriver(t *testing.T) {
	m := NewTrafficModel(DefaultConfig())
	_, err := m.Estimate(packedField(5), "nobody")
	assert.ErrorIs(t, err, ErrMissingDriverState)
}

func TestEstimate_PackedField(t *testing.T) {
	cfg := DefaultConfig()
	m := NewTrafficModel(cfg)
	snap, err := m.Estimate(packedField(10), "d") // position 4
	require.NoError(t, err)

	assert.Equal(t, 10, snap.Lap)
	assert.InDelta(t, 0.3, snap.SectorDensity["S1"], 1e-9)
	assert.InDelta(t, 0.3, snap.SectorDensity["S2"], 1e-9)
	assert.InDelta(t, 0.4, snap.SectorDensity["S3"], 1e-9)
	assert.False(t, snap.ClearWindow)

	// Three cars ahead plus the per-sector congestion terms.
	want := cfg.Traffic.BasePenaltySec + 3*cfg.Traffic.PerCarPenaltySec +
		0.3*cfg.Traffic.SectorMultipliers["S1"] +
		0.3*cfg.Traffic.SectorMultipliers["S2"] +
		0.4*cfg.Traffic.SectorMultipliers["S3"]
	assert.InDelta(t, want, snap.TimeLostPerLap, 1e-9)
}

func TestEstimate_SpreadFieldIsClear(t *testing.T) {
	m := NewTrafficModel(DefaultConfig())
	field := packedField(10)
	for i := range field.Cars {
		if field.Cars[i].Position > 1 {
			field.Cars[i].GapAheadSec = 30
		}
	}
	snap, err := m.Estimate(field, "a")
	require.NoError(t, err)

	assert.True(t, snap.ClearWindow)
	// Only the leader registers in the density map, so the loss is tiny.
	assert.InDelta(t, 0.1*0.3, snap.TimeLostPerLap, 1e-9)
}

func TestEstimate_LeaderStillPaysSectorCongestion(t *testing.T) {
	m := NewTrafficModel(DefaultConfig())
	snap, err := m.Estimate(packedField(10), "a")
	require.NoError(t, err)

	// No cars ahead, but the field is packed around the lap.
	assert.Greater(t, snap.TimeLostPerLap, 0.0)
	assert.False(t, snap.ClearWindow)
}

func TestProjectClearLap(t *testing.T) {
	m := NewTrafficModel(DefaultConfig())

	// Density 0.35 decays 3% per lap: below 0.30 from offset 5 on, and the
	// two-lap window completes at offset 6, opening at lap 15.
	clear := m.projectClearLap(0.35, 10, 50)
	require.NotNil(t, clear)
	assert.Equal(t, 15, *clear)

	// Already clear density opens the window immediately.
	clear = m.projectClearLap(0.1, 10, 50)
	require.NotNil(t, clear)
	assert.Equal(t, 11, *clear)

	// Too dense to clear within the projection horizon.
	assert.Nil(t, m.projectClearLap(0.9, 10, 50))

	// The race ending caps the horizon.
	assert.Nil(t, m.projectClearLap(0.35, 49, 50))
}
