package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sim "github.com/gridrival/racesim/sim"
)

const raceSnapshotYAML = `race_id: monza-2026
total_laps: 40
current_lap: 20
trials: 100
seed: 42
weather:
  track_temp_c: 38.5
  ambient_temp_c: 27.0
  humidity: 55
  rainfall: 0
drivers:
  - driver_id: d1
    position: 1
    tire_age: 12
    compound: MEDIUM
    base_pace: 92.0
    laps:
      - {driver_id: d1, lap: 9, seconds: 92.0}
      - {driver_id: d1, lap: 10, seconds: 92.2}
      - {driver_id: d1, lap: 11, seconds: 92.4}
      - {driver_id: d1, lap: 12, seconds: 92.6}
      - {driver_id: d1, lap: 13, seconds: 92.8}
      - {driver_id: d1, lap: 14, seconds: 93.0}
  - driver_id: d2
    position: 2
    tire_age: 6
    compound: HARD
    base_pace: 92.3
`

func TestLoadRaceInput_BuildsTwinsFromLaps(t *testing.T) {
	path := writeTempYAML(t, raceSnapshotYAML)
	input, err := LoadRaceInput(path, sim.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "monza-2026", input.RaceID)
	assert.Equal(t, 40, input.TotalLaps)
	assert.Equal(t, 20, input.CurrentLap)
	require.NotNil(t, input.Seed)
	assert.Equal(t, int64(42), *input.Seed)
	require.NotNil(t, input.Weather)
	assert.InDelta(t, 38.5, input.Weather.TrackTempC, 1e-9)

	require.Len(t, input.Drivers, 2)
	d1 := input.Drivers[0]
	require.NotNil(t, d1.Twin, "six laps should be enough for a twin")
	assert.Equal(t, "d1", d1.Twin.DriverID)
	assert.Equal(t, 6, d1.Twin.LapCount)
	assert.Greater(t, d1.Twin.Degradation.Rate, 0.0)

	assert.Nil(t, input.Drivers[1].Twin, "no laps, no twin")
}

func TestLoadRaceInput_UnknownKeyIsAnError(t *testing.T) {
	path := writeTempYAML(t, "race_id: x\ntotal_lapz: 40\n")
	_, err := LoadRaceInput(path, sim.DefaultConfig())
	assert.Error(t, err)
}

func TestLoadRaceInput_MalformedLapFails(t *testing.T) {
	snapshot := `race_id: x
total_laps: 40
current_lap: 20
drivers:
  - driver_id: d1
    position: 1
    tire_age: 2
    compound: SOFT
    laps:
      - {driver_id: d1, lap: 1, seconds: -5}
`
	path := writeTempYAML(t, snapshot)
	_, err := LoadRaceInput(path, sim.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "d1")
}
