package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_PutGet(t *testing.T) {
	c := NewResultCache(5 * time.Second)
	run := &SimulationRun{RunID: "r1"}

	assert.Nil(t, c.Get("k"))
	c.Put("k", run)
	assert.Same(t, run, c.Get("k"))
}

func TestResultCache_ExpiryEvictsLazily(t *testing.T) {
	c := NewResultCache(5 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("k", &SimulationRun{RunID: "r1"})
	require.Equal(t, 1, c.Len())

	now = now.Add(6 * time.Second)
	assert.Nil(t, c.Get("k"))
	assert.Equal(t, 0, c.Len(), "expired entry should be dropped on access")
}

func TestResultCache_ReplaceRefreshesAge(t *testing.T) {
	c := NewResultCache(5 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("k", &SimulationRun{RunID: "old"})
	now = now.Add(4 * time.Second)
	fresh := &SimulationRun{RunID: "new"}
	c.Put("k", fresh)

	now = now.Add(3 * time.Second)
	assert.Same(t, fresh, c.Get("k"))
}

func cacheTestInput() *SimulationInput {
	seed := int64(42)
	return &SimulationInput{
		RaceID:     "monaco-2026",
		TotalLaps:  60,
		CurrentLap: 20,
		Trials:     100,
		Seed:       &seed,
		Drivers: []DriverRaceState{
			{DriverID: "d1", Position: 1, TireAge: 12, Compound: CompoundMedium, BasePace: 92.1},
			{DriverID: "d2", Position: 2, TireAge: 8, Compound: CompoundHard, BasePace: 92.4},
		},
	}
}

func TestInputKey_StableAndSensitive(t *testing.T) {
	a := cacheTestInput()
	b := cacheTestInput()
	assert.Equal(t, InputKey(a), InputKey(b))

	b.Trials = 200
	assert.NotEqual(t, InputKey(a), InputKey(b))

	c := cacheTestInput()
	c.Drivers[1].TireAge = 9
	assert.NotEqual(t, InputKey(a), InputKey(c))

	d := cacheTestInput()
	d.Seed = nil
	assert.NotEqual(t, InputKey(a), InputKey(d))
}

func TestInputKey_FieldStateChangesKey(t *testing.T) {
	field := func(gap float64) *FieldState {
		return &FieldState{
			Lap:       20,
			TotalLaps: 60,
			Cars: []CarPosition{
				{DriverID: "d1", Position: 1, Sector: "S1"},
				{DriverID: "d2", Position: 2, Sector: "S1", GapAheadSec: gap},
			},
		}
	}

	clear := cacheTestInput()
	packed := cacheTestInput()
	packed.Field = field(0.4)
	assert.NotEqual(t, InputKey(clear), InputKey(packed))

	spread := cacheTestInput()
	spread.Field = field(6.0)
	assert.NotEqual(t, InputKey(packed), InputKey(spread))
}

func TestInputKey_DegradationProfileChangesKey(t *testing.T) {
	withTwin := func() *SimulationInput {
		in := cacheTestInput()
		in.Drivers[0].Twin = NeutralTwin(DefaultConfig(), "d1", CompoundMedium)
		return in
	}

	a := withTwin()
	b := withTwin()
	assert.Equal(t, InputKey(a), InputKey(b))

	b.Drivers[0].Twin.Degradation.Rate *= 2
	assert.NotEqual(t, InputKey(a), InputKey(b))

	c := withTwin()
	cliff := 15
	c.Drivers[0].Twin.Degradation.CliffLap = &cliff
	assert.NotEqual(t, InputKey(a), InputKey(c))
}

func TestInputKey_ForcedPitOrderIndependent(t *testing.T) {
	a := cacheTestInput()
	a.ForcedPitLaps = map[string]int{"d1": 25, "d2": 30}
	b := cacheTestInput()
	b.ForcedPitLaps = map[string]int{"d2": 30, "d1": 25}
	assert.Equal(t, InputKey(a), InputKey(b))
}
