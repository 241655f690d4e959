package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptimizer() *StrategyOptimizer {
	cfg := DefaultConfig()
	return NewStrategyOptimizer(cfg, NewRaceSimulator(cfg, nil))
}

func TestOptimize_Validation(t *testing.T) {
	o := newTestOptimizer()
	ctx := context.Background()

	_, err := o.Optimize(ctx, &SimulationInput{}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = o.Optimize(ctx, simTestInput(), []int{10}) // before the current lap
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = o.Optimize(ctx, simTestInput(), []int{99}) // past the flag
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOptimize_PicksFromCandidates(t *testing.T) {
	o := newTestOptimizer()
	candidates := []int{24, 27, 30}

	result, err := o.Optimize(context.Background(), simTestInput(), candidates)
	require.NoError(t, err)

	assert.Equal(t, "d1", result.DriverID)
	assert.Contains(t, candidates, result.OptimalWindow.MostCommon)
	assert.GreaterOrEqual(t, result.OptimalWindow.Start, 21)
	assert.LessOrEqual(t, result.OptimalWindow.End, 40)
	assert.Greater(t, result.BaselineTime, 0.0)
	assert.LessOrEqual(t, result.BestTime, result.BaselineTime)
	assert.Equal(t, 24, result.Undercut.Lap)
	assert.Equal(t, 30, result.Overcut.Lap)
	assert.Contains(t, []string{"low", "medium", "high"}, result.Risk.Level)
}

func TestOptimize_DefaultCandidateScan(t *testing.T) {
	o := newTestOptimizer()
	result, err := o.Optimize(context.Background(), simTestInput(), nil)
	require.NoError(t, err)

	// Nothing supplied: the next eight laps are scanned.
	assert.GreaterOrEqual(t, result.OptimalWindow.MostCommon, 21)
	assert.LessOrEqual(t, result.OptimalWindow.MostCommon, 28)
}

func TestOptimize_Deterministic(t *testing.T) {
	candidates := []int{24, 27, 30}
	a, err := newTestOptimizer().Optimize(context.Background(), simTestInput(), candidates)
	require.NoError(t, err)
	b, err := newTestOptimizer().Optimize(context.Background(), simTestInput(), candidates)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOptimize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestOptimizer().Optimize(ctx, simTestInput(), []int{25})
	assert.ErrorIs(t, err, ErrTimeout)
}
