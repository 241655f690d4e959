package sim

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Risk weights for the additive strategy risk score.
const (
	riskCliffBeforeStop = 0.4
	riskHeavyTraffic    = 0.2
	riskPartialRun      = 0.2
	riskMissingTwins    = 0.1
	riskLowConfidence   = 0.1
)

// StrategyOptimizer scans candidate pit laps for the lead driver of the input
// by re-simulating the race with the stop pinned to each lap, and compares
// against letting the stint run its natural course.
type StrategyOptimizer struct {
	cfg Config
	sim *RaceSimulator
}

// NewStrategyOptimizer creates an optimizer driving the given simulator.
func NewStrategyOptimizer(cfg Config, sim *RaceSimulator) *StrategyOptimizer {
	return &StrategyOptimizer{cfg: cfg, sim: sim}
}

// Optimize evaluates the candidate pit laps for input.Drivers[0]. Candidates
// outside the remaining race are rejected; an empty candidate list scans the
// next eight laps. Each candidate replays with a seed derived from the input
// seed and the lap, so results are reproducible and candidates independent.
func (o *StrategyOptimizer) Optimize(ctx context.Context, input *SimulationInput, candidates []int) (*StrategyResult, error) {
	if input == nil || len(input.Drivers) == 0 {
		return nil, invalidInputf("no drivers")
	}
	focal := input.Drivers[0]
	if len(candidates) == 0 {
		for lap := input.CurrentLap + 1; lap <= input.TotalLaps && len(candidates) < 8; lap++ {
			candidates = append(candidates, lap)
		}
	}
	for _, lap := range candidates {
		if lap <= input.CurrentLap || lap > input.TotalLaps {
			return nil, invalidInputf("candidate lap %d outside remaining race", lap)
		}
	}
	sort.Ints(candidates)

	seed := o.sim.newSeed()
	if input.Seed != nil {
		seed = *input.Seed
	}
	key := SimulationKey(seed)

	baseline, err := o.simulateVariant(ctx, input, key, "strategy_baseline", nil)
	if err != nil {
		return nil, err
	}
	baselineTime := baseline.TimeStats[focal.DriverID].Mean

	bestLap := 0
	bestTime := baselineTime
	for _, lap := range candidates {
		forced := map[string]int{focal.DriverID: lap}
		run, err := o.simulateVariant(ctx, input, key, fmt.Sprintf("%s_%d", SubsystemStrategy, lap), forced)
		if err != nil {
			return nil, err
		}
		t := run.TimeStats[focal.DriverID].Mean
		logrus.WithFields(logrus.Fields{
			"driver_id": focal.DriverID,
			"pit_lap":   lap,
			"mean_time": t,
		}).Debug("evaluated candidate pit lap")
		if t < bestTime {
			bestTime = t
			bestLap = lap
		}
	}
	if bestLap == 0 {
		bestLap = candidates[len(candidates)-1]
		bestTime = baselineTime
	}

	result := &StrategyResult{
		DriverID:     focal.DriverID,
		BaselineTime: baselineTime,
		BestTime:     bestTime,
		OptimalWindow: PitWindow{
			Start:      maxInt(input.CurrentLap+1, bestLap-2),
			End:        minInt(input.TotalLaps, bestLap+2),
			MostCommon: bestLap,
		},
		Undercut: StrategyLever{
			Viable:  baseline.UndercutGain > o.cfg.Scorer.UndercutMinGainSec,
			GainSec: baseline.UndercutGain,
			Lap:     candidates[0],
		},
		Overcut: StrategyLever{
			Viable:  baseline.OvercutGain > 0,
			GainSec: baseline.OvercutGain,
			Lap:     candidates[len(candidates)-1],
		},
	}
	result.Risk = o.assessRisk(baseline, bestLap)
	return result, nil
}

func (o *StrategyOptimizer) simulateVariant(ctx context.Context, input *SimulationInput, key SimulationKey, stream string, forced map[string]int) (*SimulationRun, error) {
	variant := *input
	variantSeed := DeriveSeed(key, stream)
	variant.Seed = &variantSeed
	if forced != nil {
		merged := make(map[string]int, len(input.ForcedPitLaps)+len(forced))
		for id, lap := range input.ForcedPitLaps {
			merged[id] = lap
		}
		for id, lap := range forced {
			merged[id] = lap
		}
		variant.ForcedPitLaps = merged
	}
	return o.sim.Simulate(ctx, &variant)
}

// assessRisk scores the recommendation's fragility. Risks add up; the level
// buckets the total.
func (o *StrategyOptimizer) assessRisk(baseline *SimulationRun, bestLap int) RiskAssessment {
	var score float64
	var risks []string
	if baseline.TireCliffLap != nil && *baseline.TireCliffLap < bestLap {
		score += riskCliffBeforeStop
		risks = append(risks, fmt.Sprintf("tire cliff projected at lap %d, before the recommended stop", *baseline.TireCliffLap))
	}
	if baseline.Traffic.Busy {
		score += riskHeavyTraffic
		risks = append(risks, "heavy traffic around the pit window")
	}
	if baseline.Partial {
		score += riskPartialRun
		risks = append(risks, "simulation was cut short by its deadline")
	}
	if len(baseline.MissingTwins) > 0 {
		score += riskMissingTwins
		risks = append(risks, fmt.Sprintf("%d drivers simulated with neutral profiles", len(baseline.MissingTwins)))
	}
	if baseline.Confidence < 0.5 {
		score += riskLowConfidence
		risks = append(risks, "low simulation confidence")
	}

	level := "low"
	switch {
	case score >= 0.6:
		level = "high"
	case score >= 0.3:
		level = "medium"
	}
	return RiskAssessment{Score: score, Level: level, Risks: risks}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
