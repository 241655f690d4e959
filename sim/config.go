package sim

import (
	"fmt"
	"math"
	"time"
)

// CompoundParams are the per-compound degradation tunables.
type CompoundParams struct {
	BaseRate       float64 `yaml:"base_rate"`       // fallback fractional pace loss per lap when no fit exists
	CriticalAge    int     `yaml:"critical_age"`    // tire age beyond which a stop is overdue
	CliffThreshold float64 `yaml:"cliff_threshold"` // marginal-rate multiple of the running average that marks the cliff
	OptimalTempC   float64 `yaml:"optimal_temp_c"`  // track temperature the compound likes best
}

// FactorWeights are the pit-decision factor weights. They must sum to 1.
type FactorWeights struct {
	Degradation float64 `yaml:"degradation"`
	Traffic     float64 `yaml:"traffic"`
	Simulation  float64 `yaml:"simulation"`
	Opponent    float64 `yaml:"opponent"`
	Weather     float64 `yaml:"weather"`
}

// DegradationConfig groups curve-fit parameters.
type DegradationConfig struct {
	MinLapsForFit      int     `yaml:"min_laps_for_fit"`      // below this, Fit returns the data-insufficient fallback
	MinLapsForExpFit   int     `yaml:"min_laps_for_exp_fit"`  // below this, only the linear model is tried
	MaxRate            float64 `yaml:"max_rate"`              // cap on fitted fractional rate per lap
	MinExponent        float64 `yaml:"min_exponent"`          // bounds on the age exponent k
	MaxExponent        float64 `yaml:"max_exponent"`
	ResidualThreshold  float64 `yaml:"residual_threshold"`    // normalized residual above which the exp fit is rejected
	FallbackConfidence float64 `yaml:"fallback_confidence"`   // confidence reported by the data-insufficient fallback
	TempCoefficient    float64 `yaml:"temp_coefficient"`      // extra rate per degree C away from the compound optimum
	CliffHorizonLaps   int     `yaml:"cliff_horizon_laps"`    // how far ahead to scan for the cliff
	CliffLossSec       float64 `yaml:"cliff_loss_sec"`        // cumulative pace loss that marks the cliff on linear curves
	CriticalCliffLaps  int     `yaml:"critical_cliff_laps"`   // cliff within this many laps of the stint age is critical
}

// TrafficConfig groups congestion-model parameters.
type TrafficConfig struct {
	GapThresholdSec   float64            `yaml:"gap_threshold_sec"`    // cars closer than this count toward density
	BasePenaltySec    float64            `yaml:"base_penalty_sec"`     // flat per-lap loss when any traffic exists
	PerCarPenaltySec  float64            `yaml:"per_car_penalty_sec"`  // loss per car ahead
	SectorMultipliers map[string]float64 `yaml:"sector_multipliers"`   // per-sector density weight (seconds at density 1.0)
	DefaultMultiplier float64            `yaml:"default_multiplier"`   // for sectors not listed above
	ClearDensity      float64            `yaml:"clear_density"`        // projected density below this is a clear window
	ClearWindowLaps   int                `yaml:"clear_window_laps"`    // consecutive clear laps required
	DecayPerLap       float64            `yaml:"decay_per_lap"`        // projected density decay per remaining lap
	ProjectionLaps    int                `yaml:"projection_laps"`      // how far ahead to project density
}

// OvertakeConfig groups overtake-probability parameters.
type OvertakeConfig struct {
	Baseline       float64 `yaml:"baseline"`         // probability floor for an attempt
	SpeedWeight    float64 `yaml:"speed_weight"`     // weight of the pace delta term
	TireAgeWeight  float64 `yaml:"tire_age_weight"`  // weight of the tire-age delta term
	TireAgeScale   float64 `yaml:"tire_age_scale"`   // laps of age delta that saturate the term
	WindowSec      float64 `yaml:"window_sec"`       // cumulative-time gap that puts two cars in combat
	PassBonusSec   float64 `yaml:"pass_bonus_sec"`   // time gained by a successful pass
	BlockedLossSec float64 `yaml:"blocked_loss_sec"` // time lost stuck behind after a failed attempt
}

// SimulatorConfig groups Monte Carlo replay parameters.
type SimulatorConfig struct {
	MinTrials          int     `yaml:"min_trials"`
	MaxTrials          int     `yaml:"max_trials"`
	DefaultTrials      int     `yaml:"default_trials"`
	PitLossSec         float64 `yaml:"pit_loss_sec"`          // stationary + pit-lane delta
	PitLossJitterSec   float64 `yaml:"pit_loss_jitter_sec"`   // uniform +/- noise on the pit loss
	LapNoiseScale      float64 `yaml:"lap_noise_scale"`       // stddev seconds at consistency 0
	BaseLapSec         float64 `yaml:"base_lap_sec"`          // reference lap for drivers without a measured pace
	MinLapSec          float64 `yaml:"min_lap_sec"`           // floor on any sampled lap time
	HarderCompoundProb float64 `yaml:"harder_compound_prob"`  // chance a simulated stop fits the next harder compound
	MinStintLapsLeft   int     `yaml:"min_stint_laps_left"`   // don't pit with fewer laps than this remaining
	PointsPositions    int     `yaml:"points_positions"`      // finishing positions that score points
	FreshTireGain      float64 `yaml:"fresh_tire_gain"`       // fractional pace advantage of fresh tires
}

// TwinConfig groups driver-twin parameters.
type TwinConfig struct {
	FatigueBase        float64 `yaml:"fatigue_base"`        // asymptotic fatigue pace loss fraction
	FatigueConstant    float64 `yaml:"fatigue_constant"`    // laps to reach ~63% of the asymptote
	NeutralConsistency float64 `yaml:"neutral_consistency"` // consistency for single-lap or substituted twins
	NeutralAggression  float64 `yaml:"neutral_aggression"`  // aggression when telemetry is absent
	IQRMinSamples      int     `yaml:"iqr_min_samples"`     // samples required before outlier filtering kicks in
}

// ScorerConfig groups pit-decision parameters.
type ScorerConfig struct {
	Weights              FactorWeights `yaml:"weights"`
	CriticalConfidence   float64       `yaml:"critical_confidence"`    // floor when degradation is critical
	AvailabilityFloor    float64       `yaml:"availability_floor"`     // multiplier with zero optional factors
	UndercutMinGainSec   float64       `yaml:"undercut_min_gain_sec"`  // simulated gain required to call PIT_NOW
	TrendRateThreshold   float64       `yaml:"trend_rate_threshold"`   // rate above which degradation counts as increasing
}

// CacheConfig groups simulation-result cache parameters.
type CacheConfig struct {
	TTLSeconds float64 `yaml:"ttl_seconds"`
}

// TTL returns the configured time-to-live as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds * float64(time.Second))
}

// Config carries every engine tunable. Thresholds and weights here mirror the
// historical defaults; none of them is validated domain truth, which is why
// they live in configuration rather than code.
type Config struct {
	Compounds   map[Compound]CompoundParams `yaml:"compounds"`
	Degradation DegradationConfig           `yaml:"degradation"`
	Traffic     TrafficConfig               `yaml:"traffic"`
	Overtake    OvertakeConfig              `yaml:"overtake"`
	Simulator   SimulatorConfig             `yaml:"simulator"`
	Twin        TwinConfig                  `yaml:"twin"`
	Scorer      ScorerConfig                `yaml:"scorer"`
	Cache       CacheConfig                 `yaml:"cache"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Compounds: map[Compound]CompoundParams{
			CompoundSoft:   {BaseRate: 0.0030, CriticalAge: 15, CliffThreshold: 1.5, OptimalTempC: 35},
			CompoundMedium: {BaseRate: 0.0020, CriticalAge: 20, CliffThreshold: 1.5, OptimalTempC: 40},
			CompoundHard:   {BaseRate: 0.0012, CriticalAge: 28, CliffThreshold: 1.6, OptimalTempC: 45},
		},
		Degradation: DegradationConfig{
			MinLapsForFit:      3,
			MinLapsForExpFit:   5,
			MaxRate:            0.01,
			MinExponent:        0.5,
			MaxExponent:        2.0,
			ResidualThreshold:  0.5,
			FallbackConfidence: 0.3,
			TempCoefficient:    0.002,
			CliffHorizonLaps:   60,
			CliffLossSec:       1.5,
			CriticalCliffLaps:  3,
		},
		Traffic: TrafficConfig{
			GapThresholdSec:  2.0,
			BasePenaltySec:   0.1,
			PerCarPenaltySec: 0.05,
			SectorMultipliers: map[string]float64{
				"S1": 0.3,
				"S2": 0.5,
				"S3": 0.4,
			},
			DefaultMultiplier: 0.4,
			ClearDensity:      0.3,
			ClearWindowLaps:   2,
			DecayPerLap:       0.03,
			ProjectionLaps:    8,
		},
		Overtake: OvertakeConfig{
			Baseline:       0.10,
			SpeedWeight:    0.40,
			TireAgeWeight:  0.20,
			TireAgeScale:   20,
			WindowSec:      1.5,
			PassBonusSec:   0.3,
			BlockedLossSec: 0.4,
		},
		Simulator: SimulatorConfig{
			MinTrials:          100,
			MaxTrials:          500,
			DefaultTrials:      100,
			PitLossSec:         22.0,
			PitLossJitterSec:   2.0,
			LapNoiseScale:      0.5,
			BaseLapSec:         95.0,
			MinLapSec:          90.0,
			HarderCompoundProb: 0.7,
			MinStintLapsLeft:   10,
			PointsPositions:    10,
			FreshTireGain:      0.015,
		},
		Twin: TwinConfig{
			FatigueBase:        0.02,
			FatigueConstant:    30.0,
			NeutralConsistency: 0.7,
			NeutralAggression:  0.5,
			IQRMinSamples:      5,
		},
		Scorer: ScorerConfig{
			Weights: FactorWeights{
				Degradation: 0.35,
				Traffic:     0.25,
				Simulation:  0.20,
				Opponent:    0.10,
				Weather:     0.10,
			},
			CriticalConfidence: 0.8,
			AvailabilityFloor:  0.7,
			UndercutMinGainSec: 0.0,
			TrendRateThreshold: 0.0025,
		},
		Cache: CacheConfig{TTLSeconds: 5},
	}
}

// Validate checks structural consistency of the configuration.
func (c *Config) Validate() error {
	for _, comp := range []Compound{CompoundSoft, CompoundMedium, CompoundHard} {
		p, ok := c.Compounds[comp]
		if !ok {
			return fmt.Errorf("compounds: missing parameters for %s", comp)
		}
		if p.BaseRate <= 0 || p.CriticalAge <= 0 || p.CliffThreshold <= 1.0 {
			return fmt.Errorf("compounds[%s]: base_rate, critical_age must be positive and cliff_threshold > 1", comp)
		}
	}
	w := c.Scorer.Weights
	sum := w.Degradation + w.Traffic + w.Simulation + w.Opponent + w.Weather
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scorer.weights must sum to 1.0, got %.4f", sum)
	}
	if c.Simulator.MinTrials <= 0 || c.Simulator.MaxTrials < c.Simulator.MinTrials {
		return fmt.Errorf("simulator: invalid trial bounds [%d, %d]", c.Simulator.MinTrials, c.Simulator.MaxTrials)
	}
	if c.Simulator.DefaultTrials < c.Simulator.MinTrials || c.Simulator.DefaultTrials > c.Simulator.MaxTrials {
		return fmt.Errorf("simulator: default_trials %d outside [%d, %d]", c.Simulator.DefaultTrials, c.Simulator.MinTrials, c.Simulator.MaxTrials)
	}
	if c.Degradation.MinLapsForFit < 2 || c.Degradation.MinLapsForExpFit < c.Degradation.MinLapsForFit {
		return fmt.Errorf("degradation: invalid fit minimums")
	}
	if c.Traffic.ClearDensity <= 0 || c.Traffic.ClearDensity >= 1 {
		return fmt.Errorf("traffic.clear_density must be in (0,1), got %.2f", c.Traffic.ClearDensity)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive")
	}
	return nil
}

// ClampTrials bounds a requested trial count, substituting the default for zero.
func (c *Config) ClampTrials(trials int) int {
	if trials == 0 {
		return c.Simulator.DefaultTrials
	}
	if trials < c.Simulator.MinTrials {
		return c.Simulator.MinTrials
	}
	if trials > c.Simulator.MaxTrials {
		return c.Simulator.MaxTrials
	}
	return trials
}
