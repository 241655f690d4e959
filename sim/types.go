package sim

import (
	"time"
)

// Compound identifies a tire compound.
type Compound string

const (
	CompoundSoft   Compound = "SOFT"
	CompoundMedium Compound = "MEDIUM"
	CompoundHard   Compound = "HARD"
)

// Valid reports whether the compound is one of the known slick compounds.
func (c Compound) Valid() bool {
	switch c {
	case CompoundSoft, CompoundMedium, CompoundHard:
		return true
	}
	return false
}

// Harder returns the next harder compound, or the same compound if already hardest.
func (c Compound) Harder() Compound {
	switch c {
	case CompoundSoft:
		return CompoundMedium
	case CompoundMedium:
		return CompoundHard
	}
	return c
}

// CurveType identifies the fitted degradation curve family.
type CurveType string

const (
	CurveExponential CurveType = "exponential"
	CurveLinear      CurveType = "linear"
)

// Decision is the categorical pit recommendation.
type Decision string

const (
	DecisionPitNow      Decision = "PIT_NOW"
	DecisionPitLater    Decision = "PIT_LATER"
	DecisionExtendStint Decision = "EXTEND_STINT"
)

// ConfidenceLevel buckets a confidence score for external consumers.
type ConfidenceLevel string

const (
	ConfidenceHigh       ConfidenceLevel = "high"
	ConfidenceMediumHigh ConfidenceLevel = "medium-high"
	ConfidenceMedium     ConfidenceLevel = "medium"
	ConfidenceLowMedium  ConfidenceLevel = "low-medium"
	ConfidenceLow        ConfidenceLevel = "low"
)

// BucketConfidence maps a confidence score in [0,1] to its level.
func BucketConfidence(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMediumHigh
	case score >= 0.4:
		return ConfidenceMedium
	case score >= 0.2:
		return ConfidenceLowMedium
	}
	return ConfidenceLow
}

// SectorTime is one timed sector within a lap. Labels are unique per lap
// and keep the order they were recorded in.
type SectorTime struct {
	Label   string  `json:"label" yaml:"label"`
	Seconds float64 `json:"seconds" yaml:"seconds"`
}

// TelemetrySummary condenses per-lap telemetry into the three normalized
// signals the twin builder consumes. All values are expected in [0,1].
type TelemetrySummary struct {
	ThrottleVariance float64 `json:"throttle_variance" yaml:"throttle_variance"`
	BrakeAggression  float64 `json:"brake_aggression" yaml:"brake_aggression"`
	CornerSpeedRatio float64 `json:"corner_speed_ratio" yaml:"corner_speed_ratio"`
}

// LapRecord is one completed lap. Records are immutable once appended to a
// driver's history.
type LapRecord struct {
	DriverID  string            `json:"driver_id" yaml:"driver_id"`
	Lap       int               `json:"lap" yaml:"lap"`
	Seconds   float64           `json:"seconds" yaml:"seconds"`
	Sectors   []SectorTime      `json:"sectors,omitempty" yaml:"sectors,omitempty"`
	Telemetry *TelemetrySummary `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// DegradationProfile is the fitted tire-wear curve for one stint.
// Profiles are recomputed as the stint grows and superseded, never mutated.
type DegradationProfile struct {
	Compound   Compound  `json:"compound"`
	Curve      CurveType `json:"curve"`
	Rate       float64   `json:"rate"`      // fractional pace loss per lap-age unit
	Exponent   float64   `json:"exponent"`  // age exponent k in base*(1+rate*age^k)
	BasePace   float64   `json:"base_pace"` // seconds, fresh-tire reference lap
	CliffLap   *int      `json:"cliff_lap"` // nil when no cliff is predicted
	Critical   bool      `json:"critical"`
	Confidence float64   `json:"confidence"` // 1 - normalized residual, clamped [0,1]
	Fallback   bool      `json:"fallback"`   // true when data was insufficient for a fit
}

// PredictLapTime returns the modeled lap time at the given tire age.
func (p *DegradationProfile) PredictLapTime(age int) float64 {
	if age < 0 {
		age = 0
	}
	return p.BasePace * (1.0 + p.Rate*powInt(float64(age), p.Exponent))
}

// DriverTwin is the derived behavioral model of one driver.
// It is a pure function of the lap history it was built from.
type DriverTwin struct {
	DriverID         string              `json:"driver_id"`
	PaceVector       *float64            `json:"pace_vector"` // nil until >=2 laps exist
	ConsistencyIndex float64             `json:"consistency_index"`
	AggressionScore  float64             `json:"aggression_score"`
	SectorStrengths  map[string]float64  `json:"sector_strengths"`
	Degradation      *DegradationProfile `json:"degradation_profile"`
	FatigueFactor    float64             `json:"fatigue_factor"`
	LapCount         int                 `json:"lap_count"`
	Confidence       float64             `json:"confidence"`
	GeneratedAt      time.Time           `json:"timestamp"`
	Neutral          bool                `json:"neutral,omitempty"` // true for substituted default twins
}

// TrafficSnapshot is the estimated congestion state for one driver at one lap.
type TrafficSnapshot struct {
	DriverID       string             `json:"driver_id"`
	Lap            int                `json:"lap"`
	SectorDensity  map[string]float64 `json:"sector_density"`
	OverallDensity float64            `json:"overall_density"`
	TimeLostPerLap float64            `json:"time_lost_per_lap"` // seconds
	ClearWindow    bool               `json:"clear_window"`
	NextClearLap   *int               `json:"next_clear_lap"` // nil when no clear window is projected
}

// CarPosition is one car's place on track for traffic estimation.
type CarPosition struct {
	DriverID    string  `json:"driver_id" yaml:"driver_id"`
	Position    int     `json:"position" yaml:"position"`
	Sector      string  `json:"sector" yaml:"sector"`
	GapAheadSec float64 `json:"gap_ahead_sec" yaml:"gap_ahead_sec"` // to the car directly ahead; 0 for the leader
}

// FieldState is the whole field at one lap.
type FieldState struct {
	Lap       int           `json:"lap" yaml:"lap"`
	TotalLaps int           `json:"total_laps" yaml:"total_laps"`
	Cars      []CarPosition `json:"cars" yaml:"cars"`
}

// WeatherConditions are the ambient inputs the weather model consumes.
type WeatherConditions struct {
	TrackTempC   float64 `json:"track_temp_c" yaml:"track_temp_c"`
	AmbientTempC float64 `json:"ambient_temp_c" yaml:"ambient_temp_c"`
	Humidity     float64 `json:"humidity" yaml:"humidity"` // 0-100
	Rainfall     float64 `json:"rainfall" yaml:"rainfall"` // mm/h, 0 for dry
}

// DriverRaceState is a driver's live state fed into the race simulator.
type DriverRaceState struct {
	DriverID string      `json:"driver_id" yaml:"driver_id"`
	Position int         `json:"position" yaml:"position"`
	TireAge  int         `json:"tire_age" yaml:"tire_age"`
	Compound Compound    `json:"compound" yaml:"compound"`
	BasePace float64     `json:"base_pace" yaml:"base_pace"` // seconds; 0 means use the configured default
	Twin     *DriverTwin `json:"twin,omitempty" yaml:"-"`
}

// SimulationInput is everything one Simulate call needs. It is treated as an
// immutable snapshot; the simulator never mutates it.
type SimulationInput struct {
	RaceID     string             `json:"race_id"`
	Drivers    []DriverRaceState  `json:"drivers"`
	TotalLaps  int                `json:"total_laps"`
	CurrentLap int                `json:"current_lap"`
	Trials     int                `json:"trials"`
	Seed       *int64             `json:"seed,omitempty"` // nil: fresh seed per call
	Weather    *WeatherConditions `json:"weather,omitempty"`
	Field      *FieldState        `json:"field,omitempty"`

	// ForcedPitLaps pins a pit stop to a specific lap per driver. Used by the
	// strategy optimizer to scan candidate laps.
	ForcedPitLaps map[string]int `json:"forced_pit_laps,omitempty"`
}

// TrialOutcome is the sampled result of one independent race replay.
type TrialOutcome struct {
	FinishOrder []string           `json:"finishing_order"`
	PitLaps     map[string][]int   `json:"pit_laps"`
	TotalTimes  map[string]float64 `json:"total_times"`
}

// TimeStats summarizes a driver's total race time across trials.
type TimeStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// PositionEstimate is a driver's most likely finishing position.
type PositionEstimate struct {
	Position    int     `json:"position"`
	Probability float64 `json:"probability"`
}

// OutcomeProbs are the headline outcome probabilities for one driver.
type OutcomeProbs struct {
	Win    float64 `json:"win_probability"`
	Podium float64 `json:"podium_probability"`
	Points float64 `json:"points_probability"`
}

// PitWindow is a recommended range of pit laps.
type PitWindow struct {
	Start      int `json:"start"`
	End        int `json:"end"`
	MostCommon int `json:"most_common"`
}

// TrafficVerdict is the majority-vote congestion call near the current lap.
type TrafficVerdict struct {
	Busy    bool    `json:"busy"`
	Clear   bool    `json:"clear_window"`
	Density float64 `json:"traffic_density"`
}

// SimulationRun is the aggregate of all Monte Carlo trials (the "Race Twin").
// A run is created once per Simulate call and never mutated afterwards.
type SimulationRun struct {
	RunID           string                      `json:"run_id"`
	RaceID          string                      `json:"race_id"`
	Seed            int64                       `json:"seed"`
	TrialsRequested int                         `json:"trials_requested"`
	TrialsCompleted int                         `json:"simulations"`
	CurrentLap      int                         `json:"current_lap"`
	TotalLaps       int                         `json:"total_laps"`
	PositionProbs   map[string]map[int]float64  `json:"position_probabilities"`
	MostLikely      map[string]PositionEstimate `json:"most_likely_positions"`
	TimeStats       map[string]TimeStats        `json:"time_stats"`
	Outcomes        map[string]OutcomeProbs     `json:"monte_carlo_outcomes"`
	TireCliffLap    *int                        `json:"tire_cliff_lap"`
	PitWindow       *PitWindow                  `json:"recommended_pit_window"`
	UndercutGain    float64                     `json:"undercut_gain_estimate"` // seconds; <=0 when not viable
	OvercutGain     float64                     `json:"overcut_gain_estimate"`
	Traffic         TrafficVerdict              `json:"traffic_simulation"`
	Confidence      float64                     `json:"confidence"`
	Partial         bool                        `json:"partial"` // true when the deadline cut trials short
	MissingTwins    []string                    `json:"missing_twins,omitempty"`
	CreatedAt       time.Time                   `json:"timestamp"`
}

// ExpectedPosition returns the probability-weighted finishing position for a
// driver, or 0 when the driver is unknown to the run.
func (r *SimulationRun) ExpectedPosition(driverID string) float64 {
	probs, ok := r.PositionProbs[driverID]
	if !ok {
		return 0
	}
	expected := 0.0
	for pos, p := range probs {
		expected += float64(pos) * p
	}
	return expected
}

// OpponentState is the slice of a rival's state the decision scorer consumes.
type OpponentState struct {
	DriverID   string  `json:"driver_id" yaml:"driver_id"`
	GapSec     float64 `json:"gap_sec" yaml:"gap_sec"` // signed; negative = behind us
	TireAge    int     `json:"tire_age" yaml:"tire_age"`
	JustPitted bool    `json:"just_pitted" yaml:"just_pitted"`
}

// FactorScore is one factor's contribution to a pit decision.
type FactorScore struct {
	Score                float64 `json:"score"`
	Weight               float64 `json:"weight"`
	WeightedContribution float64 `json:"weighted_contribution"`
	Explanation          string  `json:"explanation"`
}

// PitDecision is the scored pit recommendation. It is derived fresh on every
// call and never carries state between calls.
type PitDecision struct {
	Decision         Decision               `json:"decision"`
	Confidence       float64                `json:"confidence"`
	ConfidenceLevel  ConfidenceLevel        `json:"confidence_level"`
	FactorBreakdown  map[string]FactorScore `json:"factor_breakdown"`
	Reasoning        []string               `json:"reasoning"`
	RecommendedLap   *int                   `json:"recommended_lap"`
	DataAvailability float64                `json:"data_availability"` // multiplier applied to confidence
}

// DecisionInput is the snapshot the pit decision scorer evaluates.
type DecisionInput struct {
	CurrentLap  int                 `json:"current_lap"`
	TotalLaps   int                 `json:"total_laps"`
	TireAge     int                 `json:"tire_age"`
	Compound    Compound            `json:"compound"`
	Degradation *DegradationProfile `json:"degradation"`
	Traffic     *TrafficSnapshot    `json:"traffic"`
	Simulation  *SimulationRun      `json:"simulation,omitempty"`
	Opponents   []OpponentState     `json:"opponents,omitempty"`
	Weather     *WeatherConditions  `json:"weather,omitempty"`
}

// StrategyLever is one side of the undercut/overcut analysis.
type StrategyLever struct {
	Viable  bool    `json:"viable"`
	GainSec float64 `json:"time_gain"`
	Lap     int     `json:"recommended_lap"`
}

// RiskAssessment is the additive strategy risk score.
type RiskAssessment struct {
	Score float64  `json:"score"`
	Level string   `json:"level"` // high / medium / low
	Risks []string `json:"risks"`
}

// StrategyResult is the optimizer's verdict over the candidate pit laps.
type StrategyResult struct {
	DriverID      string         `json:"driver_id"`
	OptimalWindow PitWindow      `json:"optimal_window"`
	Undercut      StrategyLever  `json:"undercut"`
	Overcut       StrategyLever  `json:"overcut"`
	Risk          RiskAssessment `json:"risk"`
	BaselineTime  float64        `json:"baseline_expected_time"`
	BestTime      float64        `json:"best_expected_time"`
}
