package sim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mildProfile() *DegradationProfile {
	return &DegradationProfile{
		Compound:   CompoundMedium,
		Curve:      CurveLinear,
		Rate:       0.001,
		Exponent:   1.0,
		BasePace:   92.0,
		Confidence: 0.9,
	}
}

func baseDecisionInput() DecisionInput {
	return DecisionInput{
		CurrentLap:  20,
		TotalLaps:   60,
		TireAge:     10,
		Compound:    CompoundMedium,
		Degradation: mildProfile(),
	}
}

func TestScore_InvalidInput(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())

	in := baseDecisionInput()
	in.Compound = "WET"
	_, err := s.Score(in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = baseDecisionInput()
	in.TireAge = -1
	_, err = s.Score(in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = baseDecisionInput()
	in.CurrentLap = 61
	_, err = s.Score(in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScore_CriticalDegradationMeansPitNow(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	in := baseDecisionInput()
	in.Degradation.Critical = true

	d, err := s.Score(in)
	require.NoError(t, err)

	assert.Equal(t, DecisionPitNow, d.Decision)
	require.NotNil(t, d.RecommendedLap)
	assert.Equal(t, 21, *d.RecommendedLap)
	assert.GreaterOrEqual(t, d.Confidence, 0.8)
	assert.Equal(t, ConfidenceHigh, d.ConfidenceLevel)
	assert.NotEmpty(t, d.Reasoning)
}

func TestScore_ViableUndercutMeansPitNow(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	in := baseDecisionInput()
	in.Simulation = &SimulationRun{UndercutGain: 2.0, TrialsCompleted: 100}

	d, err := s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, DecisionPitNow, d.Decision)
}

func TestScore_TireAgePastCriticalMeansPitNow(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	in := baseDecisionInput()
	in.TireAge = 20 // MEDIUM critical age

	d, err := s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, DecisionPitNow, d.Decision)
}

func TestScore_RisingWearWithLaterWindowMeansPitLater(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	in := baseDecisionInput()
	in.Degradation.Rate = 0.005
	clearAt := 26
	in.Traffic = &TrafficSnapshot{OverallDensity: 0.5, NextClearLap: &clearAt}

	d, err := s.Score(in)
	require.NoError(t, err)

	assert.Equal(t, DecisionPitLater, d.Decision)
	require.NotNil(t, d.RecommendedLap)
	assert.Equal(t, 26, *d.RecommendedLap)
}

func TestScore_FreshTiresMeanExtend(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	in := baseDecisionInput()
	in.TireAge = 3

	d, err := s.Score(in)
	require.NoError(t, err)

	assert.Equal(t, DecisionExtendStint, d.Decision)
	assert.Nil(t, d.RecommendedLap)
	assert.Greater(t, d.Confidence, 0.4, "little urgency should mean a confident extend")
}

func TestScore_AvailabilityMultiplier(t *testing.T) {
	cfg := DefaultConfig()
	s := NewPitDecisionScorer(cfg)

	// Degradation only: one of five factors.
	sparse, err := s.Score(baseDecisionInput())
	require.NoError(t, err)
	wantSparse := cfg.Scorer.AvailabilityFloor + 0.2*(1.0-cfg.Scorer.AvailabilityFloor)
	assert.InDelta(t, wantSparse, sparse.DataAvailability, 1e-9)

	// All five factors present.
	full := baseDecisionInput()
	full.Traffic = &TrafficSnapshot{OverallDensity: 0.2, ClearWindow: true}
	full.Simulation = &SimulationRun{UndercutGain: -1, TrialsCompleted: 100}
	full.Opponents = []OpponentState{{DriverID: "d2", GapSec: 4.0, TireAge: 12}}
	full.Weather = &WeatherConditions{TrackTempC: 40}
	rich, err := s.Score(full)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rich.DataAvailability, 1e-9)
	assert.Len(t, rich.FactorBreakdown, 5)
}

func TestScore_BreakdownCarriesConfiguredWeights(t *testing.T) {
	cfg := DefaultConfig()
	s := NewPitDecisionScorer(cfg)
	d, err := s.Score(baseDecisionInput())
	require.NoError(t, err)

	assert.Equal(t, cfg.Scorer.Weights.Degradation, d.FactorBreakdown[FactorDegradation].Weight)
	assert.Equal(t, cfg.Scorer.Weights.Weather, d.FactorBreakdown[FactorWeather].Weight)

	// Factors without data contribute nothing.
	weather := d.FactorBreakdown[FactorWeather]
	assert.Equal(t, 0.0, weather.Score)
	assert.Equal(t, 0.0, weather.WeightedContribution)
	assert.NotEmpty(t, weather.Explanation)

	deg := d.FactorBreakdown[FactorDegradation]
	assert.InDelta(t, deg.Score*deg.Weight, deg.WeightedContribution, 1e-12)
}

func TestScore_UndercutThreatRaisesOpponentScore(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	in := baseDecisionInput()
	in.Opponents = []OpponentState{{DriverID: "d2", GapSec: -8.0, TireAge: 1, JustPitted: true}}

	d, err := s.Score(in)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.FactorBreakdown[FactorOpponent].Score, 0.9)
	assert.Contains(t, d.FactorBreakdown[FactorOpponent].Explanation, "undercut")
}

func TestScore_Idempotent(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	in := baseDecisionInput()
	in.Traffic = &TrafficSnapshot{OverallDensity: 0.4}

	a, err := s.Score(in)
	require.NoError(t, err)
	b, err := s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScore_ConfidenceLevelMatchesScore(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	d, err := s.Score(baseDecisionInput())
	require.NoError(t, err)
	assert.Equal(t, BucketConfidence(d.Confidence), d.ConfidenceLevel)
}

func TestDecisionJSONContract(t *testing.T) {
	s := NewPitDecisionScorer(DefaultConfig())
	d, err := s.Score(baseDecisionInput())
	require.NoError(t, err)

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"decision", "confidence", "confidence_level", "factor_breakdown", "reasoning", "data_availability"} {
		assert.Contains(t, decoded, key)
	}
	breakdown := decoded["factor_breakdown"].(map[string]interface{})
	deg := breakdown[FactorDegradation].(map[string]interface{})
	for _, key := range []string{"score", "weight", "weighted_contribution", "explanation"} {
		assert.Contains(t, deg, key)
	}
}
