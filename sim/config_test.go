package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL())
}

func TestConfigValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scorer.Weights.Degradation = 0.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestConfigValidate_MissingCompound(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Compounds, CompoundHard)
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_TrialBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulator.MaxTrials = 10
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_CacheTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.TTLSeconds = 0
	assert.Error(t, cfg.Validate())
}

func TestClampTrials(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero takes the default", 0, 100},
		{"below minimum", 10, 100},
		{"above maximum", 5000, 500},
		{"in range untouched", 250, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ClampTrials(tt.requested))
		})
	}
}

func TestCompoundHarder(t *testing.T) {
	assert.Equal(t, CompoundMedium, CompoundSoft.Harder())
	assert.Equal(t, CompoundHard, CompoundMedium.Harder())
	assert.Equal(t, CompoundHard, CompoundHard.Harder())
}

func TestBucketConfidence(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.95, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.7, ConfidenceMediumHigh},
		{0.5, ConfidenceMedium},
		{0.3, ConfidenceLowMedium},
		{0.1, ConfidenceLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketConfidence(tt.score), "score %.2f", tt.score)
	}
}
