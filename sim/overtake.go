package sim

import "math/rand"

// OvertakeModel estimates the probability of a pass when two cars run inside
// the combat window.
type OvertakeModel struct {
	cfg Config
}

// NewOvertakeModel creates a model with the given configuration.
func NewOvertakeModel(cfg Config) *OvertakeModel {
	return &OvertakeModel{cfg: cfg}
}

// Probability returns the chance of a successful pass this lap.
// speedAdvantage is the attacker's fractional pace edge (positive = faster),
// tireAgeAdvantage the defender's tire age minus the attacker's in laps.
// Disadvantages pull the probability below the baseline.
func (m *OvertakeModel) Probability(speedAdvantage float64, tireAgeAdvantage int) float64 {
	oc := m.cfg.Overtake
	p := oc.Baseline
	p += clamp(speedAdvantage*10.0, -1, 1) * oc.SpeedWeight
	if oc.TireAgeScale > 0 {
		p += clamp(float64(tireAgeAdvantage)/oc.TireAgeScale, -1, 1) * oc.TireAgeWeight
	}
	return clamp01(p)
}

// Attempt samples one overtake attempt and returns the time delta for the
// attacker: a bonus on success, a blocked loss on failure.
func (m *OvertakeModel) Attempt(rng *rand.Rand, probability float64) (passed bool, deltaSec float64) {
	if rng.Float64() < probability {
		return true, -m.cfg.Overtake.PassBonusSec
	}
	return false, m.cfg.Overtake.BlockedLossSec
}
