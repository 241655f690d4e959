package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// DegradationModel fits tire-wear curves of the form
//
//	lapTime(age) = base * (1 + rate * age^k)
//
// from the lap times of a single stint. The exponential family is tried
// first; if the fit residual is too large or too few points exist, the model
// falls back to the linear special case k=1.
type DegradationModel struct {
	cfg Config
}

// NewDegradationModel creates a model with the given configuration.
func NewDegradationModel(cfg Config) *DegradationModel {
	return &DegradationModel{cfg: cfg}
}

// Fit computes a DegradationProfile from the stint's ordered lap times.
// stint[i] is the lap time at tire age i+1. trackTemp may be nil.
//
// With fewer than the configured minimum laps, Fit returns a non-critical
// fallback profile carrying the compound default rate and low confidence
// rather than an error. Unknown compounds are a hard error.
func (m *DegradationModel) Fit(stint []float64, compound Compound, trackTemp *float64) (*DegradationProfile, error) {
	if !compound.Valid() {
		return nil, invalidInputf("unknown compound %q", compound)
	}
	for _, t := range stint {
		if t <= 0 {
			return nil, invalidInputf("non-positive lap time %.3f", t)
		}
	}
	params := m.cfg.Compounds[compound]
	dc := m.cfg.Degradation

	if len(stint) < dc.MinLapsForFit {
		base := m.cfg.Simulator.BaseLapSec
		if len(stint) > 0 {
			base = mean(stint)
		}
		return &DegradationProfile{
			Compound:   compound,
			Curve:      CurveLinear,
			Rate:       m.tempAdjustedRate(params.BaseRate, compound, trackTemp),
			Exponent:   1.0,
			BasePace:   base,
			Confidence: dc.FallbackConfidence,
			Fallback:   true,
		}, nil
	}

	base := mean(stint[:minInt(3, len(stint))])
	profile := &DegradationProfile{
		Compound: compound,
		BasePace: base,
		Exponent: 1.0,
	}

	var fitted bool
	if len(stint) >= dc.MinLapsForExpFit {
		rate, exponent, resid, err := m.fitExponential(stint, base)
		if err == nil && resid <= dc.ResidualThreshold {
			profile.Curve = CurveExponential
			profile.Rate = rate
			profile.Exponent = exponent
			profile.Confidence = clamp01(1.0 - resid)
			fitted = true
		} else if err != nil {
			logrus.Debugf("degradation: exponential fit rejected for %s: %v", compound, err)
		}
	}
	if !fitted {
		linBase, rate, resid := m.fitLinear(stint)
		profile.Curve = CurveLinear
		profile.BasePace = linBase
		profile.Rate = rate
		profile.Exponent = 1.0
		profile.Confidence = clamp01(1.0 - resid)
	}

	profile.Rate = clamp(profile.Rate, 0, dc.MaxRate)
	profile.Rate = m.tempAdjustedRate(profile.Rate, compound, trackTemp)
	profile.CliffLap = m.detectCliff(profile, params)
	profile.Critical = profile.CliffLap != nil && *profile.CliffLap <= len(stint)+dc.CriticalCliffLaps
	return profile, nil
}

// fitExponential log-linearizes base*(1+rate*age^k) and solves the resulting
// line with least squares: ln(t/base - 1) = ln(rate) + k*ln(age).
// Returns ErrFitFailure when too few laps sit above the base pace to anchor
// the transform.
func (m *DegradationModel) fitExponential(stint []float64, base float64) (rate, exponent, resid float64, err error) {
	dc := m.cfg.Degradation
	var xs, ys []float64
	for i, t := range stint {
		age := float64(i + 1)
		y := t/base - 1.0
		if y <= 1e-9 {
			continue // at or below base pace, no wear signal
		}
		xs = append(xs, math.Log(age))
		ys = append(ys, math.Log(y))
	}
	if len(xs) < 3 {
		return 0, 0, 0, ErrFitFailure
	}
	logRate, k := linearFit(xs, ys)
	rate = math.Exp(logRate)
	exponent = clamp(k, dc.MinExponent, dc.MaxExponent)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, 0, 0, ErrFitFailure
	}
	rate = clamp(rate, 0, dc.MaxRate)

	probe := &DegradationProfile{BasePace: base, Rate: rate, Exponent: exponent}
	return rate, exponent, m.normalizedResidual(stint, probe), nil
}

// fitLinear solves t = a + b*age and converts the slope to a fractional rate
// over the fitted intercept, so the returned profile reproduces the
// least-squares line exactly (up to the rate cap).
func (m *DegradationModel) fitLinear(stint []float64) (base, rate, resid float64) {
	xs := make([]float64, len(stint))
	for i := range stint {
		xs[i] = float64(i + 1)
	}
	intercept, slope := linearFit(xs, stint)
	base = intercept
	if base <= 0 {
		base = mean(stint)
	}
	rate = clamp(slope/base, 0, m.cfg.Degradation.MaxRate)
	probe := &DegradationProfile{BasePace: base, Rate: rate, Exponent: 1.0}
	return base, rate, m.normalizedResidual(stint, probe)
}

// normalizedResidual is RMSE over the spread of the observed times. A perfect
// fit yields 0; a fit no better than the mean yields about 1.
func (m *DegradationModel) normalizedResidual(stint []float64, p *DegradationProfile) float64 {
	var sse float64
	for i, t := range stint {
		d := t - p.PredictLapTime(i+1)
		sse += d * d
	}
	rmse := math.Sqrt(sse / float64(len(stint)))
	spread := stdDev(stint)
	if spread < 1e-9 {
		if rmse < 1e-6 {
			return 0
		}
		return 1
	}
	return rmse / spread
}

// detectCliff scans forward for the first age where the marginal degradation
// rate exceeds the compound threshold times the running average marginal
// rate. Linear curves have a constant marginal rate, so that rule can never
// fire; for those the cliff is the age where cumulative loss over base pace
// crosses the configured cliff loss.
func (m *DegradationModel) detectCliff(p *DegradationProfile, params CompoundParams) *int {
	if p.Rate <= 0 {
		return nil
	}
	dc := m.cfg.Degradation
	if p.Curve == CurveExponential && p.Exponent > 1.0 {
		var sum float64
		for age := 1; age <= dc.CliffHorizonLaps; age++ {
			marginal := p.PredictLapTime(age+1) - p.PredictLapTime(age)
			if age >= 2 {
				avg := sum / float64(age-1)
				if avg > 0 && marginal > params.CliffThreshold*avg {
					cliff := age
					return &cliff
				}
			}
			sum += marginal
		}
		return nil
	}
	// Constant (or sub-linear) marginal rate: cumulative-loss rule.
	for age := 1; age <= dc.CliffHorizonLaps; age++ {
		if p.PredictLapTime(age)-p.BasePace >= dc.CliffLossSec {
			cliff := age
			return &cliff
		}
	}
	return nil
}

// tempAdjustedRate scales the rate for track temperature away from the
// compound's optimum. A nil temperature leaves the rate untouched.
func (m *DegradationModel) tempAdjustedRate(rate float64, compound Compound, trackTemp *float64) float64 {
	if trackTemp == nil {
		return rate
	}
	optimal := m.cfg.Compounds[compound].OptimalTempC
	delta := math.Abs(*trackTemp - optimal)
	adjusted := rate * (1.0 + delta*m.cfg.Degradation.TempCoefficient)
	return clamp(adjusted, 0, m.cfg.Degradation.MaxRate)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
