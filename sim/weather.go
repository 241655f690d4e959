package sim

import "math"

// Weather sensitivity constants. Rain dominates: even light rain costs more
// than a large temperature excursion.
const (
	weatherTempLossPerDeg = 0.0008 // fractional pace loss per degree C off optimum
	weatherRainLossPerMM  = 0.02   // fractional pace loss per mm/h of rainfall
	weatherMaxModifier    = 1.15
	weatherHeavyRainMM    = 2.0
)

// WeatherModel converts ambient conditions into a lap-time modifier and a
// severity score for decision making.
type WeatherModel struct {
	cfg Config
}

// NewWeatherModel creates a model with the given configuration.
func NewWeatherModel(cfg Config) *WeatherModel {
	return &WeatherModel{cfg: cfg}
}

// PaceModifier returns the multiplicative lap-time adjustment for the given
// conditions on the given compound. Nil conditions mean a neutral 1.0.
func (m *WeatherModel) PaceModifier(w *WeatherConditions, compound Compound) float64 {
	if w == nil {
		return 1.0
	}
	optimal := m.cfg.Compounds[compound].OptimalTempC
	mod := 1.0
	mod += math.Abs(w.TrackTempC-optimal) * weatherTempLossPerDeg
	mod += w.Rainfall * weatherRainLossPerMM
	return clamp(mod, 1.0, weatherMaxModifier)
}

// Severity scores how much the conditions should push a pit decision, in
// [0,1]. Dry, on-temperature running scores near zero.
func (m *WeatherModel) Severity(w *WeatherConditions, compound Compound) float64 {
	if w == nil {
		return 0
	}
	optimal := m.cfg.Compounds[compound].OptimalTempC
	tempTerm := clamp01(math.Abs(w.TrackTempC-optimal) / 20.0)
	rainTerm := clamp01(w.Rainfall / weatherHeavyRainMM)
	// Rain outweighs temperature.
	return clamp01(0.3*tempTerm + 0.7*rainTerm)
}
