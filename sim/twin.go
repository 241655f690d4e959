package sim

import (
	"math"
	"time"
)

// Confidence ladder for twins by history depth.
const (
	twinLapsMedium = 5
	twinLapsGood   = 10
	twinLapsFull   = 20
)

// TwinBuilder derives driver twins from lap histories. Building is a pure
// function of the history: the same laps always yield the same twin, aside
// from the generation timestamp.
type TwinBuilder struct {
	cfg Config
	deg *DegradationModel
	now func() time.Time
}

// NewTwinBuilder creates a builder with the given configuration.
func NewTwinBuilder(cfg Config) *TwinBuilder {
	return &TwinBuilder{
		cfg: cfg,
		deg: NewDegradationModel(cfg),
		now: time.Now,
	}
}

// Build derives a twin from the driver's lap history on the given compound.
// telemetry may be nil, in which case per-lap telemetry from the records is
// aggregated instead; with neither, aggression falls back to neutral.
// An empty history is ErrInsufficientData, malformed laps are ErrInvalidInput.
func (b *TwinBuilder) Build(history []LapRecord, telemetry *TelemetrySummary, compound Compound) (*DriverTwin, error) {
	return b.BuildWithField(history, telemetry, compound, nil)
}

// BuildWithField is Build with per-sector field-average times as the sector
// strength baseline. A nil baseline falls back to the driver's own average
// across sectors.
func (b *TwinBuilder) BuildWithField(history []LapRecord, telemetry *TelemetrySummary, compound Compound, fieldSectorAvg map[string]float64) (*DriverTwin, error) {
	if len(history) == 0 {
		return nil, ErrInsufficientData
	}
	driverID := history[0].DriverID
	times := make([]float64, len(history))
	for i, rec := range history {
		if rec.Lap < 0 {
			return nil, invalidInputf("negative lap number %d", rec.Lap)
		}
		if rec.Seconds <= 0 {
			return nil, invalidInputf("non-positive lap time %.3f at lap %d", rec.Seconds, rec.Lap)
		}
		times[i] = rec.Seconds
	}

	twin := &DriverTwin{
		DriverID:    driverID,
		LapCount:    len(history),
		GeneratedAt: b.now(),
	}

	filtered := iqrFilter(times, b.cfg.Twin.IQRMinSamples)
	twin.PaceVector = paceVector(filtered)
	twin.ConsistencyIndex = b.consistency(filtered)
	twin.AggressionScore = b.aggression(history, telemetry)
	twin.SectorStrengths = b.sectorStrengths(history, fieldSectorAvg)
	twin.FatigueFactor = b.fatigue(len(history))
	twin.Confidence = twinConfidence(len(history))

	profile, err := b.deg.Fit(times, compound, nil)
	if err != nil {
		return nil, err
	}
	twin.Degradation = profile
	return twin, nil
}

// NeutralTwin returns the substitute twin for a driver with no usable history.
// Its fallback degradation profile carries the compound default rate.
func NeutralTwin(cfg Config, driverID string, compound Compound) *DriverTwin {
	params := cfg.Compounds[compound]
	return &DriverTwin{
		DriverID:         driverID,
		ConsistencyIndex: cfg.Twin.NeutralConsistency,
		AggressionScore:  cfg.Twin.NeutralAggression,
		SectorStrengths:  map[string]float64{},
		Degradation: &DegradationProfile{
			Compound:   compound,
			Curve:      CurveLinear,
			Rate:       params.BaseRate,
			Exponent:   1.0,
			BasePace:   cfg.Simulator.BaseLapSec,
			Confidence: cfg.Degradation.FallbackConfidence,
			Fallback:   true,
		},
		Confidence:  cfg.Degradation.FallbackConfidence,
		GeneratedAt: time.Now(),
		Neutral:     true,
	}
}

// paceVector is the driver's raw pace spread: (mean - best) / best.
// Nil with fewer than two laps, since a spread needs at least a pair.
func paceVector(times []float64) *float64 {
	if len(times) < 2 {
		return nil
	}
	best, _ := minMax(times)
	if best <= 0 {
		return nil
	}
	v := (mean(times) - best) / best
	return &v
}

func (b *TwinBuilder) consistency(times []float64) float64 {
	if len(times) < 2 {
		return b.cfg.Twin.NeutralConsistency
	}
	m := mean(times)
	if m <= 0 {
		return b.cfg.Twin.NeutralConsistency
	}
	return clamp01(1.0 - stdDev(times)/m)
}

// aggression averages the three telemetry signals. An explicit summary wins;
// otherwise per-lap telemetry is averaged across the laps that carry it.
func (b *TwinBuilder) aggression(history []LapRecord, telemetry *TelemetrySummary) float64 {
	if telemetry != nil {
		return clamp01((telemetry.ThrottleVariance + telemetry.BrakeAggression + telemetry.CornerSpeedRatio) / 3.0)
	}
	var sum float64
	var n int
	for _, rec := range history {
		if rec.Telemetry == nil {
			continue
		}
		sum += (rec.Telemetry.ThrottleVariance + rec.Telemetry.BrakeAggression + rec.Telemetry.CornerSpeedRatio) / 3.0
		n++
	}
	if n == 0 {
		return b.cfg.Twin.NeutralAggression
	}
	return clamp01(sum / float64(n))
}

// sectorStrengths compares the driver's average time per sector label against
// a baseline. Values above 1 mean the driver is faster than the baseline in
// that sector. Laps without sector data contribute nothing.
func (b *TwinBuilder) sectorStrengths(history []LapRecord, fieldAvg map[string]float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range history {
		for _, s := range rec.Sectors {
			if s.Seconds <= 0 {
				continue
			}
			sums[s.Label] += s.Seconds
			counts[s.Label]++
		}
	}
	strengths := make(map[string]float64, len(sums))
	if len(sums) == 0 {
		return strengths
	}

	avgs := make(map[string]float64, len(sums))
	var total float64
	for label, sum := range sums {
		avgs[label] = sum / float64(counts[label])
		total += avgs[label]
	}
	selfBaseline := total / float64(len(avgs))

	for label, avg := range avgs {
		baseline := selfBaseline
		if fieldAvg != nil {
			if fa, ok := fieldAvg[label]; ok && fa > 0 {
				baseline = fa
			}
		}
		if avg > 0 {
			strengths[label] = baseline / avg
		}
	}
	return strengths
}

// fatigue grows toward the configured asymptote as laps accumulate.
func (b *TwinBuilder) fatigue(laps int) float64 {
	tc := b.cfg.Twin
	if tc.FatigueConstant <= 0 {
		return 0
	}
	return tc.FatigueBase * (1.0 - math.Exp(-float64(laps)/tc.FatigueConstant))
}

func twinConfidence(laps int) float64 {
	switch {
	case laps < twinLapsMedium:
		return 0.5
	case laps < twinLapsGood:
		return 0.7
	case laps < twinLapsFull:
		return 0.85
	}
	return 0.95
}
