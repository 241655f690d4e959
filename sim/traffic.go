package sim

// TrafficModel estimates per-lap time lost to congestion from the field's
// positions and gaps. It holds no state: every Estimate call is a pure
// function of the field snapshot it is given.
type TrafficModel struct {
	cfg Config
}

// NewTrafficModel creates a model with the given configuration.
func NewTrafficModel(cfg Config) *TrafficModel {
	return &TrafficModel{cfg: cfg}
}

// Estimate computes the TrafficSnapshot for one driver at the field's lap.
// Returns ErrInvalidInput for an empty field or ErrMissingDriverState when
// the driver does not appear in it.
func (m *TrafficModel) Estimate(field FieldState, driverID string) (*TrafficSnapshot, error) {
	if len(field.Cars) == 0 {
		return nil, invalidInputf("empty field")
	}
	var self *CarPosition
	for i := range field.Cars {
		if field.Cars[i].DriverID == driverID {
			self = &field.Cars[i]
			break
		}
	}
	if self == nil {
		return nil, ErrMissingDriverState
	}

	tc := m.cfg.Traffic
	density := m.SectorDensity(field)

	carsAhead := self.Position - 1
	if carsAhead < 0 {
		carsAhead = 0
	}
	timeLost := 0.0
	if carsAhead > 0 {
		timeLost = tc.BasePenaltySec + float64(carsAhead)*tc.PerCarPenaltySec
	}
	overall := 0.0
	for sector, d := range density {
		timeLost += d * m.sectorMultiplier(sector)
		overall += d
	}
	if len(density) > 0 {
		overall /= float64(len(density))
	}

	snap := &TrafficSnapshot{
		DriverID:       driverID,
		Lap:            field.Lap,
		SectorDensity:  density,
		OverallDensity: overall,
		TimeLostPerLap: timeLost,
		ClearWindow:    overall < tc.ClearDensity,
	}
	snap.NextClearLap = m.projectClearLap(overall, field.Lap, field.TotalLaps)
	return snap, nil
}

// SectorDensity computes per-sector density: the fraction of the field
// running close together in that sector, capped at 1. Cars with gap data
// count only when within the configured threshold of the car ahead; a zero
// gap on a non-leading car means gaps are unknown and the car counts anyway.
func (m *TrafficModel) SectorDensity(field FieldState) map[string]float64 {
	fieldSize := len(field.Cars)
	counts := make(map[string]int)
	for _, car := range field.Cars {
		if car.Sector == "" {
			continue
		}
		if car.Position > 1 && car.GapAheadSec > m.cfg.Traffic.GapThresholdSec {
			continue
		}
		counts[car.Sector]++
	}
	density := make(map[string]float64, len(counts))
	for sector, n := range counts {
		density[sector] = clamp01(float64(n) / float64(fieldSize))
	}
	return density
}

// projectClearLap walks the projected density forward and returns the first
// lap opening a window of the configured consecutive clear laps, or nil.
// Density is projected to thin out slightly each lap as the field spreads.
func (m *TrafficModel) projectClearLap(current float64, lap, totalLaps int) *int {
	tc := m.cfg.Traffic
	horizon := tc.ProjectionLaps
	if totalLaps > 0 && lap+horizon > totalLaps {
		horizon = totalLaps - lap
	}
	run := 0
	for offset := 1; offset <= horizon; offset++ {
		projected := current * (1.0 - tc.DecayPerLap*float64(offset))
		if projected < tc.ClearDensity {
			run++
			if run >= tc.ClearWindowLaps {
				clear := lap + offset - tc.ClearWindowLaps + 1
				return &clear
			}
		} else {
			run = 0
		}
	}
	return nil
}

func (m *TrafficModel) sectorMultiplier(sector string) float64 {
	if mult, ok := m.cfg.Traffic.SectorMultipliers[sector]; ok {
		return mult
	}
	return m.cfg.Traffic.DefaultMultiplier
}
