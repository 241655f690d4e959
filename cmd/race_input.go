package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	sim "github.com/gridrival/racesim/sim"
)

// RaceInput is the YAML shape of a race snapshot file. Driver twins are not
// supplied directly; they are built from each driver's lap history.
type RaceInput struct {
	RaceID     string                 `yaml:"race_id"`
	TotalLaps  int                    `yaml:"total_laps"`
	CurrentLap int                    `yaml:"current_lap"`
	Trials     int                    `yaml:"trials"`
	Seed       *int64                 `yaml:"seed"`
	Weather    *sim.WeatherConditions `yaml:"weather"`
	Field      *sim.FieldState        `yaml:"field"`
	Drivers    []DriverInput          `yaml:"drivers"`
}

// DriverInput is one driver's state plus lap history in the snapshot file.
type DriverInput struct {
	DriverID  string                `yaml:"driver_id"`
	Position  int                   `yaml:"position"`
	TireAge   int                   `yaml:"tire_age"`
	Compound  sim.Compound          `yaml:"compound"`
	BasePace  float64               `yaml:"base_pace"`
	Laps      []sim.LapRecord       `yaml:"laps"`
	Telemetry *sim.TelemetrySummary `yaml:"telemetry"`
}

// LoadRaceInput reads a race snapshot file and converts it to a simulation
// input, building a twin for every driver with enough laps. Drivers without
// usable histories keep a nil twin and are substituted inside the simulator.
func LoadRaceInput(path string, cfg sim.Config) (*sim.SimulationInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading race input: %w", err)
	}
	var in RaceInput
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&in); err != nil {
		return nil, fmt.Errorf("parsing race input: %w", err)
	}

	builder := sim.NewTwinBuilder(cfg)
	input := &sim.SimulationInput{
		RaceID:     in.RaceID,
		TotalLaps:  in.TotalLaps,
		CurrentLap: in.CurrentLap,
		Trials:     in.Trials,
		Seed:       in.Seed,
		Weather:    in.Weather,
		Field:      in.Field,
		Drivers:    make([]sim.DriverRaceState, len(in.Drivers)),
	}
	for i, d := range in.Drivers {
		state := sim.DriverRaceState{
			DriverID: d.DriverID,
			Position: d.Position,
			TireAge:  d.TireAge,
			Compound: d.Compound,
			BasePace: d.BasePace,
		}
		if len(d.Laps) > 0 {
			twin, err := builder.Build(d.Laps, d.Telemetry, d.Compound)
			switch {
			case err == nil:
				state.Twin = twin
			case errors.Is(err, sim.ErrInsufficientData):
				logrus.Warnf("driver %s: not enough laps for a twin, simulating with a neutral profile", d.DriverID)
			default:
				return nil, fmt.Errorf("building twin for %s: %w", d.DriverID, err)
			}
		}
		input.Drivers[i] = state
	}
	return input, nil
}
