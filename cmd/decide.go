package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/gridrival/racesim/sim"
)

var (
	decideInputFile  string
	decideConfigFile string
	decideTimeout    time.Duration
)

// decideCmd runs the full pipeline for the first driver in the snapshot:
// twin, traffic estimate, simulation, then the weighted pit call.
var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Score a pit decision for the lead driver of the snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadEngineConfig(decideConfigFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		input, err := LoadRaceInput(decideInputFile, cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if len(input.Drivers) == 0 {
			logrus.Fatalf("race snapshot has no drivers")
		}
		focal := input.Drivers[0]

		ctx, cancel := context.WithTimeout(context.Background(), decideTimeout)
		defer cancel()

		simulator := sim.NewRaceSimulator(cfg, sim.NewResultCache(cfg.Cache.TTL()))
		run, err := simulator.Simulate(ctx, input)
		if err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}

		decisionInput := sim.DecisionInput{
			CurrentLap: input.CurrentLap,
			TotalLaps:  input.TotalLaps,
			TireAge:    focal.TireAge,
			Compound:   focal.Compound,
			Simulation: run,
			Weather:    input.Weather,
		}
		if focal.Twin != nil {
			decisionInput.Degradation = focal.Twin.Degradation
		}
		if input.Field != nil {
			snap, err := sim.NewTrafficModel(cfg).Estimate(*input.Field, focal.DriverID)
			if err != nil {
				logrus.Warnf("traffic estimate unavailable: %v", err)
			} else {
				decisionInput.Traffic = snap
			}
		}

		decision, err := sim.NewPitDecisionScorer(cfg).Score(decisionInput)
		if err != nil {
			logrus.Fatalf("scoring decision: %v", err)
		}
		out, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			logrus.Fatalf("encoding decision: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	decideCmd.Flags().StringVar(&decideInputFile, "input", "", "Race snapshot YAML file")
	decideCmd.Flags().StringVar(&decideConfigFile, "config", "", "Engine tuning YAML file (defaults used when empty)")
	decideCmd.Flags().DurationVar(&decideTimeout, "timeout", 10*time.Second, "Simulation deadline")
	if err := decideCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(decideCmd)
}
