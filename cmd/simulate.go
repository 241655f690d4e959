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
	inputFile  string // Race snapshot YAML file
	configFile string // Engine tuning YAML file, empty for defaults
	trials     int    // Trial count override, 0 keeps the file's value
	seed       int64  // Seed override, takes effect with --seed set
	timeout    time.Duration
)

// simulateCmd runs the Monte Carlo race replay and prints the aggregate.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay the remaining race laps across Monte Carlo trials",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadEngineConfig(configFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		input, err := LoadRaceInput(inputFile, cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if trials > 0 {
			input.Trials = trials
		}
		if cmd.Flags().Changed("seed") {
			input.Seed = &seed
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		simulator := sim.NewRaceSimulator(cfg, sim.NewResultCache(cfg.Cache.TTL()))
		run, err := simulator.Simulate(ctx, input)
		if err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		logrus.Infof("Simulated %d trials in %v", run.TrialsCompleted, time.Since(start))

		out, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			logrus.Fatalf("encoding result: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	simulateCmd.Flags().StringVar(&inputFile, "input", "", "Race snapshot YAML file")
	simulateCmd.Flags().StringVar(&configFile, "config", "", "Engine tuning YAML file (defaults used when empty)")
	simulateCmd.Flags().IntVar(&trials, "trials", 0, "Trial count override")
	simulateCmd.Flags().Int64Var(&seed, "seed", 0, "Seed override for reproducible runs")
	simulateCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Simulation deadline")
	if err := simulateCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(simulateCmd)
}
