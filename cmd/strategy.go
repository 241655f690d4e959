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
	strategyInputFile  string
	strategyConfigFile string
	strategyTimeout    time.Duration
	candidateLaps      []int // Pit laps to evaluate, empty scans the next laps
)

// strategyCmd scans candidate pit laps for the first driver in the snapshot.
var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Evaluate candidate pit laps for the lead driver of the snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadEngineConfig(strategyConfigFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		input, err := LoadRaceInput(strategyInputFile, cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), strategyTimeout)
		defer cancel()

		simulator := sim.NewRaceSimulator(cfg, sim.NewResultCache(cfg.Cache.TTL()))
		optimizer := sim.NewStrategyOptimizer(cfg, simulator)
		result, err := optimizer.Optimize(ctx, input, candidateLaps)
		if err != nil {
			logrus.Fatalf("strategy scan failed: %v", err)
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logrus.Fatalf("encoding result: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	strategyCmd.Flags().StringVar(&strategyInputFile, "input", "", "Race snapshot YAML file")
	strategyCmd.Flags().StringVar(&strategyConfigFile, "config", "", "Engine tuning YAML file (defaults used when empty)")
	strategyCmd.Flags().IntSliceVar(&candidateLaps, "laps", nil, "Comma-separated candidate pit laps")
	strategyCmd.Flags().DurationVar(&strategyTimeout, "timeout", 60*time.Second, "Scan deadline")
	if err := strategyCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(strategyCmd)
}
