package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sim "github.com/gridrival/racesim/sim"
)

var (
	twinInputFile  string // Driver history YAML file
	twinConfigFile string // Engine tuning YAML file, empty for defaults
)

// twinCmd builds a driver twin from a lap history file and prints it.
var twinCmd = &cobra.Command{
	Use:   "twin",
	Short: "Build a driver twin from a lap history",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadEngineConfig(twinConfigFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		data, err := os.ReadFile(twinInputFile)
		if err != nil {
			logrus.Fatalf("reading driver history: %v", err)
		}
		var in DriverInput
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&in); err != nil {
			logrus.Fatalf("parsing driver history: %v", err)
		}

		twin, err := sim.NewTwinBuilder(cfg).Build(in.Laps, in.Telemetry, in.Compound)
		if err != nil {
			logrus.Fatalf("building twin: %v", err)
		}
		out, err := json.MarshalIndent(twin, "", "  ")
		if err != nil {
			logrus.Fatalf("encoding twin: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	twinCmd.Flags().StringVar(&twinInputFile, "input", "", "Driver history YAML file")
	twinCmd.Flags().StringVar(&twinConfigFile, "config", "", "Engine tuning YAML file (defaults used when empty)")
	if err := twinCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(twinCmd)
}
