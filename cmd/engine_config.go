package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/gridrival/racesim/sim"
)

// LoadEngineConfig returns the engine defaults overlaid with the YAML file at
// path, or the plain defaults when path is empty. Parsing is strict: unknown
// keys are errors, so typos in tuning files fail loudly instead of silently
// keeping a default.
func LoadEngineConfig(path string) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading engine config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating engine config: %w", err)
	}
	return cfg, nil
}
