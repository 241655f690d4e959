package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the master seed of a simulation run. Two runs with the
// same SimulationKey and identical inputs MUST produce identical aggregates.
type SimulationKey int64

// Subsystem names for derived RNG streams.
const (
	SubsystemTrial    = "trial"
	SubsystemStrategy = "strategy"
)

// DeriveSeed returns the seed for a named subsystem stream. Derivation is
// order-independent: masterSeed XOR fnv1a64(name), so adding or removing
// streams never perturbs the others.
func DeriveSeed(key SimulationKey, name string) int64 {
	return int64(key) ^ fnv1a64(name)
}

// TrialRNG returns a fresh, independently seeded RNG for trial n. Each trial
// owns its RNG outright, so trials can run on any goroutine in any order and
// still replay identically for a given key.
func TrialRNG(key SimulationKey, n int) *rand.Rand {
	seed := DeriveSeed(key, fmt.Sprintf("%s_%d", SubsystemTrial, n))
	return rand.New(rand.NewSource(seed))
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
