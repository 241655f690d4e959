package sim

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

type cacheEntry struct {
	run      *SimulationRun
	storedAt time.Time
}

// ResultCache holds recent simulation aggregates keyed by input fingerprint.
// Entries expire after the configured TTL and are evicted lazily on access.
// Safe for concurrent use.
type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewResultCache creates a cache with the given time-to-live.
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached run for the key, or nil when absent or expired.
func (c *ResultCache) Get(key string) *SimulationRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil
	}
	return entry.run
}

// Put stores a run under the key, replacing any previous entry.
func (c *ResultCache) Put(key string, run *SimulationRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{run: run, storedAt: c.now()}
}

// Len returns the number of entries, expired ones included.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InputKey fingerprints a simulation input. Two inputs that would replay
// identically hash identically: driver order matters (it is part of the
// input), map iteration does not.
func InputKey(input *SimulationInput) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d|%d|", input.RaceID, input.TotalLaps, input.CurrentLap, input.Trials)
	if input.Seed != nil {
		fmt.Fprintf(h, "s%d|", *input.Seed)
	}
	for _, d := range input.Drivers {
		fmt.Fprintf(h, "d:%s,%d,%d,%s,%.4f|", d.DriverID, d.Position, d.TireAge, d.Compound, d.BasePace)
		if d.Twin != nil {
			fmt.Fprintf(h, "t:%.4f,%.4f,%.4f|", d.Twin.ConsistencyIndex, d.Twin.Confidence, d.Twin.FatigueFactor)
			if d.Twin.PaceVector != nil {
				fmt.Fprintf(h, "pv:%.6f|", *d.Twin.PaceVector)
			}
			if p := d.Twin.Degradation; p != nil {
				fmt.Fprintf(h, "g:%s,%s,%.6f,%.4f,%.4f|", p.Compound, p.Curve, p.Rate, p.Exponent, p.BasePace)
				if p.CliffLap != nil {
					fmt.Fprintf(h, "cl:%d|", *p.CliffLap)
				}
			}
		}
	}
	if input.Field != nil {
		fmt.Fprintf(h, "fl:%d|", input.Field.Lap)
		for _, car := range input.Field.Cars {
			fmt.Fprintf(h, "c:%s,%d,%s,%.3f|", car.DriverID, car.Position, car.Sector, car.GapAheadSec)
		}
	}
	if input.Weather != nil {
		fmt.Fprintf(h, "w:%.2f,%.2f,%.2f,%.2f|", input.Weather.TrackTempC, input.Weather.AmbientTempC, input.Weather.Humidity, input.Weather.Rainfall)
	}
	if len(input.ForcedPitLaps) > 0 {
		ids := make([]string, 0, len(input.ForcedPitLaps))
		for id := range input.ForcedPitLaps {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(h, "f:%s=%d|", id, input.ForcedPitLaps[id])
		}
	}
	return fmt.Sprintf("%s:%x", input.RaceID, h.Sum64())
}
