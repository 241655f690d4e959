package sim

import (
	"context"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// Spacing assumed between consecutive grid positions when no gap data
	// exists, and the confidence penalty per driver simulated with a
	// substituted neutral twin.
	gridGapSec         = 1.2
	missingTwinPenalty = 0.05
	freshTireLaps      = 2
)

// RaceSimulator replays the remaining race laps across many independent
// trials and aggregates them into a SimulationRun. Trials fan out over a
// bounded worker pool; each trial owns a derived RNG, so the aggregate is
// identical for a given seed regardless of scheduling.
type RaceSimulator struct {
	cfg      Config
	cache    *ResultCache
	traffic  *TrafficModel
	overtake *OvertakeModel
	weather  *WeatherModel
	newSeed  func() int64
	now      func() time.Time
}

// NewRaceSimulator creates a simulator. cache may be nil to disable caching.
func NewRaceSimulator(cfg Config, cache *ResultCache) *RaceSimulator {
	return &RaceSimulator{
		cfg:      cfg,
		cache:    cache,
		traffic:  NewTrafficModel(cfg),
		overtake: NewOvertakeModel(cfg),
		weather:  NewWeatherModel(cfg),
		newSeed:  func() int64 { return time.Now().UnixNano() },
		now:      time.Now,
	}
}

// trialDriver is one driver's mutable state inside a single trial.
type trialDriver struct {
	id          string
	twin        *DriverTwin
	compound    Compound
	tireAge     int
	basePace    float64
	cumTime     float64
	lastLapSec  float64
	trafficLoss float64
	pits        []int
}

// Simulate runs the Monte Carlo replay for the input. If the context deadline
// expires mid-run, the aggregate over the completed trials is returned with
// Partial set; ErrTimeout is returned only when no trial finished at all.
func (s *RaceSimulator) Simulate(ctx context.Context, input *SimulationInput) (*SimulationRun, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	key := InputKey(input)
	if s.cache != nil {
		if cached := s.cache.Get(key); cached != nil {
			logrus.WithField("race_id", input.RaceID).Debug("simulation cache hit")
			return cached, nil
		}
	}

	trials := s.cfg.ClampTrials(input.Trials)
	seed := s.newSeed()
	if input.Seed != nil {
		seed = *input.Seed
	}
	simKey := SimulationKey(seed)

	twins := make(map[string]*DriverTwin, len(input.Drivers))
	var missing []string
	for _, d := range input.Drivers {
		if d.Twin != nil {
			twins[d.DriverID] = d.Twin
			continue
		}
		twins[d.DriverID] = NeutralTwin(s.cfg, d.DriverID, d.Compound)
		missing = append(missing, d.DriverID)
	}
	sort.Strings(missing)

	trafficLoss := s.baseTrafficLoss(input)

	workers := runtime.NumCPU()
	if workers > trials {
		workers = trials
	}
	type trialResult struct {
		n   int
		out TrialOutcome
	}
	deadline, hasDeadline := ctx.Deadline()
	expired := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return hasDeadline && !s.now().Before(deadline)
	}
	jobs := make(chan int)
	results := make(chan trialResult, trials)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Once expired, keep draining jobs so the feeder never blocks.
			for n := range jobs {
				if expired() {
					continue
				}
				results <- trialResult{n: n, out: s.runTrial(TrialRNG(simKey, n), input, twins, trafficLoss)}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for n := 0; n < trials; n++ {
			select {
			case jobs <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()
	close(results)

	// Fold in trial order so float accumulation never depends on scheduling.
	byTrial := make([]*TrialOutcome, trials)
	for r := range results {
		out := r.out
		byTrial[r.n] = &out
	}
	outcomes := make([]TrialOutcome, 0, trials)
	for _, out := range byTrial {
		if out != nil {
			outcomes = append(outcomes, *out)
		}
	}
	if len(outcomes) == 0 {
		return nil, ErrTimeout
	}

	run := s.aggregate(input, outcomes, twins, seed, trials)
	run.MissingTwins = missing
	if run.Partial {
		logrus.WithFields(logrus.Fields{
			"race_id":   input.RaceID,
			"completed": run.TrialsCompleted,
			"requested": trials,
		}).Warn("simulation deadline hit, returning partial aggregate")
	} else if s.cache != nil {
		s.cache.Put(key, run)
	}
	return run, nil
}

func (s *RaceSimulator) validate(input *SimulationInput) error {
	if input == nil {
		return invalidInputf("nil input")
	}
	if len(input.Drivers) == 0 {
		return invalidInputf("no drivers")
	}
	if input.TotalLaps <= 0 {
		return invalidInputf("total_laps must be positive, got %d", input.TotalLaps)
	}
	if input.CurrentLap < 0 || input.CurrentLap >= input.TotalLaps {
		return invalidInputf("current_lap %d outside race of %d laps", input.CurrentLap, input.TotalLaps)
	}
	seen := make(map[string]bool, len(input.Drivers))
	for _, d := range input.Drivers {
		if d.DriverID == "" {
			return invalidInputf("driver with empty id")
		}
		if seen[d.DriverID] {
			return invalidInputf("duplicate driver %s", d.DriverID)
		}
		seen[d.DriverID] = true
		if !d.Compound.Valid() {
			return invalidInputf("driver %s: unknown compound %q", d.DriverID, d.Compound)
		}
		if d.TireAge < 0 {
			return invalidInputf("driver %s: negative tire age %d", d.DriverID, d.TireAge)
		}
		if d.BasePace < 0 {
			return invalidInputf("driver %s: negative base pace %.3f", d.DriverID, d.BasePace)
		}
	}
	for id, lap := range input.ForcedPitLaps {
		if !seen[id] {
			return invalidInputf("forced pit for unknown driver %s", id)
		}
		if lap <= input.CurrentLap || lap > input.TotalLaps {
			return invalidInputf("forced pit lap %d for %s outside remaining race", lap, id)
		}
	}
	return nil
}

// baseTrafficLoss precomputes each driver's current per-lap traffic loss.
// Trials decay it as the field spreads; drivers absent from the field state
// lose nothing.
func (s *RaceSimulator) baseTrafficLoss(input *SimulationInput) map[string]float64 {
	loss := make(map[string]float64, len(input.Drivers))
	if input.Field == nil {
		return loss
	}
	for _, d := range input.Drivers {
		snap, err := s.traffic.Estimate(*input.Field, d.DriverID)
		if err != nil {
			continue
		}
		loss[d.DriverID] = snap.TimeLostPerLap
	}
	return loss
}

// runTrial replays the remaining laps once.
func (s *RaceSimulator) runTrial(rng *rand.Rand, input *SimulationInput, twins map[string]*DriverTwin, trafficLoss map[string]float64) TrialOutcome {
	sc := s.cfg.Simulator
	drivers := make([]*trialDriver, len(input.Drivers))
	for i, d := range input.Drivers {
		twin := twins[d.DriverID]
		base := d.BasePace
		if base <= 0 && twin.Degradation != nil && twin.Degradation.BasePace > 0 {
			base = twin.Degradation.BasePace
		}
		if base <= 0 {
			base = sc.BaseLapSec
		}
		drivers[i] = &trialDriver{
			id:          d.DriverID,
			twin:        twin,
			compound:    d.Compound,
			tireAge:     d.TireAge,
			basePace:    base,
			cumTime:     float64(d.Position-1) * gridGapSec,
			trafficLoss: trafficLoss[d.DriverID],
		}
	}

	for lap := input.CurrentLap + 1; lap <= input.TotalLaps; lap++ {
		lapsLeft := input.TotalLaps - lap
		for _, d := range drivers {
			if s.shouldPit(rng, d, input, lap, lapsLeft) {
				s.pit(rng, d, lap)
			}
			d.tireAge++
			d.cumTime += s.lapTime(rng, d, lap, input)
		}
		s.resolveCombat(rng, drivers)
	}

	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].cumTime != drivers[j].cumTime {
			return drivers[i].cumTime < drivers[j].cumTime
		}
		return drivers[i].id < drivers[j].id
	})
	out := TrialOutcome{
		FinishOrder: make([]string, len(drivers)),
		PitLaps:     make(map[string][]int, len(drivers)),
		TotalTimes:  make(map[string]float64, len(drivers)),
	}
	for i, d := range drivers {
		out.FinishOrder[i] = d.id
		out.PitLaps[d.id] = d.pits
		out.TotalTimes[d.id] = d.cumTime
	}
	return out
}

func (s *RaceSimulator) shouldPit(rng *rand.Rand, d *trialDriver, input *SimulationInput, lap, lapsLeft int) bool {
	if forced, ok := input.ForcedPitLaps[d.id]; ok {
		return lap == forced
	}
	if lapsLeft < s.cfg.Simulator.MinStintLapsLeft {
		return false
	}
	profile := d.twin.Degradation
	if profile != nil && profile.CliffLap != nil && d.tireAge >= *profile.CliffLap {
		return true
	}
	// Jitter the trigger a little so pit laps spread across trials.
	threshold := s.cfg.Compounds[d.compound].CriticalAge + rng.Intn(3) - 1
	return d.tireAge >= threshold
}

func (s *RaceSimulator) pit(rng *rand.Rand, d *trialDriver, lap int) {
	sc := s.cfg.Simulator
	loss := sc.PitLossSec + (rng.Float64()*2-1)*sc.PitLossJitterSec
	d.cumTime += loss
	d.tireAge = 0
	if rng.Float64() < sc.HarderCompoundProb {
		d.compound = d.compound.Harder()
	}
	d.pits = append(d.pits, lap)
}

func (s *RaceSimulator) lapTime(rng *rand.Rand, d *trialDriver, lap int, input *SimulationInput) float64 {
	sc := s.cfg.Simulator
	t := d.basePace * s.degradationFactor(d)
	t *= s.weather.PaceModifier(input.Weather, d.compound)
	t *= 1.0 + d.twin.FatigueFactor*float64(lap)/float64(input.TotalLaps)
	if d.tireAge <= freshTireLaps {
		t *= 1.0 - sc.FreshTireGain
	}
	if d.trafficLoss > 0 {
		decay := 1.0 - s.cfg.Traffic.DecayPerLap*float64(lap-input.CurrentLap)
		if decay > 0 {
			t += d.trafficLoss * decay
		}
	}
	noise := (1.0-d.twin.ConsistencyIndex)*sc.LapNoiseScale + 0.05
	t += rng.NormFloat64() * noise
	if t < sc.MinLapSec {
		t = sc.MinLapSec
	}
	d.lastLapSec = t
	return t
}

// degradationFactor is the pace multiplier from tire wear at the driver's
// current age and compound. The fitted profile only speaks for its own
// compound; other compounds fall back to the configured base rates.
func (s *RaceSimulator) degradationFactor(d *trialDriver) float64 {
	profile := d.twin.Degradation
	if profile != nil && profile.Compound == d.compound && profile.BasePace > 0 {
		return profile.PredictLapTime(d.tireAge) / profile.BasePace
	}
	return 1.0 + s.cfg.Compounds[d.compound].BaseRate*float64(d.tireAge)
}

// resolveCombat lets each car inside the combat window attack the car ahead
// once per lap.
func (s *RaceSimulator) resolveCombat(rng *rand.Rand, drivers []*trialDriver) {
	order := make([]*trialDriver, len(drivers))
	copy(order, drivers)
	sort.Slice(order, func(i, j int) bool { return order[i].cumTime < order[j].cumTime })
	for i := 1; i < len(order); i++ {
		att, def := order[i], order[i-1]
		gap := att.cumTime - def.cumTime
		if gap > s.cfg.Overtake.WindowSec {
			continue
		}
		speedAdv := 0.0
		if def.lastLapSec > 0 {
			speedAdv = (def.lastLapSec - att.lastLapSec) / def.lastLapSec
		}
		p := s.overtake.Probability(speedAdv, def.tireAge-att.tireAge)
		_, delta := s.overtake.Attempt(rng, p)
		att.cumTime += delta
	}
}

// aggregate folds the trial outcomes into the run. Everything here is
// order-independent over the outcomes.
func (s *RaceSimulator) aggregate(input *SimulationInput, outcomes []TrialOutcome, twins map[string]*DriverTwin, seed int64, requested int) *SimulationRun {
	completed := len(outcomes)
	posCounts := make(map[string]map[int]int, len(input.Drivers))
	times := make(map[string][]float64, len(input.Drivers))
	for _, d := range input.Drivers {
		posCounts[d.DriverID] = make(map[int]int)
	}
	focal := input.Drivers[0]
	pitLapCounts := make(map[int]int)

	for _, out := range outcomes {
		for i, id := range out.FinishOrder {
			posCounts[id][i+1]++
		}
		for id, t := range out.TotalTimes {
			times[id] = append(times[id], t)
		}
		for _, lap := range out.PitLaps[focal.DriverID] {
			pitLapCounts[lap]++
		}
	}

	run := &SimulationRun{
		RunID:           uuid.NewString(),
		RaceID:          input.RaceID,
		Seed:            seed,
		TrialsRequested: requested,
		TrialsCompleted: completed,
		CurrentLap:      input.CurrentLap,
		TotalLaps:       input.TotalLaps,
		PositionProbs:   make(map[string]map[int]float64, len(input.Drivers)),
		MostLikely:      make(map[string]PositionEstimate, len(input.Drivers)),
		TimeStats:       make(map[string]TimeStats, len(input.Drivers)),
		Outcomes:        make(map[string]OutcomeProbs, len(input.Drivers)),
		Partial:         completed < requested,
		CreatedAt:       s.now(),
	}

	n := float64(completed)
	for _, d := range input.Drivers {
		id := d.DriverID
		probs := make(map[int]float64, len(posCounts[id]))
		best := PositionEstimate{}
		var win, podium, points float64
		// Walk positions in order so float accumulation and the most-likely
		// tie-break are deterministic.
		for pos := 1; pos <= len(input.Drivers); pos++ {
			count := posCounts[id][pos]
			if count == 0 {
				continue
			}
			p := float64(count) / n
			probs[pos] = p
			if p > best.Probability {
				best = PositionEstimate{Position: pos, Probability: p}
			}
			if pos == 1 {
				win = p
			}
			if pos <= 3 {
				podium += p
			}
			if pos <= s.cfg.Simulator.PointsPositions {
				points += p
			}
		}
		run.PositionProbs[id] = probs
		run.MostLikely[id] = best
		run.Outcomes[id] = OutcomeProbs{Win: win, Podium: podium, Points: points}
		ts := times[id]
		lo, hi := minMax(ts)
		run.TimeStats[id] = TimeStats{
			Mean:   mean(ts),
			Median: median(ts),
			StdDev: stdDev(ts),
			Min:    lo,
			Max:    hi,
		}
	}

	run.TireCliffLap = s.projectCliffLap(input, twins[focal.DriverID], focal)
	run.PitWindow = s.pitWindow(input, pitLapCounts)
	run.UndercutGain, run.OvercutGain = s.strategyGains(twins[focal.DriverID], focal)
	run.Traffic = s.trafficVerdict(input)
	run.Confidence = s.runConfidence(input, twins, completed, requested)
	return run
}

// projectCliffLap converts the fitted cliff tire age into a race lap.
func (s *RaceSimulator) projectCliffLap(input *SimulationInput, twin *DriverTwin, focal DriverRaceState) *int {
	if twin.Degradation == nil || twin.Degradation.CliffLap == nil {
		return nil
	}
	lap := input.CurrentLap + (*twin.Degradation.CliffLap - focal.TireAge)
	if lap <= input.CurrentLap {
		lap = input.CurrentLap + 1
	}
	if lap > input.TotalLaps {
		return nil
	}
	return &lap
}

func (s *RaceSimulator) pitWindow(input *SimulationInput, pitLapCounts map[int]int) *PitWindow {
	if len(pitLapCounts) == 0 {
		return nil
	}
	mostCommon, bestCount := 0, 0
	for lap, count := range pitLapCounts {
		if count > bestCount || (count == bestCount && lap < mostCommon) {
			mostCommon, bestCount = lap, count
		}
	}
	w := &PitWindow{Start: mostCommon - 2, End: mostCommon + 2, MostCommon: mostCommon}
	if w.Start <= input.CurrentLap {
		w.Start = input.CurrentLap + 1
	}
	if w.End > input.TotalLaps {
		w.End = input.TotalLaps
	}
	return w
}

// strategyGains estimates undercut and overcut time deltas in seconds from
// the focal driver's wear curve and current traffic. Positive means viable.
func (s *RaceSimulator) strategyGains(twin *DriverTwin, focal DriverRaceState) (undercut, overcut float64) {
	profile := twin.Degradation
	if profile == nil || profile.BasePace <= 0 {
		return 0, 0
	}
	perLapLoss := profile.PredictLapTime(focal.TireAge+1) - profile.PredictLapTime(freshTireLaps)
	undercut = 2.0*perLapLoss + profile.BasePace*s.cfg.Simulator.FreshTireGain
	overcut = -perLapLoss
	return undercut, overcut
}

func (s *RaceSimulator) trafficVerdict(input *SimulationInput) TrafficVerdict {
	if input.Field == nil {
		return TrafficVerdict{Clear: true}
	}
	snap, err := s.traffic.Estimate(*input.Field, input.Drivers[0].DriverID)
	if err != nil {
		return TrafficVerdict{Clear: true}
	}
	return TrafficVerdict{
		Busy:    snap.OverallDensity >= s.cfg.Traffic.ClearDensity,
		Clear:   snap.ClearWindow,
		Density: snap.OverallDensity,
	}
}

func (s *RaceSimulator) runConfidence(input *SimulationInput, twins map[string]*DriverTwin, completed, requested int) float64 {
	var sum float64
	var missing int
	for _, d := range input.Drivers {
		twin := twins[d.DriverID]
		sum += twin.Confidence
		if twin.Neutral {
			missing++
		}
	}
	conf := sum / float64(len(input.Drivers))
	conf *= float64(completed) / float64(requested)
	conf -= float64(missing) * missingTwinPenalty
	return clamp01(conf)
}
