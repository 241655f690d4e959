package sim

import (
	"fmt"
	"math"
)

// Factor names in the decision breakdown.
const (
	FactorDegradation = "degradation"
	FactorTraffic     = "traffic"
	FactorSimulation  = "simulation"
	FactorOpponent    = "opponent"
	FactorWeather     = "weather"
)

const factorCount = 5

// Gap within which a rival's fresh stop threatens an undercut.
const undercutThreatGapSec = 25.0

// PitDecisionScorer turns the factor inputs into a categorical pit call.
// Scoring is pure: the same input always yields the same decision, and the
// scorer holds no state between calls.
type PitDecisionScorer struct {
	cfg     Config
	weather *WeatherModel
}

// NewPitDecisionScorer creates a scorer with the given configuration.
func NewPitDecisionScorer(cfg Config) *PitDecisionScorer {
	return &PitDecisionScorer{cfg: cfg, weather: NewWeatherModel(cfg)}
}

type factorResult struct {
	score       float64 // urgency to pit, 0 = stay out, 1 = box now
	available   bool
	explanation string
}

// Score evaluates the snapshot. Each factor scores pit urgency in [0,1];
// factors without data contribute nothing but shrink the availability
// multiplier applied to the final confidence.
func (s *PitDecisionScorer) Score(input DecisionInput) (*PitDecision, error) {
	if input.TotalLaps <= 0 || input.CurrentLap < 0 || input.CurrentLap > input.TotalLaps {
		return nil, invalidInputf("lap %d outside race of %d laps", input.CurrentLap, input.TotalLaps)
	}
	if !input.Compound.Valid() {
		return nil, invalidInputf("unknown compound %q", input.Compound)
	}
	if input.TireAge < 0 {
		return nil, invalidInputf("negative tire age %d", input.TireAge)
	}

	w := s.cfg.Scorer.Weights
	factors := map[string]factorResult{
		FactorDegradation: s.scoreDegradation(input),
		FactorTraffic:     s.scoreTraffic(input),
		FactorSimulation:  s.scoreSimulation(input),
		FactorOpponent:    s.scoreOpponents(input),
		FactorWeather:     s.scoreWeather(input),
	}
	weights := map[string]float64{
		FactorDegradation: w.Degradation,
		FactorTraffic:     w.Traffic,
		FactorSimulation:  w.Simulation,
		FactorOpponent:    w.Opponent,
		FactorWeather:     w.Weather,
	}

	breakdown := make(map[string]FactorScore, factorCount)
	var urgency float64
	available := 0
	// Fixed fold order keeps the weighted sum bit-for-bit reproducible.
	for _, name := range []string{FactorDegradation, FactorTraffic, FactorSimulation, FactorOpponent, FactorWeather} {
		res := factors[name]
		fs := FactorScore{Weight: weights[name], Explanation: res.explanation}
		if res.available {
			fs.Score = res.score
			fs.WeightedContribution = res.score * fs.Weight
			urgency += fs.WeightedContribution
			available++
		}
		breakdown[name] = fs
	}

	floor := s.cfg.Scorer.AvailabilityFloor
	availability := floor + float64(available)/factorCount*(1.0-floor)

	decision, certainty, recommended, reasoning := s.decide(input, urgency)
	confidence := clamp01(certainty * availability)
	// A critical cliff call stays a high-confidence call even on thin data.
	if decision == DecisionPitNow && input.Degradation != nil && input.Degradation.Critical {
		confidence = math.Max(confidence, s.cfg.Scorer.CriticalConfidence)
	}
	return &PitDecision{
		Decision:         decision,
		Confidence:       confidence,
		ConfidenceLevel:  BucketConfidence(confidence),
		FactorBreakdown:  breakdown,
		Reasoning:        reasoning,
		RecommendedLap:   recommended,
		DataAvailability: availability,
	}, nil
}

// decide applies the priority rules over the weighted urgency. Rules earlier
// in the chain win outright.
func (s *PitDecisionScorer) decide(input DecisionInput, urgency float64) (Decision, float64, *int, []string) {
	var reasoning []string
	nextLap := input.CurrentLap + 1

	if input.Degradation != nil && input.Degradation.Critical {
		reasoning = append(reasoning, "tire degradation is critical")
		return DecisionPitNow, math.Max(urgency, s.cfg.Scorer.CriticalConfidence), &nextLap, reasoning
	}
	if input.Simulation != nil && input.Simulation.UndercutGain > s.cfg.Scorer.UndercutMinGainSec {
		reasoning = append(reasoning, fmt.Sprintf("undercut projected to gain %.1fs", input.Simulation.UndercutGain))
		return DecisionPitNow, math.Max(urgency, 0.6), &nextLap, reasoning
	}
	criticalAge := s.cfg.Compounds[input.Compound].CriticalAge
	if input.TireAge >= criticalAge {
		reasoning = append(reasoning, fmt.Sprintf("tire age %d at or past the %s critical age %d", input.TireAge, input.Compound, criticalAge))
		return DecisionPitNow, math.Max(urgency, 0.6), &nextLap, reasoning
	}
	trendingUp := input.Degradation != nil && !input.Degradation.Fallback && input.Degradation.Rate >= s.cfg.Scorer.TrendRateThreshold
	if trendingUp && input.Traffic != nil && input.Traffic.NextClearLap != nil {
		reasoning = append(reasoning, "degradation is rising and a clear window opens later")
		lap := *input.Traffic.NextClearLap
		return DecisionPitLater, clamp01(0.4 + urgency/2.0), &lap, reasoning
	}

	reasoning = append(reasoning, "no pressing factor, tires have life left")
	var recommended *int
	if input.Simulation != nil && input.Simulation.PitWindow != nil {
		lap := input.Simulation.PitWindow.MostCommon
		recommended = &lap
	}
	return DecisionExtendStint, clamp01(1.0 - urgency), recommended, reasoning
}

func (s *PitDecisionScorer) scoreDegradation(input DecisionInput) factorResult {
	p := input.Degradation
	if p == nil {
		return factorResult{explanation: "no degradation profile"}
	}
	criticalAge := s.cfg.Compounds[input.Compound].CriticalAge
	ageTerm := clamp01(float64(input.TireAge) / float64(criticalAge))
	rateTerm := 0.0
	if s.cfg.Degradation.MaxRate > 0 {
		rateTerm = clamp01(p.Rate / s.cfg.Degradation.MaxRate)
	}
	score := clamp01(0.6*ageTerm + 0.4*rateTerm)
	if p.Critical {
		score = math.Max(score, 0.95)
		return factorResult{score: score, available: true,
			explanation: "degradation critical: cliff imminent"}
	}
	return factorResult{score: score, available: true,
		explanation: fmt.Sprintf("tire age %d of %d critical, wear rate %.4f", input.TireAge, criticalAge, p.Rate)}
}

// scoreTraffic: a clear pit exit argues for stopping now, a packed one for
// waiting.
func (s *PitDecisionScorer) scoreTraffic(input DecisionInput) factorResult {
	snap := input.Traffic
	if snap == nil {
		return factorResult{explanation: "no traffic estimate"}
	}
	score := clamp01(1.0 - snap.OverallDensity)
	if snap.ClearWindow {
		score = math.Max(score, 0.7)
		return factorResult{score: score, available: true,
			explanation: fmt.Sprintf("clear window now, density %.2f", snap.OverallDensity)}
	}
	return factorResult{score: score, available: true,
		explanation: fmt.Sprintf("traffic density %.2f, losing %.2fs per lap", snap.OverallDensity, snap.TimeLostPerLap)}
}

func (s *PitDecisionScorer) scoreSimulation(input DecisionInput) factorResult {
	run := input.Simulation
	if run == nil {
		return factorResult{explanation: "no simulation run"}
	}
	score := 0.3
	parts := "no strong signal"
	if run.UndercutGain > 0 {
		score += clamp01(run.UndercutGain/3.0) * 0.4
		parts = fmt.Sprintf("undercut gain %.1fs", run.UndercutGain)
	}
	if run.PitWindow != nil && input.CurrentLap >= run.PitWindow.Start-1 {
		score += 0.3
		parts += fmt.Sprintf(", pit window opens at lap %d", run.PitWindow.Start)
	}
	return factorResult{score: clamp01(score), available: true,
		explanation: fmt.Sprintf("simulated over %d trials: %s", run.TrialsCompleted, parts)}
}

func (s *PitDecisionScorer) scoreOpponents(input DecisionInput) factorResult {
	if len(input.Opponents) == 0 {
		return factorResult{explanation: "no opponent data"}
	}
	score := 0.2
	explanation := "no rival threat in range"
	for _, opp := range input.Opponents {
		if opp.JustPitted && math.Abs(opp.GapSec) <= undercutThreatGapSec {
			score = math.Max(score, 0.9)
			explanation = fmt.Sprintf("%s just pitted %.1fs away, undercut threat", opp.DriverID, math.Abs(opp.GapSec))
			continue
		}
		if opp.GapSec > 0 && opp.TireAge > input.TireAge+5 {
			score = math.Max(score, 0.5)
			explanation = fmt.Sprintf("%s ahead on tires %d laps older", opp.DriverID, opp.TireAge-input.TireAge)
		}
	}
	return factorResult{score: score, available: true, explanation: explanation}
}

func (s *PitDecisionScorer) scoreWeather(input DecisionInput) factorResult {
	if input.Weather == nil {
		return factorResult{explanation: "no weather data"}
	}
	severity := s.weather.Severity(input.Weather, input.Compound)
	explanation := "conditions stable"
	if input.Weather.Rainfall > 0 {
		explanation = fmt.Sprintf("rainfall %.1f mm/h", input.Weather.Rainfall)
	}
	return factorResult{score: severity, available: true, explanation: explanation}
}
