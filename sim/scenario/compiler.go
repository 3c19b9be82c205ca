// Deterministic scenario compilation: turns the declarative movement
// schedule into one immutable AgentProfile per unit of count. All parameter
// draws come from the single run stream in declaration order, so the same
// seed and spec reproduce a bit-identical population.

package scenario

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/pedflow-sim/pedflow-sim/sim"
)

// WholeScenario selects every period; departure times normalize relative to
// the earliest period start.
const WholeScenario = -1

// DefaultSpreadS is the departure-flattening window applied when a movement
// declares none.
const DefaultSpreadS = 60.0

// chainState tracks one chain's agents while later legs are appended.
type chainState struct {
	agents      []*sim.AgentProfile
	lastDeparts []float64
}

// Compile emits agent profiles for the selected period (or WholeScenario).
// Chained movements extend the same agents' schedules with cumulative delay
// offsets; standalone movements each yield independent single-leg agents.
func Compile(spec *Spec, stream *rand.Rand, periodIndex int) ([]*sim.AgentProfile, error) {
	periods := spec.Periods
	if periodIndex != WholeScenario {
		if periodIndex < 0 || periodIndex >= len(spec.Periods) {
			return nil, fmt.Errorf("period index %d out of range (have %d periods)", periodIndex, len(spec.Periods))
		}
		periods = spec.Periods[periodIndex : periodIndex+1]
	}

	// Departure normalization: the selected period's own start for a
	// single-period run, the earliest start for a whole-scenario run.
	base := math.Inf(1)
	starts := make([]float64, len(periods))
	for i, p := range periods {
		t, err := ParseClock(p.StartTime)
		if err != nil {
			return nil, err
		}
		starts[i] = t
		if t < base {
			base = t
		}
	}

	samplers, err := resolveBehaviour(spec.Behaviour, stream)
	if err != nil {
		return nil, err
	}

	var profiles []*sim.AgentProfile
	chains := make(map[string]*chainState)
	seq := 0

	for pi, period := range periods {
		offset := starts[pi] - base
		for _, mv := range period.Movements {
			if mv.ChainID != "" {
				if st, ok := chains[mv.ChainID]; ok {
					appendChainLeg(st, mv, period.ID)
					continue
				}
			}

			spread := mv.SpreadS
			if spread <= 0 {
				spread = DefaultSpreadS
			}
			created := make([]*sim.AgentProfile, mv.Count)
			departs := make([]float64, mv.Count)
			for i := 0; i < mv.Count; i++ {
				p := drawProfile(samplers, stream, mv.Population, seq)
				seq++
				// Stratified flattening: unit i departs in slot i of the
				// spread window, jittered within the slot. Bounds any bin of
				// width b to ceil(count·b/spread)+1 departures.
				depart := offset + (float64(i)+stream.Float64())*spread/float64(mv.Count)
				p.Schedule = []sim.ScheduleEntry{{
					Period:      period.ID,
					Origin:      mv.Origin,
					Destination: mv.Destination,
					DepartTime:  depart,
				}}
				created[i] = p
				departs[i] = depart
				profiles = append(profiles, p)
			}
			if mv.ChainID != "" {
				chains[mv.ChainID] = &chainState{agents: created, lastDeparts: departs}
			}
		}
	}
	return profiles, nil
}

// appendChainLeg extends every agent of a chain with the movement's leg,
// departing DelayS after the agent's previous leg.
func appendChainLeg(st *chainState, mv Movement, periodID string) {
	for i, agent := range st.agents {
		depart := st.lastDeparts[i] + mv.DelayS
		agent.Schedule = append(agent.Schedule, sim.ScheduleEntry{
			Period:      periodID,
			Origin:      mv.Origin,
			Destination: mv.Destination,
			DepartTime:  depart,
		})
		st.lastDeparts[i] = depart
	}
}

type behaviourSamplers struct {
	speed           Sampler
	stairsPenalty   Sampler
	optimalityBeta  Sampler
	rerouteInterval Sampler
	detourProb      Sampler
}

func resolveBehaviour(b Behaviour, src rand.Source) (*behaviourSamplers, error) {
	s := &behaviourSamplers{}
	var err error
	if s.speed, err = b.Speed.Resolve(src); err != nil {
		return nil, fmt.Errorf("behaviour.speed: %w", err)
	}
	if s.stairsPenalty, err = b.StairsPenalty.Resolve(src); err != nil {
		return nil, fmt.Errorf("behaviour.stairs_penalty: %w", err)
	}
	if s.optimalityBeta, err = b.OptimalityBeta.Resolve(src); err != nil {
		return nil, fmt.Errorf("behaviour.optimality_beta: %w", err)
	}
	if s.rerouteInterval, err = b.RerouteIntervalTick.Resolve(src); err != nil {
		return nil, fmt.Errorf("behaviour.reroute_interval_ticks: %w", err)
	}
	if s.detourProb, err = b.DetourProbability.Resolve(src); err != nil {
		return nil, fmt.Errorf("behaviour.detour_probability: %w", err)
	}
	return s, nil
}

// drawProfile consumes the stream in a fixed order: speed, stairs penalty,
// optimality beta, reroute interval, detour probability. The order is part
// of the determinism contract.
func drawProfile(s *behaviourSamplers, stream *rand.Rand, population string, seq int) *sim.AgentProfile {
	role := population
	if role == "" {
		role = "agent"
	}
	speed := clamp(s.speed.Sample(), 0.3, 3.0)
	stairs := math.Max(0, s.stairsPenalty.Sample())
	beta := math.Max(0, s.optimalityBeta.Sample())
	interval := int(math.Max(0, math.Round(s.rerouteInterval.Sample())))
	detour := clamp(s.detourProb.Sample(), 0, 1)
	return &sim.AgentProfile{
		ID:                   fmt.Sprintf("%s-%04d", role, seq),
		Role:                 role,
		SpeedBase:            speed,
		StairsPenalty:        stairs,
		OptimalityBeta:       beta,
		RerouteIntervalTicks: interval,
		DetourProbability:    detour,
	}
}

// EngineConfig derives the engine parameters the spec pins down, leaving
// the rest at their defaults.
func (s *Spec) EngineConfig() sim.EngineConfig {
	cfg := sim.DefaultEngineConfig()
	cfg.TickSeconds = s.TickSeconds
	cfg.TransitionWindowS = s.TransitionWindowS
	return cfg
}
