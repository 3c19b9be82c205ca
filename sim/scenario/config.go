// Package scenario declares the movement schedule format and compiles it
// into concrete agent profiles. Compilation is deterministic: the same seed
// and spec reproduce a bit-identical agent population and ordering.
package scenario

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pedflow-sim/pedflow-sim/sim"
)

// Spec is the top-level YAML scenario document.
type Spec struct {
	RandomSeed        int64     `yaml:"random_seed"`
	TickSeconds       float64   `yaml:"tick_seconds"`
	TransitionWindowS float64   `yaml:"transition_window_s"`
	Periods           []Period  `yaml:"periods"`
	Behaviour         Behaviour `yaml:"behaviour"`
}

// Period is a named time window containing movement declarations.
type Period struct {
	ID        string     `yaml:"id"`
	StartTime string     `yaml:"start_time"` // "HH:MM"
	Movements []Movement `yaml:"movements"`
}

// Movement declares a flow of Count agents from Origin to Destination.
// Movements sharing a ChainID form one multi-leg journey per agent, linked
// in declaration order with DelayS between consecutive legs. SpreadS is the
// window over which the Count departures are flattened (default 60 s).
type Movement struct {
	Population  string  `yaml:"population"`
	Count       int     `yaml:"count"`
	Origin      string  `yaml:"origin"`
	Destination string  `yaml:"destination"`
	ChainID     string  `yaml:"chain_id"`
	DelayS      float64 `yaml:"delay_s"`
	SpreadS     float64 `yaml:"spread_s"`
}

// Behaviour holds the per-parameter distribution specs agents are drawn
// from: walking speed (m/s), stairs routing penalty, softmax optimality
// beta, periodic reroute interval (ticks), and detour probability (clamped
// to [0,1] at compile time).
type Behaviour struct {
	Speed               Dist `yaml:"speed"`
	StairsPenalty       Dist `yaml:"stairs_penalty"`
	OptimalityBeta      Dist `yaml:"optimality_beta"`
	RerouteIntervalTick Dist `yaml:"reroute_interval_ticks"`
	DetourProbability   Dist `yaml:"detour_probability"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scenario document.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, &sim.ValidationError{Issues: []string{fmt.Sprintf("parsing scenario: %v", err)}}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the scenario for load-time fatal problems.
func (s *Spec) Validate() error {
	verr := &sim.ValidationError{}
	if s.TickSeconds <= 0 {
		verr.Addf("tick_seconds must be > 0, got %v", s.TickSeconds)
	}
	if s.TransitionWindowS <= 0 {
		verr.Addf("transition_window_s must be > 0, got %v", s.TransitionWindowS)
	}
	if len(s.Periods) == 0 {
		verr.Addf("scenario has no periods")
	}

	chainCounts := make(map[string]int)
	for pi, period := range s.Periods {
		if _, err := ParseClock(period.StartTime); err != nil {
			verr.Addf("period %d (%s): %v", pi, period.ID, err)
		}
		for mi, mv := range period.Movements {
			if mv.Count < 1 {
				verr.Addf("period %s movement %d: count must be >= 1, got %d", period.ID, mi, mv.Count)
			}
			if mv.Origin == "" || mv.Destination == "" {
				verr.Addf("period %s movement %d: origin and destination are required", period.ID, mi)
			}
			if mv.SpreadS < 0 {
				verr.Addf("period %s movement %d: spread_s must be >= 0, got %v", period.ID, mi, mv.SpreadS)
			}
			if mv.ChainID != "" {
				if prev, seen := chainCounts[mv.ChainID]; seen && prev != mv.Count {
					verr.Addf("chain %q: leg counts differ (%d vs %d)", mv.ChainID, prev, mv.Count)
				} else {
					chainCounts[mv.ChainID] = mv.Count
				}
			}
		}
	}

	for name, d := range map[string]Dist{
		"speed":                  s.Behaviour.Speed,
		"stairs_penalty":         s.Behaviour.StairsPenalty,
		"optimality_beta":        s.Behaviour.OptimalityBeta,
		"reroute_interval_ticks": s.Behaviour.RerouteIntervalTick,
		"detour_probability":     s.Behaviour.DetourProbability,
	} {
		if err := d.check(); err != nil {
			verr.Addf("behaviour.%s: %v", name, err)
		}
	}
	return verr.OrNil()
}

// ValidateEndpoints checks every movement's origin and destination against
// the loaded floor graph. Unknown nodes are load-time fatal here, before any
// agent gets compiled against them.
func (s *Spec) ValidateEndpoints(g *sim.FloorGraph) error {
	verr := &sim.ValidationError{}
	for _, period := range s.Periods {
		for mi, mv := range period.Movements {
			if _, ok := g.NodeIndex(mv.Origin); !ok {
				verr.Addf("period %s movement %d: origin %q not in floor plan", period.ID, mi, mv.Origin)
			}
			if _, ok := g.NodeIndex(mv.Destination); !ok {
				verr.Addf("period %s movement %d: destination %q not in floor plan", period.ID, mi, mv.Destination)
			}
		}
	}
	return verr.OrNil()
}

// ParseClock converts an "HH:MM" wall-clock string into seconds since
// midnight.
func ParseClock(v string) (float64, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("start_time %q: want HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("start_time %q: bad hour", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("start_time %q: bad minute", v)
	}
	return float64(h*3600 + m*60), nil
}
