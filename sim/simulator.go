// sim/simulator.go
//
// The tick loop. Each Step() advances every agent through the fixed phase
// order: activation, occupancy snapshot, per-agent reroute/admission/
// movement/transition, end-of-tick metrics. All agents react to the single
// start-of-tick snapshot, so intra-tick moves by other agents are invisible
// until the next tick and the result does not depend on iteration order
// beyond the deterministic tie-breaks it fixes.

package sim

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/pedflow-sim/pedflow-sim/sim/observe"
)

// EngineConfig holds run-level simulation parameters.
type EngineConfig struct {
	TickSeconds        float64 // duration of one tick, > 0
	TransitionWindowS  float64 // run length in seconds, > 0
	KPaths             int     // alternatives enumerated per route choice
	CongestionAlpha    float64 // congestion weight in path cost
	CongestionP        float64 // congestion exponent in path cost
	HysteresisMargin   float64 // min cost improvement before a reroute is adopted
	MinSpeed           float64 // floor on effective agent speed, m/s
	DelayThresholdS    float64 // accumulated wait triggering a reroute check; 0 disables
	LatenessThresholdS float64 // delay beyond which an agent counts as late
}

// DefaultEngineConfig returns the standard engine parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickSeconds:        1.0,
		TransitionWindowS:  600.0,
		KPaths:             3,
		CongestionAlpha:    0.5,
		CongestionP:        2.0,
		HysteresisMargin:   1.0,
		MinSpeed:           0.1,
		DelayThresholdS:    15.0,
		LatenessThresholdS: 30.0,
	}
}

// Validate checks the config for values that would stall or corrupt a run.
func (c EngineConfig) Validate() error {
	verr := &ValidationError{}
	if c.TickSeconds <= 0 {
		verr.Addf("tick_seconds must be > 0, got %v", c.TickSeconds)
	}
	if c.TransitionWindowS <= 0 {
		verr.Addf("transition_window_s must be > 0, got %v", c.TransitionWindowS)
	}
	if c.KPaths < 1 {
		verr.Addf("k_paths must be >= 1, got %d", c.KPaths)
	}
	if c.MinSpeed <= 0 {
		verr.Addf("min_speed must be > 0, got %v", c.MinSpeed)
	}
	return verr.OrNil()
}

// Simulator drives one run. It is the only scheduler: single-threaded,
// synchronous, fully deterministic under its RunRNG.
type Simulator struct {
	Clock   int64 // completed ticks
	Horizon int64 // tick budget derived from the transition window

	graph      *FloorGraph
	congestion CongestionModel
	cfg        EngineConfig
	agents     []*AgentState
	metrics    *MetricsCollector
	rng        *RunRNG

	collector *observe.RunCollector // optional, nil when unobserved

	// congestionMap caches the snapshot-derived map within one tick; rebuilt
	// lazily on the first reroute check of the tick, never shared across ticks.
	congestionMap map[EdgeID]float64
}

// NewSimulator builds a run over a validated graph and compiled profiles.
// Agent iteration order is profile order and is part of the determinism
// contract.
func NewSimulator(g *FloorGraph, profiles []*AgentProfile, cfg EngineConfig, rng *RunRNG) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	agents := make([]*AgentState, len(profiles))
	for i, p := range profiles {
		agents[i] = NewAgentState(p)
	}
	return &Simulator{
		Horizon:    int64(math.Ceil(cfg.TransitionWindowS / cfg.TickSeconds)),
		graph:      g,
		congestion: NewCongestionModel(),
		cfg:        cfg,
		agents:     agents,
		metrics:    NewMetricsCollector(g.EdgeIDs()),
		rng:        rng,
	}, nil
}

// AttachObserver wires an optional Prometheus run collector. Must be called
// before the first Step.
func (s *Simulator) AttachObserver(c *observe.RunCollector) {
	s.collector = c
}

// Metrics exposes the live collector. External readers must treat it as
// read-only.
func (s *Simulator) Metrics() *MetricsCollector {
	return s.metrics
}

// Agents returns the runtime states in iteration order. Retained after
// completion; external readers must treat them as read-only.
func (s *Simulator) Agents() []*AgentState {
	return s.agents
}

// IsComplete reports whether the run has ended: the transition window's tick
// budget elapsed, or every agent completed, whichever comes first.
func (s *Simulator) IsComplete() bool {
	if s.Clock >= s.Horizon {
		return true
	}
	for _, a := range s.agents {
		if a.Phase != PhaseCompleted {
			return false
		}
	}
	return true
}

// Run steps until the run completes.
func (s *Simulator) Run() error {
	for !s.IsComplete() {
		if err := s.Step(); err != nil {
			return err
		}
	}
	logrus.Infof("[tick %07d] Simulation ended", s.Clock)
	return nil
}

// Finalize produces the immutable run summary.
func (s *Simulator) Finalize() RunSummary {
	skipped := 0
	for _, a := range s.agents {
		skipped += a.SkippedLegs
	}
	return s.metrics.Finalize(len(s.agents), skipped)
}

// Step advances the simulation by one tick.
func (s *Simulator) Step() error {
	now := s.Clock
	clockS := float64(now) * s.cfg.TickSeconds
	s.congestionMap = nil

	// Phase 1: activation.
	for _, a := range s.agents {
		s.activate(a, clockS, now)
	}

	// Phase 2: start-of-tick occupancy snapshot. Occupancy counts agents
	// with progress > 0 on a directed edge.
	snapshot := s.countOccupancy()

	// Phase 3: per-agent admission, movement, transition, in fixed order.
	entrants := make([]int, s.graph.NumEdges())
	queued := make([]int, s.graph.NumEdges())
	for _, a := range s.agents {
		if a.Phase != PhaseTraversing {
			continue
		}
		a.TravelTime += s.cfg.TickSeconds

		if a.AtNode() {
			s.maybeReroute(a, snapshot, now)

			ei, ok := s.graph.EdgeBetween(a.Route[a.RouteCursor], a.Route[a.RouteCursor+1])
			if !ok {
				// Route references a missing edge; treat like an unreachable
				// leg and recover locally.
				logrus.Warnf("agent %s: route edge %s->%s vanished, skipping leg",
					a.Profile.ID, a.Route[a.RouteCursor], a.Route[a.RouteCursor+1])
				s.skipLeg(a)
				continue
			}
			e := s.graph.EdgeAt(ei)
			admit, err := s.congestion.CanEnterEdge(snapshot[ei]+entrants[ei]+1, e.Length, e.Width, e.CapacityPPS)
			if err != nil {
				return err
			}
			if !admit {
				a.WaitTime += s.cfg.TickSeconds
				queued[ei]++
				continue
			}
			entrants[ei]++
			a.CurrentEdge = ei
			s.metrics.RecordEdgeEntry(e.ID)
			if err := s.move(a, snapshot[ei]+entrants[ei]); err != nil {
				return err
			}
			continue
		}

		ei := a.CurrentEdge
		if err := s.move(a, snapshot[ei]+entrants[ei]); err != nil {
			return err
		}
	}

	// Phase 4: end-of-tick metrics for every edge, zero-occupancy included,
	// keeping all series aligned in length across the run.
	endOccupancy := s.countOccupancy()
	congestedEdges := 0
	for i := 0; i < s.graph.NumEdges(); i++ {
		s.metrics.RecordEdgeStep(s.graph.EdgeAt(i).ID, endOccupancy[i], queued[i])
		if queued[i] > 0 {
			congestedEdges++
		}
	}
	s.metrics.TickRecorded()
	s.Clock++

	if s.collector != nil {
		active, completed := 0, 0
		for _, a := range s.agents {
			switch a.Phase {
			case PhaseTraversing:
				active++
			case PhaseCompleted:
				completed++
			}
		}
		s.collector.ObserveTick(s.Clock, active, completed)
		s.collector.AddCongestionEvents(congestedEdges)
		total := 0
		for _, n := range entrants {
			total += n
		}
		s.collector.AddEdgeEntries(total)
	}
	return nil
}

// countOccupancy counts agents with Position > 0 per directed edge.
func (s *Simulator) countOccupancy() []int {
	occ := make([]int, s.graph.NumEdges())
	for _, a := range s.agents {
		if a.Phase == PhaseTraversing && a.CurrentEdge >= 0 && a.Position > 0 {
			occ[a.CurrentEdge]++
		}
	}
	return occ
}

// activate attempts to start the next due leg of an idle agent. A leg whose
// route computation fails is skipped: the cursor advances and the agent
// stays idle for the following leg. Local failure, never fatal.
func (s *Simulator) activate(a *AgentState, clockS float64, now int64) {
	if a.Phase != PhaseIdle {
		return
	}
	if a.ScheduleCursor >= len(a.Profile.Schedule) {
		s.complete(a)
		return
	}
	leg := a.Profile.Schedule[a.ScheduleCursor]
	if leg.DepartTime > clockS {
		return
	}

	p := a.Profile
	paths, err := KShortestPaths(s.graph, leg.Origin, leg.Destination, s.cfg.KPaths, p.StairsPenalty)
	if err != nil {
		logrus.Warnf("agent %s leg %d: %v, skipping", p.ID, a.ScheduleCursor, err)
		s.skipLeg(a)
		return
	}

	// Detour decision and softmax choice each consume exactly one variate,
	// keeping the stream order fixed regardless of the outcome.
	candidates := paths
	if s.rng.Stream().Float64() >= p.DetourProbability {
		candidates = paths[:1]
	}
	chosen := candidates[ChooseRoute(candidates, p.OptimalityBeta, s.rng.Stream())]

	if len(chosen.Nodes) < 2 {
		// Origin equals destination: the leg completes on the spot.
		a.PathTaken = append(a.PathTaken, chosen.Nodes...)
		s.finishLeg(a)
		return
	}

	a.Route = chosen.Nodes
	a.RouteCursor = 0
	a.CurrentEdge = -1
	a.Position = 0
	a.Phase = PhaseTraversing
	a.LastRerouteTick = now
	a.PathTaken = append(a.PathTaken, chosen.Nodes[0])
	logrus.Debugf("[tick %07d] agent %s departs %s -> %s (%d nodes)",
		now, p.ID, leg.Origin, leg.Destination, len(chosen.Nodes))
}

// move advances a traversing agent along its current edge at the
// congestion-adjusted speed and handles at most one edge transition.
func (s *Simulator) move(a *AgentState, occupancy int) error {
	e := s.graph.EdgeAt(a.CurrentEdge)
	factor, err := s.congestion.DensitySpeedFactor(occupancy, e.Length, e.Width, e.CapacityPPS)
	if err != nil {
		return err
	}
	speed := math.Max(s.cfg.MinSpeed, a.Profile.SpeedBase*factor)
	a.Position += speed * s.cfg.TickSeconds

	if a.Position < e.Length {
		return nil
	}
	remainder := a.Position - e.Length
	a.FreeFlowTime += e.Length / a.Profile.SpeedBase
	a.RouteCursor++
	a.PathTaken = append(a.PathTaken, a.Route[a.RouteCursor])

	if a.RouteCursor == len(a.Route)-1 {
		s.finishLeg(a)
		return nil
	}

	if remainder == 0 {
		// Landed exactly on the node: the next edge goes through normal
		// at-node admission next tick instead of being entered here.
		a.CurrentEdge = -1
		return nil
	}

	// One edge transition per tick; the new edge is not re-admission-checked
	// until the following tick.
	ni, ok := s.graph.EdgeBetween(a.Route[a.RouteCursor], a.Route[a.RouteCursor+1])
	if !ok {
		logrus.Warnf("agent %s: route edge %s->%s vanished mid-leg, skipping rest of leg",
			a.Profile.ID, a.Route[a.RouteCursor], a.Route[a.RouteCursor+1])
		s.skipLeg(a)
		return nil
	}
	a.CurrentEdge = ni
	a.Position = remainder
	s.metrics.RecordEdgeEntry(s.graph.EdgeAt(ni).ID)
	return nil
}

// maybeReroute evaluates the reroute triggers and, when one fires, adopts a
// cheaper remaining sub-route under the current congestion-weighted cost.
//
// Mid-edge lock: a reroute attempt is a no-op unless the agent sits exactly
// on a node, unconditionally.
func (s *Simulator) maybeReroute(a *AgentState, snapshot []int, now int64) {
	if !a.AtNode() {
		return
	}
	p := a.Profile
	triggered := false
	if p.RerouteIntervalTicks > 0 && now-a.LastRerouteTick >= int64(p.RerouteIntervalTicks) {
		triggered = true
	}
	if s.cfg.DelayThresholdS > 0 && a.WaitTime > s.cfg.DelayThresholdS {
		triggered = true
	}
	if !triggered {
		return
	}
	a.LastRerouteTick = now

	if s.congestionMap == nil {
		s.congestionMap = make(map[EdgeID]float64, len(snapshot))
		for i, c := range snapshot {
			if c > 0 {
				s.congestionMap[s.graph.EdgeAt(i).ID] = float64(c)
			}
		}
	}

	current := a.Route[a.RouteCursor]
	remainder := a.Route[a.RouteCursor:]
	plannedCost := PathCost(s.graph, remainder, s.congestionMap, p.StairsPenalty, s.cfg.CongestionAlpha, s.cfg.CongestionP)

	alts, err := KShortestPaths(s.graph, current, a.LegDestination(), s.cfg.KPaths, p.StairsPenalty)
	if err != nil {
		return // no alternative found: silently retain the existing route
	}
	bestIdx := -1
	bestCost := math.Inf(1)
	for i, alt := range alts {
		c := PathCost(s.graph, alt.Nodes, s.congestionMap, p.StairsPenalty, s.cfg.CongestionAlpha, s.cfg.CongestionP)
		if c < bestCost {
			bestCost = c
			bestIdx = i
		}
	}
	// Hysteresis: only an improvement beyond the margin is worth flapping for.
	if bestIdx < 0 || bestCost >= plannedCost-s.cfg.HysteresisMargin {
		return
	}

	spliced := make([]NodeID, 0, a.RouteCursor+1+len(alts[bestIdx].Nodes)-1)
	spliced = append(spliced, a.Route[:a.RouteCursor+1]...)
	spliced = append(spliced, alts[bestIdx].Nodes[1:]...)
	a.Route = spliced // single atomic swap
	logrus.Debugf("[tick %07d] agent %s rerouted at %s (cost %.2f -> %.2f)",
		now, p.ID, current, plannedCost, bestCost)
}

// skipLeg abandons the current leg and leaves the agent idle for the next.
func (s *Simulator) skipLeg(a *AgentState) {
	a.SkippedLegs++
	a.ScheduleCursor++
	a.Route = nil
	a.RouteCursor = 0
	a.CurrentEdge = -1
	a.Position = 0
	a.Phase = PhaseIdle
	if a.ScheduleCursor >= len(a.Profile.Schedule) {
		s.complete(a)
	}
}

// finishLeg marks the current leg done; the agent goes idle for the next leg
// or completes outright on its last.
func (s *Simulator) finishLeg(a *AgentState) {
	a.ScheduleCursor++
	a.Route = nil
	a.RouteCursor = 0
	a.CurrentEdge = -1
	a.Position = 0
	a.Phase = PhaseIdle
	if a.ScheduleCursor >= len(a.Profile.Schedule) {
		s.complete(a)
	}
}

// complete retires an agent and records its outcome. States are retained
// after completion for metrics readers.
func (s *Simulator) complete(a *AgentState) {
	a.Phase = PhaseCompleted
	if len(a.PathTaken) == 0 && a.TravelTime == 0 {
		// Every leg was skipped (or the schedule was empty); nothing to
		// contribute to the travel statistics.
		return
	}
	path := make([]NodeID, len(a.PathTaken))
	copy(path, a.PathTaken)
	s.metrics.RecordAgent(AgentRecord{
		ID:         a.Profile.ID,
		TravelTime: a.TravelTime,
		Delay:      a.Delay(),
		Path:       path,
		Late:       a.Delay() > s.cfg.LatenessThresholdS,
	})
}
