// Defines the immutable AgentProfile produced by the scenario compiler and
// the mutable AgentState the tick loop drives. Each profile gets exactly one
// state at engine construction; states are retained after completion so the
// metrics collector can read them.

package sim

import (
	"fmt"
)

// AgentPhase is the lifecycle phase of an agent within the run.
// Rerouting is transient (it happens within a tick while Traversing) and
// never observable between ticks, so it is not a distinct phase here.
type AgentPhase string

const (
	PhaseIdle       AgentPhase = "idle"
	PhaseTraversing AgentPhase = "traversing"
	PhaseCompleted  AgentPhase = "completed"
)

// ScheduleEntry is one leg of an agent's journey.
type ScheduleEntry struct {
	Period      string
	Origin      NodeID
	Destination NodeID
	DepartTime  float64 // seconds from run start
}

// AgentProfile is the immutable description of one agent: identity, movement
// behaviour parameters, and the ordered schedule of legs. Created once by the
// scenario compiler; never mutated afterwards.
type AgentProfile struct {
	ID                   string
	Role                 string
	SpeedBase            float64 // unimpeded walking speed, m/s
	StairsPenalty        float64 // additive routing surcharge on stair edges
	OptimalityBeta       float64 // softmax selectivity; higher = closer to optimal
	RerouteIntervalTicks int     // periodic reroute check; 0 disables
	DetourProbability    float64 // chance of considering alternatives beyond the best path
	Schedule             []ScheduleEntry
}

// AgentState is the mutable per-run state for one profile.
//
// Route is an owned, exclusively-held node sequence; reroute adoption
// replaces it with a single swap, never a partial in-place edit.
// RouteCursor indexes the node the agent most recently departed (or stands
// at, when Position == 0); the current edge runs Route[RouteCursor] →
// Route[RouteCursor+1].
type AgentState struct {
	Profile *AgentProfile

	Phase       AgentPhase
	Route       []NodeID
	RouteCursor int
	CurrentEdge int     // interned edge index, -1 when not yet admitted
	Position    float64 // metres along the current edge; 0 = at a node

	TravelTime   float64 // seconds active across all legs
	WaitTime     float64 // seconds refused admission across all legs
	FreeFlowTime float64 // seconds the traversed path would take at SpeedBase

	ScheduleCursor  int
	SkippedLegs     int
	LastRerouteTick int64
	PathTaken       []NodeID // nodes traversed across all legs, in order
}

// NewAgentState creates the runtime state for a profile.
func NewAgentState(p *AgentProfile) *AgentState {
	return &AgentState{
		Profile:     p,
		Phase:       PhaseIdle,
		CurrentEdge: -1,
	}
}

// AtNode reports whether the agent sits exactly on a node. Reroute attempts
// are no-ops anywhere else (the mid-edge lock).
func (a *AgentState) AtNode() bool {
	return a.Position == 0
}

// LegDestination returns the final node of the current route.
func (a *AgentState) LegDestination() NodeID {
	return a.Route[len(a.Route)-1]
}

// Delay is the agent's accumulated travel time beyond the free-flow time of
// the path it actually walked. Never negative.
func (a *AgentState) Delay() float64 {
	d := a.TravelTime - a.FreeFlowTime
	if d < 0 {
		return 0
	}
	return d
}

func (a *AgentState) String() string {
	return fmt.Sprintf("Agent(ID: %s, Phase: %s, Leg: %d/%d, Position: %.2f)",
		a.Profile.ID, a.Phase, a.ScheduleCursor, len(a.Profile.Schedule), a.Position)
}
