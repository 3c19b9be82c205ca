package sim

import (
	"golang.org/x/exp/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical floor plan + scenario
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// RunRNG is the single seeded random stream for one run. The scenario
// compiler consumes it first (agent parameter draws in declaration order),
// then the tick loop consumes it for softmax route choice. There is exactly
// one stream; no subsystem gets an isolated source, so the consumption order
// is part of the determinism contract.
//
// Thread-safety: NOT thread-safe. The engine is a single logical stepper.
type RunRNG struct {
	key    SimulationKey
	stream *rand.Rand
}

// NewRunRNG creates the run stream for a key.
func NewRunRNG(key SimulationKey) *RunRNG {
	return &RunRNG{
		key:    key,
		stream: rand.New(rand.NewSource(uint64(key))),
	}
}

// Stream returns the underlying stream. Callers share this one instance;
// it is never reseeded mid-run.
func (r *RunRNG) Stream() *rand.Rand {
	return r.stream
}

// Key returns the SimulationKey used to create this RunRNG.
func (r *RunRNG) Key() SimulationKey {
	return r.key
}
