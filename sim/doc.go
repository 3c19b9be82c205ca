// Package sim provides the core tick-stepped pedestrian flow simulation engine.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - floorgraph.go: the validated building graph (rooms, corridors, stairs)
//   - agent.go: agent lifecycle (idle → traversing → completed) and route state
//   - simulator.go: the tick loop, occupancy snapshots, admission, and movement
//
// # Architecture
//
// The sim package owns the engine; supporting concerns live in sub-packages:
//   - sim/scenario/: declarative scenario config and the deterministic compiler
//     that turns movement schedules into agent profiles
//   - sim/observe/: optional Prometheus run-metrics collector
//
// The engine is a single logical stepper: Step() advances one tick, IsComplete()
// reports the end condition, and Finalize() produces the immutable RunSummary.
// It never performs I/O; loaders (floorplan.go, sim/scenario) run before the
// first tick and all validation failures are fatal at that point.
//
// # Determinism
//
// One seeded random stream per run (rng.go) feeds both scenario compilation and
// in-tick softmax route choice, consumed in a fixed order. Two runs with the
// same SimulationKey and identical inputs MUST produce bit-for-bit identical
// results.
package sim
