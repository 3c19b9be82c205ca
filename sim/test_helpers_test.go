package sim

import (
	"testing"
)

// testNode builds a node at a 2D position on floor 0.
func testNode(id NodeID, x, y float64) Node {
	return Node{ID: id, Label: string(id), Kind: NodeJunction, Pos: Position3{X: x, Y: y}}
}

// testEdge builds a corridor edge with a generous default capacity.
func testEdge(id EdgeID, from, to NodeID, length, width float64) Edge {
	return Edge{ID: id, From: from, To: to, Length: length, Width: width, CapacityPPS: 5.0}
}

func mustGraph(t *testing.T, nodes []Node, edges []Edge) *FloorGraph {
	t.Helper()
	g, err := NewFloorGraph(nodes, edges)
	if err != nil {
		t.Fatalf("building test graph: %v", err)
	}
	return g
}

// diamondGraph is the canonical 4-node case: a cheap 2-hop route A→B→D
// (weight 2.5+2.5) and a costly 2-hop alternative A→C→D (weight 7+7).
func diamondGraph(t *testing.T) *FloorGraph {
	t.Helper()
	return mustGraph(t,
		[]Node{
			testNode("A", 0, 0),
			testNode("B", 5, 0),
			testNode("C", 5, 5),
			testNode("D", 10, 0),
		},
		[]Edge{
			testEdge("ab", "A", "B", 5, 2),
			testEdge("bd", "B", "D", 5, 2),
			testEdge("ac", "A", "C", 7, 1),
			testEdge("cd", "C", "D", 7, 1),
		},
	)
}

// corridorGraph is a single directed edge A→B.
func corridorGraph(t *testing.T, length, width, capacityPPS float64) *FloorGraph {
	t.Helper()
	e := testEdge("ab", "A", "B", length, width)
	e.CapacityPPS = capacityPPS
	return mustGraph(t,
		[]Node{testNode("A", 0, 0), testNode("B", length, 0)},
		[]Edge{e},
	)
}

// testProfile builds a single-leg profile departing at t=0.
func testProfile(id string, origin, destination NodeID, speed float64) *AgentProfile {
	return &AgentProfile{
		ID:             id,
		Role:           "test",
		SpeedBase:      speed,
		OptimalityBeta: 1000, // effectively always the best path
		Schedule: []ScheduleEntry{
			{Period: "p0", Origin: origin, Destination: destination, DepartTime: 0},
		},
	}
}
