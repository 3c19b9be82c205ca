// Defines the FloorGraph: the validated directed weighted graph of rooms,
// junctions and stairs connected by capacity-tagged corridors. Built once at
// load; immutable afterwards. Runs that disable edges derive an independent
// graph via WithEdgesRemoved.

package sim

import (
	"math"
)

// NodeID and EdgeID are string aliases used as identifiers at the API
// boundary. Internally the graph interns both into dense integer indices.
type (
	NodeID = string
	EdgeID = string
)

// NodeKind classifies a node in the floor plan.
type NodeKind string

const (
	NodeRoom     NodeKind = "room"
	NodeJunction NodeKind = "junction"
	NodeEntry    NodeKind = "entry"
	NodeExit     NodeKind = "exit"
	NodeStairs   NodeKind = "stairs"
	NodeToilet   NodeKind = "toilet"
)

// Position3 is a 3D position in metres.
type Position3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Node is a point in the floor plan: a room, junction, entry/exit or stair
// landing. Immutable after load.
type Node struct {
	ID    NodeID
	Label string
	Kind  NodeKind
	Floor int
	Pos   Position3
	Meta  map[string]string
}

// Edge is a directed corridor section. Bidirectional corridors require two
// explicit opposite edges; the loader never materializes the reverse
// direction automatically.
type Edge struct {
	ID          EdgeID
	From        NodeID
	To          NodeID
	Length      float64 // metres, > 0
	Width       float64 // metres, > 0
	CapacityPPS float64 // design throughput in persons per second, > 0
	IsStairs    bool
	Meta        map[string]string
}

// FloorGraph owns all nodes and edges of one floor plan. Invariants enforced
// by NewFloorGraph: at least one node, unique node/edge IDs, edge endpoints
// exist, strictly positive length/width/capacity, and the undirected closure
// is weakly connected.
type FloorGraph struct {
	nodes []Node
	edges []Edge

	nodeIdx map[NodeID]int
	edgeIdx map[EdgeID]int
	out     [][]int     // node index → outgoing edge indices, in insertion order
	byPair  map[int]int // fromIdx*len(nodes)+toIdx → cheapest edge index

	maxWidth float64 // max edge width, cached for the euclidean A* heuristic
}

// NewFloorGraph builds and validates a FloorGraph. All problems are collected
// into a single ValidationError rather than failing on the first one.
func NewFloorGraph(nodes []Node, edges []Edge) (*FloorGraph, error) {
	verr := &ValidationError{}
	if len(nodes) == 0 {
		verr.Addf("floor plan has no nodes")
		return nil, verr
	}

	g := &FloorGraph{
		nodes:   make([]Node, 0, len(nodes)),
		edges:   make([]Edge, 0, len(edges)),
		nodeIdx: make(map[NodeID]int, len(nodes)),
		edgeIdx: make(map[EdgeID]int, len(edges)),
		byPair:  make(map[int]int, len(edges)),
	}

	for _, n := range nodes {
		if _, dup := g.nodeIdx[n.ID]; dup {
			verr.Addf("duplicate node id %q", n.ID)
			continue
		}
		g.nodeIdx[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}
	g.out = make([][]int, len(g.nodes))

	for _, e := range edges {
		if _, dup := g.edgeIdx[e.ID]; dup {
			verr.Addf("duplicate edge id %q", e.ID)
			continue
		}
		u, okU := g.nodeIdx[e.From]
		v, okV := g.nodeIdx[e.To]
		if !okU {
			verr.Addf("edge %q: source node %q not found", e.ID, e.From)
		}
		if !okV {
			verr.Addf("edge %q: target node %q not found", e.ID, e.To)
		}
		if e.Length <= 0 {
			verr.Addf("edge %q: length must be > 0, got %v", e.ID, e.Length)
		}
		if e.Width <= 0 {
			verr.Addf("edge %q: width must be > 0, got %v", e.ID, e.Width)
		}
		if e.CapacityPPS <= 0 {
			verr.Addf("edge %q: capacity_pps must be > 0, got %v", e.ID, e.CapacityPPS)
		}
		if !okU || !okV || e.Length <= 0 || e.Width <= 0 || e.CapacityPPS <= 0 {
			continue
		}
		idx := len(g.edges)
		g.edgeIdx[e.ID] = idx
		g.edges = append(g.edges, e)
		g.out[u] = append(g.out[u], idx)
		key := u*len(g.nodes) + v
		if prev, ok := g.byPair[key]; !ok || e.Length < g.edges[prev].Length {
			g.byPair[key] = idx
		}
		if e.Width > g.maxWidth {
			g.maxWidth = e.Width
		}
	}

	if len(verr.Issues) > 0 {
		return nil, verr
	}
	if !g.weaklyConnected() {
		verr.Addf("floor plan is not weakly connected")
		return nil, verr
	}
	return g, nil
}

// weaklyConnected runs a BFS over the undirected closure of the graph.
func (g *FloorGraph) weaklyConnected() bool {
	if len(g.nodes) == 0 {
		return false
	}
	adj := make([][]int, len(g.nodes))
	for _, e := range g.edges {
		u := g.nodeIdx[e.From]
		v := g.nodeIdx[e.To]
		adj[u] = append(adj[u], v)
		adj[v] = append(adj[v], u)
	}
	seen := make([]bool, len(g.nodes))
	queue := []int{0}
	seen[0] = true
	count := 1
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if !seen[v] {
				seen[v] = true
				count++
				queue = append(queue, v)
			}
		}
	}
	return count == len(g.nodes)
}

// NumNodes returns the node count.
func (g *FloorGraph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the edge count.
func (g *FloorGraph) NumEdges() int { return len(g.edges) }

// NodeAt returns the node at interned index i.
func (g *FloorGraph) NodeAt(i int) Node { return g.nodes[i] }

// EdgeAt returns the edge at interned index i.
func (g *FloorGraph) EdgeAt(i int) Edge { return g.edges[i] }

// NodeIndex returns the interned index for a node ID.
func (g *FloorGraph) NodeIndex(id NodeID) (int, bool) {
	i, ok := g.nodeIdx[id]
	return i, ok
}

// EdgeIndex returns the interned index for an edge ID.
func (g *FloorGraph) EdgeIndex(id EdgeID) (int, bool) {
	i, ok := g.edgeIdx[id]
	return i, ok
}

// OutEdges returns the outgoing edge indices of the node at index u.
// The returned slice is internal storage; callers must not modify it.
func (g *FloorGraph) OutEdges(u int) []int { return g.out[u] }

// EdgeBetween returns the index of the directed edge from u to v. When
// parallel edges exist the shortest one is returned; that same edge is the
// one agents traverse between consecutive route nodes.
func (g *FloorGraph) EdgeBetween(u, v NodeID) (int, bool) {
	ui, okU := g.nodeIdx[u]
	vi, okV := g.nodeIdx[v]
	if !okU || !okV {
		return 0, false
	}
	idx, ok := g.byPair[ui*len(g.nodes)+vi]
	return idx, ok
}

// EdgeIDs returns all edge IDs in interned-index order.
func (g *FloorGraph) EdgeIDs() []EdgeID {
	ids := make([]EdgeID, len(g.edges))
	for i, e := range g.edges {
		ids[i] = e.ID
	}
	return ids
}

// Euclidean returns the straight-line distance in metres between two nodes
// given by interned index.
func (g *FloorGraph) Euclidean(u, v int) float64 {
	a, b := g.nodes[u].Pos, g.nodes[v].Pos
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// MaxEdgeWidth returns the widest edge width in the graph.
func (g *FloorGraph) MaxEdgeWidth() float64 { return g.maxWidth }

// WithEdgesRemoved returns an independent derived graph with the given edges
// removed, leaving the receiver untouched. The derived graph re-runs full
// validation, so removing edges that disconnect the undirected closure is a
// ValidationError. Unknown IDs in the removal set are ignored.
func (g *FloorGraph) WithEdgesRemoved(ids []EdgeID) (*FloorGraph, error) {
	removed := make(map[EdgeID]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}
	nodes := make([]Node, len(g.nodes))
	copy(nodes, g.nodes)
	kept := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if !removed[e.ID] {
			kept = append(kept, e)
		}
	}
	return NewFloorGraph(nodes, kept)
}
