// Routing engine: shortest path (Dijkstra), A*, Yen-style k-shortest loopless
// paths, congestion-weighted path cost, and softmax route choice. All
// algorithms operate on the interned indices of a FloorGraph; the public
// surface speaks node IDs.

package sim

import (
	"container/heap"
	"math"
	"sort"

	"golang.org/x/exp/rand"
)

// Path is an ordered node sequence with its total routing cost.
type Path struct {
	Nodes []NodeID
	Cost  float64
}

// Heuristic selects the A* admissible heuristic.
type Heuristic int

const (
	// HeuristicZero degenerates A* to Dijkstra.
	HeuristicZero Heuristic = iota
	// HeuristicEuclidean uses straight-line distance scaled by 1/maxWidth so
	// it never overestimates under weight = length/width.
	HeuristicEuclidean
)

// EdgeWeight is the static routing cost of one edge:
// length/width plus the stairs surcharge on stair edges.
func EdgeWeight(e Edge, stairsPenalty float64) float64 {
	w := e.Length / e.Width
	if e.IsStairs {
		w += stairsPenalty
	}
	return w
}

// frontierItem is a node on the search frontier, ordered by priority.
// Ties break on node index so the search order is deterministic.
type frontierItem struct {
	node     int
	priority float64
}

type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].priority != f[j].priority {
		return f[i].priority < f[j].priority
	}
	return f[i].node < f[j].node
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) {
	*f = append(*f, x.(frontierItem))
}

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// searchFilter masks edges and nodes out of a search without deriving a new
// graph. Yen's spur searches are the only users.
type searchFilter struct {
	bannedEdges map[int]bool
	bannedNodes map[int]bool
}

func (f *searchFilter) edgeBanned(i int) bool {
	return f != nil && f.bannedEdges[i]
}

func (f *searchFilter) nodeBanned(i int) bool {
	return f != nil && f.bannedNodes[i]
}

// dijkstra runs a filtered shortest-path search between interned indices,
// optionally guided by an admissible A* heuristic h (nil = Dijkstra).
// Returns the node index sequence and its cost, or ok=false if unreachable.
func dijkstra(g *FloorGraph, src, dst int, stairsPenalty float64, filter *searchFilter, h func(int) float64) (route []int, cost float64, ok bool) {
	n := g.NumNodes()
	dist := make([]float64, n)
	prev := make([]int, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[src] = 0

	fr := &frontier{}
	heap.Init(fr)
	prio := 0.0
	if h != nil {
		prio = h(src)
	}
	heap.Push(fr, frontierItem{node: src, priority: prio})

	for fr.Len() > 0 {
		cur := heap.Pop(fr).(frontierItem).node
		if done[cur] {
			continue
		}
		done[cur] = true
		if cur == dst {
			break
		}
		for _, ei := range g.OutEdges(cur) {
			if filter.edgeBanned(ei) {
				continue
			}
			e := g.EdgeAt(ei)
			vi, _ := g.NodeIndex(e.To)
			if done[vi] || filter.nodeBanned(vi) {
				continue
			}
			alt := dist[cur] + EdgeWeight(e, stairsPenalty)
			if alt < dist[vi] {
				dist[vi] = alt
				prev[vi] = cur
				prio := alt
				if h != nil {
					prio += h(vi)
				}
				heap.Push(fr, frontierItem{node: vi, priority: prio})
			}
		}
	}

	if math.IsInf(dist[dst], 1) {
		return nil, 0, false
	}
	for at := dst; at != -1; at = prev[at] {
		route = append(route, at)
	}
	for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
		route[i], route[j] = route[j], route[i]
	}
	return route, dist[dst], true
}

func (g *FloorGraph) indicesToIDs(route []int) []NodeID {
	ids := make([]NodeID, len(route))
	for i, n := range route {
		ids[i] = g.NodeAt(n).ID
	}
	return ids
}

func resolveEndpoints(g *FloorGraph, src, dst NodeID) (int, int, error) {
	si, okS := g.NodeIndex(src)
	di, okD := g.NodeIndex(dst)
	if !okS || !okD {
		return 0, 0, &NoPathError{From: src, To: dst}
	}
	return si, di, nil
}

// ShortestPath returns the minimum-cost path from src to dst under
// weight = length/width + stairsPenalty·[is_stairs].
// Returns a NoPathError when dst is unreachable.
func ShortestPath(g *FloorGraph, src, dst NodeID, stairsPenalty float64) (Path, error) {
	si, di, err := resolveEndpoints(g, src, dst)
	if err != nil {
		return Path{}, err
	}
	route, cost, ok := dijkstra(g, si, di, stairsPenalty, nil, nil)
	if !ok {
		return Path{}, &NoPathError{From: src, To: dst}
	}
	return Path{Nodes: g.indicesToIDs(route), Cost: cost}, nil
}

// AStarPath returns a minimum-cost path using an admissible heuristic.
// For both supported heuristics the returned cost equals ShortestPath's cost
// on the same graph and stairsPenalty; the exact node sequence may differ
// when multiple optimal paths exist.
func AStarPath(g *FloorGraph, src, dst NodeID, h Heuristic, stairsPenalty float64) (Path, error) {
	si, di, err := resolveEndpoints(g, src, dst)
	if err != nil {
		return Path{}, err
	}
	var hf func(int) float64
	if h == HeuristicEuclidean {
		maxW := g.MaxEdgeWidth()
		if maxW > 0 {
			hf = func(n int) float64 { return g.Euclidean(n, di) / maxW }
		}
	}
	route, cost, ok := dijkstra(g, si, di, stairsPenalty, nil, hf)
	if !ok {
		return Path{}, &NoPathError{From: src, To: dst}
	}
	return Path{Nodes: g.indicesToIDs(route), Cost: cost}, nil
}

// KShortestPaths returns up to k loopless paths from src to dst in
// non-decreasing cost order (Yen's algorithm). Fewer than k paths are
// returned when the graph does not contain that many distinct loopless
// routes. Returns a NoPathError when even the first path does not exist.
func KShortestPaths(g *FloorGraph, src, dst NodeID, k int, stairsPenalty float64) ([]Path, error) {
	if k < 1 {
		k = 1
	}
	si, di, err := resolveEndpoints(g, src, dst)
	if err != nil {
		return nil, err
	}

	first, cost, ok := dijkstra(g, si, di, stairsPenalty, nil, nil)
	if !ok {
		return nil, &NoPathError{From: src, To: dst}
	}

	accepted := [][]int{first}
	costs := []float64{cost}
	var candidates []yenCandidate

	for len(accepted) < k {
		prevRoute := accepted[len(accepted)-1]
		for spur := 0; spur < len(prevRoute)-1; spur++ {
			spurNode := prevRoute[spur]
			rootRoute := prevRoute[:spur+1]

			filter := &searchFilter{
				bannedEdges: make(map[int]bool),
				bannedNodes: make(map[int]bool),
			}
			// Ban the next edge of every accepted path sharing this root, so
			// the spur search must deviate here.
			for _, acc := range accepted {
				if len(acc) > spur+1 && equalPrefix(acc, rootRoute) {
					if ei, ok := g.EdgeBetween(g.NodeAt(acc[spur]).ID, g.NodeAt(acc[spur+1]).ID); ok {
						filter.bannedEdges[ei] = true
					}
				}
			}
			// Ban root nodes except the spur node to keep paths loopless.
			for _, n := range rootRoute[:len(rootRoute)-1] {
				filter.bannedNodes[n] = true
			}

			spurRoute, spurCost, ok := dijkstra(g, spurNode, di, stairsPenalty, filter, nil)
			if !ok {
				continue
			}

			total := append(append([]int{}, rootRoute...), spurRoute[1:]...)
			totalCost := routeCostIdx(g, rootRoute, stairsPenalty) + spurCost
			if containsRoute(accepted, total) || containsCandidate(candidates, total) {
				continue
			}
			candidates = append(candidates, yenCandidate{route: total, cost: totalCost})
		}

		if len(candidates) == 0 {
			break
		}
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].cost < candidates[j].cost })
		best := candidates[0]
		candidates = candidates[1:]
		accepted = append(accepted, best.route)
		costs = append(costs, best.cost)
	}

	paths := make([]Path, len(accepted))
	for i, r := range accepted {
		paths[i] = Path{Nodes: g.indicesToIDs(r), Cost: costs[i]}
	}
	return paths, nil
}

func equalPrefix(route, prefix []int) bool {
	if len(route) < len(prefix) {
		return false
	}
	for i, n := range prefix {
		if route[i] != n {
			return false
		}
	}
	return true
}

func equalRoute(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsRoute(routes [][]int, r []int) bool {
	for _, x := range routes {
		if equalRoute(x, r) {
			return true
		}
	}
	return false
}

// yenCandidate is a not-yet-accepted spur path in Yen's enumeration.
type yenCandidate struct {
	route []int
	cost  float64
}

func containsCandidate(cands []yenCandidate, r []int) bool {
	for _, c := range cands {
		if equalRoute(c.route, r) {
			return true
		}
	}
	return false
}

// routeCostIdx sums static edge weights along an index route.
func routeCostIdx(g *FloorGraph, route []int, stairsPenalty float64) float64 {
	total := 0.0
	for i := 0; i+1 < len(route); i++ {
		if ei, ok := g.EdgeBetween(g.NodeAt(route[i]).ID, g.NodeAt(route[i+1]).ID); ok {
			total += EdgeWeight(g.EdgeAt(ei), stairsPenalty)
		}
	}
	return total
}

// PathCost is the congestion-weighted cost of a node sequence:
//
//	Σ edge weight + alpha · congestion(edge)^p
//
// Congestion defaults to 0 for edges absent from the map, and the result is
// strictly increasing in any tracked congestion value.
func PathCost(g *FloorGraph, nodes []NodeID, congestion map[EdgeID]float64, stairsPenalty, alpha, p float64) float64 {
	total := 0.0
	for i := 0; i+1 < len(nodes); i++ {
		ei, ok := g.EdgeBetween(nodes[i], nodes[i+1])
		if !ok {
			continue
		}
		e := g.EdgeAt(ei)
		total += EdgeWeight(e, stairsPenalty)
		if c := congestion[e.ID]; c > 0 {
			total += alpha * math.Pow(c, p)
		}
	}
	return total
}

// ChooseRoute picks one path index by softmax over cost differences:
// weight_i = exp(−beta·(cost_i − min_cost)). beta = 0 is a uniform draw;
// beta → ∞ collapses to the minimum-cost path. Exactly one uniform variate
// is drawn from rng on every call, including the degenerate cases, so the
// stream position stays independent of beta.
func ChooseRoute(paths []Path, beta float64, rng *rand.Rand) int {
	u := rng.Float64()
	if len(paths) <= 1 {
		return 0
	}

	minCost := paths[0].Cost
	for _, p := range paths[1:] {
		if p.Cost < minCost {
			minCost = p.Cost
		}
	}

	if math.IsInf(beta, 1) {
		for i, p := range paths {
			if p.Cost == minCost {
				return i
			}
		}
	}

	weights := make([]float64, len(paths))
	total := 0.0
	for i, p := range paths {
		weights[i] = math.Exp(-beta * (p.Cost - minCost))
		total += weights[i]
	}

	target := u * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	return len(paths) - 1
}
