package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestEdgeWeight(t *testing.T) {
	e := testEdge("ab", "A", "B", 10, 2)
	assert.Equal(t, 5.0, EdgeWeight(e, 3.0))

	e.IsStairs = true
	assert.Equal(t, 8.0, EdgeWeight(e, 3.0))
}

func TestShortestPath_PicksCheaperTwoHop(t *testing.T) {
	g := diamondGraph(t)
	p, err := ShortestPath(g, "A", "D", 0)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"A", "B", "D"}, p.Nodes)
	assert.InDelta(t, 5.0, p.Cost, 1e-9)
}

func TestShortestPath_Unreachable(t *testing.T) {
	g := corridorGraph(t, 10, 2, 2.7)
	_, err := ShortestPath(g, "B", "A", 0)
	require.Error(t, err)
	assert.True(t, IsNoPath(err))
}

func TestShortestPath_UnknownNode(t *testing.T) {
	g := corridorGraph(t, 10, 2, 2.7)
	_, err := ShortestPath(g, "A", "nope", 0)
	assert.True(t, IsNoPath(err))
}

func TestAStarPath_CostMatchesShortestPath(t *testing.T) {
	g := diamondGraph(t)
	for _, penalty := range []float64{0, 2.5, 10} {
		want, err := ShortestPath(g, "A", "D", penalty)
		require.NoError(t, err)

		for _, h := range []Heuristic{HeuristicZero, HeuristicEuclidean} {
			got, err := AStarPath(g, "A", "D", h, penalty)
			require.NoError(t, err)
			assert.InDelta(t, want.Cost, got.Cost, 1e-9, "heuristic=%v penalty=%v", h, penalty)
		}
	}
}

func TestAStarPath_StairsPenaltyFlipsChoice(t *testing.T) {
	// The cheap route over stairs loses once the surcharge dominates.
	g := mustGraph(t,
		[]Node{testNode("A", 0, 0), testNode("B", 5, 0), testNode("C", 5, 5), testNode("D", 10, 0)},
		[]Edge{
			{ID: "ab", From: "A", To: "B", Length: 5, Width: 2, CapacityPPS: 5, IsStairs: true},
			testEdge("bd", "B", "D", 5, 2),
			testEdge("ac", "A", "C", 7, 1),
			testEdge("cd", "C", "D", 7, 1),
		},
	)
	p, err := ShortestPath(g, "A", "D", 0)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"A", "B", "D"}, p.Nodes)

	p, err = ShortestPath(g, "A", "D", 20)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"A", "C", "D"}, p.Nodes)
}

func TestKShortestPaths_OrderedAndLoopless(t *testing.T) {
	// Diamond plus a direct edge: costs 5 (A-B-D), 12 (A-D), 14 (A-C-D).
	g := mustGraph(t,
		[]Node{testNode("A", 0, 0), testNode("B", 5, 0), testNode("C", 5, 5), testNode("D", 10, 0)},
		[]Edge{
			testEdge("ab", "A", "B", 5, 2),
			testEdge("bd", "B", "D", 5, 2),
			testEdge("ac", "A", "C", 7, 1),
			testEdge("cd", "C", "D", 7, 1),
			testEdge("ad", "A", "D", 12, 1),
		},
	)
	paths, err := KShortestPaths(g, "A", "D", 3, 0)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, []NodeID{"A", "B", "D"}, paths[0].Nodes)
	assert.Equal(t, []NodeID{"A", "D"}, paths[1].Nodes)
	assert.Equal(t, []NodeID{"A", "C", "D"}, paths[2].Nodes)
	for i := 1; i < len(paths); i++ {
		assert.GreaterOrEqual(t, paths[i].Cost, paths[i-1].Cost)
	}
	for _, p := range paths {
		seen := map[NodeID]bool{}
		for _, n := range p.Nodes {
			assert.False(t, seen[n], "path %v revisits %s", p.Nodes, n)
			seen[n] = true
		}
	}
}

func TestKShortestPaths_FewerThanK(t *testing.T) {
	g := corridorGraph(t, 10, 2, 2.7)
	paths, err := KShortestPaths(g, "A", "B", 5, 0)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestPathCost_MonotoneInCongestion(t *testing.T) {
	g := diamondGraph(t)
	path := []NodeID{"A", "B", "D"}

	base := PathCost(g, path, nil, 0, 0.5, 2)
	assert.InDelta(t, 5.0, base, 1e-9, "zero congestion adds nothing")

	prev := base
	for c := 1.0; c <= 16; c *= 2 {
		cost := PathCost(g, path, map[EdgeID]float64{"bd": c}, 0, 0.5, 2)
		assert.Greater(t, cost, prev, "cost must be strictly increasing in congestion")
		prev = cost
	}

	// Congestion on an edge off the path is ignored.
	off := PathCost(g, path, map[EdgeID]float64{"cd": 50}, 0, 0.5, 2)
	assert.InDelta(t, base, off, 1e-9)
}

func TestChooseRoute_CollapsesAtHighBeta(t *testing.T) {
	paths := []Path{{Cost: 14}, {Cost: 5}, {Cost: 12}}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, ChooseRoute(paths, 1000, rng))
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, ChooseRoute(paths, math.Inf(1), rng))
	}
}

func TestChooseRoute_UniformAtZeroBeta(t *testing.T) {
	paths := []Path{{Cost: 5}, {Cost: 500}, {Cost: 50000}}
	rng := rand.New(rand.NewSource(11))
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[ChooseRoute(paths, 0, rng)]++
	}
	for i, c := range counts {
		assert.Greater(t, c, 800, "index %d starved under uniform choice", i)
	}
}

func TestChooseRoute_ConsumesExactlyOneVariate(t *testing.T) {
	paths := []Path{{Cost: 5}, {Cost: 6}}
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))

	ChooseRoute(paths, 2.0, a)
	b.Float64() // the one variate the call must have drawn

	assert.Equal(t, b.Float64(), a.Float64(), "streams must stay in lockstep")
}

func TestChooseRoute_SingleCandidateStillDraws(t *testing.T) {
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))

	assert.Equal(t, 0, ChooseRoute([]Path{{Cost: 5}}, 3.0, a))
	b.Float64()
	assert.Equal(t, b.Float64(), a.Float64())
}
