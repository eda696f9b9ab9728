package markergraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoveShortCyclesFlagsSelfEdge(t *testing.T) {
	// A single marker-graph edge whose source equals its target is already
	// a self-edge of the temporary assembly graph.
	g := &Graph{Edges: []Edge{
		{Source: 0, Target: 0, Coverage: 1},
	}}
	g.RemoveShortCycles(1)
	require.NotZero(t, g.Edges[0].Removed&ReasonShortCycle)
}

func TestRemoveShortCyclesFlagsReversedPair(t *testing.T) {
	// Two edges 0->1 and 1->0 with no other connections: the chain finder
	// merges them into a single self-edge chain of length 2, which
	// RemoveShortCycles must still catch.
	g := &Graph{Edges: []Edge{
		{Source: 0, Target: 1, Coverage: 1},
		{Source: 1, Target: 0, Coverage: 1},
	}}
	g.RemoveShortCycles(2)
	require.NotZero(t, g.Edges[0].Removed&ReasonShortCycle)
	require.NotZero(t, g.Edges[1].Removed&ReasonShortCycle)
}

func TestRemoveShortCyclesRespectsMaxLength(t *testing.T) {
	g := &Graph{Edges: []Edge{
		{Source: 0, Target: 1, Coverage: 1},
		{Source: 1, Target: 0, Coverage: 1},
	}}
	g.RemoveShortCycles(1) // the merged chain has length 2, over budget
	require.Zero(t, g.Edges[0].Removed)
	require.Zero(t, g.Edges[1].Removed)
}

func TestRemoveShortCyclesFlagsAsymmetricReversedPair(t *testing.T) {
	// A:0->1 and B:1->0 form the reversed pair, but E and F give vertex 0
	// an extra outgoing edge and vertex 1 an extra incoming edge, so the
	// chain finder cannot merge A and B into a single self-edge chain --
	// this exercises RemoveShortCycles' second (non-self-edge) branch.
	g := &Graph{Edges: []Edge{
		{Source: 0, Target: 1, Coverage: 1}, // A
		{Source: 1, Target: 0, Coverage: 1}, // B
		{Source: 0, Target: 2, Coverage: 1}, // E
		{Source: 2, Target: 1, Coverage: 1}, // F
	}}
	g.RemoveShortCycles(1)
	require.NotZero(t, g.Edges[0].Removed&ReasonShortCycle, "A should be flagged as the reversed-pair edge")
}

func TestRemoveShortCyclesDisabledAtZero(t *testing.T) {
	g := &Graph{Edges: []Edge{
		{Source: 0, Target: 0, Coverage: 1},
	}}
	g.RemoveShortCycles(0)
	require.Zero(t, g.Edges[0].Removed)
}

func TestSimplifyParallelEdgesFlagsLoserAsBubbleNotSuperbubble(t *testing.T) {
	// Two edges sharing source and target, each its own one-edge chain,
	// plus a third edge out of the shared source: the lower-coverage
	// parallel edge must be flagged ReasonBubble, not ReasonSuperbubble.
	g := &Graph{Edges: []Edge{
		{Source: 0, Target: 1, Coverage: 1}, // loser
		{Source: 0, Target: 1, Coverage: 5}, // winner
		{Source: 0, Target: 2, Coverage: 1}, // extra branch out of vertex 0
	}}
	g.SimplifyBubbles([]int{1})
	require.NotZero(t, g.Edges[0].Removed&ReasonBubble)
	require.Zero(t, g.Edges[0].Removed&ReasonSuperbubble)
	require.Zero(t, g.Edges[1].Removed, "the higher-coverage edge must survive")
}
