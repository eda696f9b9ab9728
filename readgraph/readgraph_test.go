package readgraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/reads"
)

func orientedF(id reads.ID) reads.OrientedID { return reads.NewOrientedID(id, reads.Forward) }

func TestInsertIsSymmetricAcrossStrandFlip(t *testing.T) {
	cfg := config.ReadGraph{}
	alignments := []Alignment{
		{Oriented0: orientedF(0), Oriented1: orientedF(1), MarkerCount: 10},
	}
	g := Build(cfg, 4, alignments)

	n0 := g.Neighbors(orientedF(0))
	require.Len(t, n0, 1)
	require.Equal(t, orientedF(1), n0[0].Other)

	// The strand-flipped partner edge must also exist.
	n0rev := g.Neighbors(orientedF(0).Twin())
	require.Len(t, n0rev, 1)
	require.Equal(t, orientedF(1).Twin(), n0rev[0].Other)
}

func TestMaxAlignmentCountCapsDegree(t *testing.T) {
	cfg := config.ReadGraph{MaxAlignmentCount: 1}
	alignments := []Alignment{
		{Oriented0: orientedF(0), Oriented1: orientedF(1), MarkerCount: 5},
		{Oriented0: orientedF(0), Oriented1: orientedF(2), MarkerCount: 50},
	}
	g := Build(cfg, 6, alignments)
	n0 := g.Neighbors(orientedF(0))
	require.Len(t, n0, 1)
	require.Equal(t, orientedF(2), n0[0].Other, "should keep the higher-scoring alignment")
}

func TestCrossStrandEdgesAreExcludedFromNeighbors(t *testing.T) {
	cfg := config.ReadGraph{}
	alignments := []Alignment{
		{Oriented0: orientedF(0), Oriented1: orientedF(1), MarkerCount: 10},
		{Oriented0: orientedF(0), Oriented1: orientedF(1).Twin(), MarkerCount: 10},
	}
	g := Build(cfg, 4, alignments)
	require.Empty(t, g.Neighbors(orientedF(0)))
}

func TestUsableReadsFiltersSmallComponents(t *testing.T) {
	cfg := config.ReadGraph{MinComponentSize: 4}
	alignments := []Alignment{
		{Oriented0: orientedF(0), Oriented1: orientedF(1), MarkerCount: 10},
	}
	g := Build(cfg, 4, alignments)
	require.Empty(t, g.UsableReads())
}

func TestChimeraDetectionFlagsBridgingRead(t *testing.T) {
	// Star topology: read 0 connects two otherwise-disconnected clusters
	// {1} and {2}; within radius 1, 1 and 2 cannot reach each other once
	// read 0's vertices are excluded, so read 0 should be flagged chimeric.
	cfg := config.ReadGraph{MaxChimericReadDistance: 1}
	alignments := []Alignment{
		{Oriented0: orientedF(0), Oriented1: orientedF(1), MarkerCount: 10},
		{Oriented0: orientedF(0), Oriented1: orientedF(2), MarkerCount: 10},
	}
	g := Build(cfg, 6, alignments)
	require.True(t, g.IsChimeric(0))
	require.False(t, g.IsChimeric(1))
}
