package markergraph

import (
	"os"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"

	"github.com/shasta-assembly/shasta-core/align"
	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/shasta-assembly/shasta-core/reads"
)

// buildFixture creates two identical reads (so every marker pair unions)
// plus their marker table, matching spec §8 scenario 1.
func buildFixture(t *testing.T) (*markers.Table, reads.OrientedID, reads.OrientedID, func()) {
	t.Helper()
	dir, _ := testutil.TempDir(t, "", "")

	kt, err := kmer.Build(config.Kmer{K: 3, MarkerProbability: 1.0, Seed: 1})
	require.NoError(t, err)

	store, err := reads.Create(dir)
	require.NoError(t, err)

	bases := []byte("ACGACGT")
	counts := make([]int, len(bases))
	for i := range counts {
		counts[i] = 1
	}
	id0, err := store.AddRead(reads.Raw{Bases: bases, Counts: counts})
	require.NoError(t, err)
	id1, err := store.AddRead(reads.Raw{Bases: bases, Counts: counts})
	require.NoError(t, err)

	mt, err := markers.Build(dir, store, kt, 2)
	require.NoError(t, err)

	o0 := reads.NewOrientedID(id0, reads.Forward)
	o1 := reads.NewOrientedID(id1, reads.Forward)

	cleanup := func() {
		mt.Close()
		store.Close()
		os.RemoveAll(dir)
	}
	return mt, o0, o1, cleanup
}

func identityAlignment(mt *markers.Table, o0, o1 reads.OrientedID) AlignmentOrdinals {
	n := mt.Count(o0)
	pairs := make([]align.Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = align.Pair{Ordinal0: uint32(i), Ordinal1: uint32(i)}
	}
	return AlignmentOrdinals{Oriented0: o0, Oriented1: o1, Pairs: pairs}
}

func TestBuildMergesIdenticalReadsIntoVertices(t *testing.T) {
	mt, o0, o1, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.MarkerGraph{MinCoverage: 2, MaxCoverage: 2, EdgeMarkerSkipThreshold: 5}
	g, err := Build(cfg, mt, []AlignmentOrdinals{identityAlignment(mt, o0, o1)}, nil)
	require.NoError(t, err)

	// read length 7, k=3 => 5 markers, all coverage-2 vertices.
	require.Len(t, g.Vertices, 5)
	for _, v := range g.Vertices {
		require.Len(t, v.Markers, 2)
	}
}

func TestCoverageFilterRejectsOutOfRangeSets(t *testing.T) {
	mt, o0, o1, cleanup := buildFixture(t)
	defer cleanup()

	// minCoverage=3 is unreachable with only two identical reads (coverage 2).
	cfg := config.MarkerGraph{MinCoverage: 3, MaxCoverage: 3, EdgeMarkerSkipThreshold: 5}
	g, err := Build(cfg, mt, []AlignmentOrdinals{identityAlignment(mt, o0, o1)}, nil)
	require.NoError(t, err)
	require.Empty(t, g.Vertices)
}

func TestChimericAlignmentsAreSkipped(t *testing.T) {
	mt, o0, o1, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.MarkerGraph{MinCoverage: 2, MaxCoverage: 2, EdgeMarkerSkipThreshold: 5}
	chimeric := func(id reads.ID) bool { return id == o1.ReadID() }
	g, err := Build(cfg, mt, []AlignmentOrdinals{identityAlignment(mt, o0, o1)}, chimeric)
	require.NoError(t, err)
	require.Empty(t, g.Vertices, "the only alignment is incident to a chimeric read")
}

func TestEdgesFormLinearChain(t *testing.T) {
	mt, o0, o1, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.MarkerGraph{MinCoverage: 2, MaxCoverage: 2, EdgeMarkerSkipThreshold: 5}
	g, err := Build(cfg, mt, []AlignmentOrdinals{identityAlignment(mt, o0, o1)}, nil)
	require.NoError(t, err)

	require.Len(t, g.Edges, 4) // 5 vertices in a line => 4 edges
	for _, e := range g.Edges {
		require.EqualValues(t, 2, e.Coverage)
	}
}

func TestPruneLeavesIsIdempotentAfterConvergence(t *testing.T) {
	mt, o0, o1, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.MarkerGraph{MinCoverage: 2, MaxCoverage: 2, EdgeMarkerSkipThreshold: 5}
	g, err := Build(cfg, mt, []AlignmentOrdinals{identityAlignment(mt, o0, o1)}, nil)
	require.NoError(t, err)

	g.PruneLeaves(10)
	snapshot := make([]uint8, len(g.Edges))
	for i, e := range g.Edges {
		snapshot[i] = e.Removed
	}
	g.PruneLeaves(10)
	for i, e := range g.Edges {
		require.Equal(t, snapshot[i], e.Removed, "pruning should be idempotent once converged")
	}
}
