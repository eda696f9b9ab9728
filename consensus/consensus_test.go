package consensus

import (
	"os"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/markergraph"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/shasta-assembly/shasta-core/reads"
)

// buildFixture creates two identical reads sharing one marker, and their
// marker table, for vertex/edge consensus tests.
func buildFixture(t *testing.T, bases string) (*kmer.Table, *reads.Store, *markers.Table, reads.OrientedID, reads.OrientedID, func()) {
	t.Helper()
	dir, _ := testutil.TempDir(t, "", "")

	kt, err := kmer.Build(config.Kmer{K: 3, MarkerProbability: 1.0, Seed: 1})
	require.NoError(t, err)

	store, err := reads.Create(dir)
	require.NoError(t, err)

	b := []byte(bases)
	counts := make([]int, len(b))
	for i := range counts {
		counts[i] = 1
	}
	id0, err := store.AddRead(reads.Raw{Bases: b, Counts: counts})
	require.NoError(t, err)
	id1, err := store.AddRead(reads.Raw{Bases: b, Counts: counts})
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
	return kt, store, mt, o0, o1, cleanup
}

func TestVertexConsensusRecoversKmerAndUnanimousCounts(t *testing.T) {
	kt, store, mt, o0, o1, cleanup := buildFixture(t, "ACGACGT")
	defer cleanup()

	v := markergraph.Vertex{Markers: []markergraph.MarkerRef{
		{Oriented: o0, Ordinal: 0},
		{Oriented: o1, Ordinal: 0},
	}}
	bases, counts := VertexConsensus(mt, store, kt, v)
	require.Equal(t, []byte("ACG"), bases)
	require.Equal(t, []uint8{1, 1, 1}, counts)
}

func TestVertexConsensusBreaksTiesTowardLowerCount(t *testing.T) {
	dir, _ := testutil.TempDir(t, "", "")
	kt, err := kmer.Build(config.Kmer{K: 3, MarkerProbability: 1.0, Seed: 1})
	require.NoError(t, err)
	store, err := reads.Create(dir)
	require.NoError(t, err)

	bases := []byte("ACGACGT")
	lowCounts := make([]int, len(bases))
	highCounts := make([]int, len(bases))
	for i := range bases {
		lowCounts[i] = 1
		highCounts[i] = 2
	}
	id0, err := store.AddRead(reads.Raw{Bases: bases, Counts: lowCounts})
	require.NoError(t, err)
	id1, err := store.AddRead(reads.Raw{Bases: bases, Counts: highCounts})
	require.NoError(t, err)
	mt, err := markers.Build(dir, store, kt, 2)
	require.NoError(t, err)
	defer func() {
		mt.Close()
		store.Close()
		os.RemoveAll(dir)
	}()

	o0 := reads.NewOrientedID(id0, reads.Forward)
	o1 := reads.NewOrientedID(id1, reads.Forward)
	v := markergraph.Vertex{Markers: []markergraph.MarkerRef{
		{Oriented: o0, Ordinal: 0},
		{Oriented: o1, Ordinal: 0},
	}}
	_, counts := VertexConsensus(mt, store, kt, v)
	for _, c := range counts {
		require.EqualValues(t, 1, c, "a 1-vs-1 tie must resolve toward the lower repeat count")
	}
}

func TestEdgeConsensusOverlappingModeCarriesNoSequence(t *testing.T) {
	_, _, mt, o0, o1, cleanup := buildFixture(t, "ACGACGT")
	defer cleanup()

	// markers at ordinal 0 and ordinal 1 of a k=3 read are 1 base apart,
	// well within the overlapping-mode threshold (offset <= k).
	e := markergraph.Edge{Intervals: []markergraph.Interval{
		{Oriented: o0, Ordinal0: 0, Ordinal1: 1},
		{Oriented: o1, Ordinal0: 0, Ordinal1: 1},
	}}
	result := EdgeConsensus(config.Consensus{}, mt, nil, 3, e, []byte("ACG"), []byte("CGA"))
	require.Equal(t, ModeOverlapping, result.Mode)
	require.Equal(t, []byte("ACGCGA"), result.Bases)
	require.Equal(t, 1, result.Offset)
}

func TestEdgeConsensusSpanningModeBuildsConsensusFromIntervals(t *testing.T) {
	_, store, mt, o0, o1, cleanup := buildFixture(t, "AAAGGGCCCAAA")
	defer cleanup()

	// ordinal 0 sits at position 0, ordinal 4 at position 4: an offset of
	// 4 exceeds k=3, so this interval spans one intervening base (index 3).
	e := markergraph.Edge{Intervals: []markergraph.Interval{
		{Oriented: o0, Ordinal0: 0, Ordinal1: 4},
		{Oriented: o1, Ordinal0: 0, Ordinal1: 4},
	}}
	result := EdgeConsensus(config.Consensus{}, mt, store, 3, e, []byte("src"), []byte("tgt"))
	require.Equal(t, ModeSpanning, result.Mode)
	require.False(t, result.ShortCircuited)
	require.Equal(t, []byte("srcGtgt"), result.Bases)
}

func TestNeedlemanWunschAlignsIdenticalSequences(t *testing.T) {
	a, b := needlemanWunsch([]byte("ACGT"), []byte("ACGT"))
	require.Equal(t, []byte("ACGT"), a)
	require.Equal(t, []byte("ACGT"), b)
}

func TestNeedlemanWunschInsertsGapsForInsertion(t *testing.T) {
	alignedA, alignedB := needlemanWunsch([]byte("ACGT"), []byte("ACCGT"))
	require.Len(t, alignedA, len(alignedB))
	require.Contains(t, string(alignedA), "-")
}

func TestDedupeByFrequencyOrdersByCount(t *testing.T) {
	spanning := []interval{
		{bases: []byte("AA")},
		{bases: []byte("GG")},
		{bases: []byte("GG")},
		{bases: []byte("GG")},
	}
	ordered := dedupeByFrequency(spanning)
	require.Len(t, ordered, 2)
	require.Equal(t, []byte("GG"), ordered[0].bases, "the more frequent sequence must come first")
}

func TestVoteColumnsMajority(t *testing.T) {
	rows := []msaRow{
		{bases: []byte("AC"), counts: []uint8{1, 2}},
		{bases: []byte("AC"), counts: []uint8{1, 2}},
		{bases: []byte("AG"), counts: []uint8{1, 2}},
	}
	bases, counts := voteColumns(rows)
	require.Equal(t, []byte("AC"), bases)
	require.Equal(t, []uint8{1, 2}, counts)
}
