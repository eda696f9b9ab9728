package align

import (
	"testing"

	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/stretchr/testify/require"
)

func markerSeq(kmerIDs ...kmer.ID) []markers.Marker {
	out := make([]markers.Marker, len(kmerIDs))
	for i, id := range kmerIDs {
		out[i] = markers.Marker{KmerID: id, Position: uint32(i * 3), Ordinal: uint32(i)}
	}
	return out
}

func TestAlignIdenticalReads(t *testing.T) {
	m := markerSeq(1, 2, 3, 4, 5)
	alignment, summary := Align(m, m, Opts{MaxSkip: 5, MaxMarkerFrequency: 10})
	require.Len(t, alignment, 5)
	require.EqualValues(t, 5, summary.MarkerCount)
	for i, p := range alignment {
		require.EqualValues(t, i, p.Ordinal0)
		require.EqualValues(t, i, p.Ordinal1)
	}
}

func TestAlignNoSharedKmers(t *testing.T) {
	m0 := markerSeq(1, 2, 3)
	m1 := markerSeq(4, 5, 6)
	alignment, summary := Align(m0, m1, Opts{MaxSkip: 5, MaxMarkerFrequency: 10})
	require.Nil(t, alignment)
	require.EqualValues(t, 0, summary.MarkerCount)
}

func TestAlignRespectsMaxSkip(t *testing.T) {
	// ordinal gap of 4 on read0 between the two matches; maxSkip=1 forbids
	// chaining them into one alignment, so only the longer singleton
	// "chain" (length 1) survives either way.
	m0 := markerSeq(1, 99, 99, 99, 2)
	m1 := markerSeq(1, 2)
	alignment, _ := Align(m0, m1, Opts{MaxSkip: 1, MaxMarkerFrequency: 10})
	require.Len(t, alignment, 1)
}

func TestMaxMarkerFrequencyExcludesRepetitiveKmers(t *testing.T) {
	// kmer id 7 appears 3 times in read0: too repetitive, should be ignored.
	m0 := markerSeq(7, 7, 7, 42)
	m1 := markerSeq(7, 42)
	alignment, _ := Align(m0, m1, Opts{MaxSkip: 10, MaxMarkerFrequency: 2})
	for _, p := range alignment {
		require.NotEqual(t, kmer.ID(7), m0[p.Ordinal0].KmerID) // kmer 7 matches excluded
	}
}

func TestSummarySwapIsInvolution(t *testing.T) {
	m0 := markerSeq(1, 2, 3)
	m1 := markerSeq(1, 2, 3)
	_, summary := Align(m0, m1, Opts{MaxSkip: 5, MaxMarkerFrequency: 10})
	require.Equal(t, summary, summary.Swap().Swap())
}

func TestSummaryReverseComplementIsInvolution(t *testing.T) {
	m0 := markerSeq(1, 2, 3, 4)
	m1 := markerSeq(1, 2, 3, 4)
	_, summary := Align(m0, m1, Opts{MaxSkip: 5, MaxMarkerFrequency: 10})
	n0, n1 := uint32(len(m0)), uint32(len(m1))
	rc := summary.ReverseComplement(n0, n1).ReverseComplement(n0, n1)
	require.Equal(t, summary, rc)
}

func TestComputeTrimSymmetricUnderSwap(t *testing.T) {
	m0 := markerSeq(9, 1, 2, 3, 9)
	m1 := markerSeq(1, 2, 3)
	_, summary := Align(m0, m1, Opts{MaxSkip: 5, MaxMarkerFrequency: 10})
	n0, n1 := uint32(len(m0)), uint32(len(m1))
	trim := summary.ComputeTrim(n0, n1)
	trimSwapped := summary.Swap().ComputeTrim(n1, n0)
	require.Equal(t, trim, trimSwapped)
}

func TestPostFilterRejectsShortAlignment(t *testing.T) {
	m0 := markerSeq(1, 2)
	m1 := markerSeq(1, 2)
	alignment, _ := Align(m0, m1, Opts{
		MaxSkip: 5, MaxMarkerFrequency: 10,
		ApplyPostFilter: true, MinAlignedMarkerCount: 5, MaxTrim: 10,
	})
	require.Nil(t, alignment)
}
