package assembler

import (
	"os"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/reads"
)

func testConfig() config.Config {
	return config.Config{
		Kmer: config.Kmer{K: 4, MarkerProbability: 1.0, Seed: 1},
		LowHash: config.LowHash{
			M:               2,
			HashFraction:    1.0,
			Iterations:      1,
			Log2BucketCount: 1,
			MaxBucketSize:   1000,
			MinFrequency:    1,
		},
		Alignment: config.Alignment{
			MaxSkip:               5,
			MaxMarkerFrequency:    1000,
			MinAlignedMarkerCount: 1,
			MaxTrim:               1000,
		},
		ReadGraph: config.ReadGraph{
			MaxAlignmentCount:       10,
			MaxChimericReadDistance: 2,
			MinComponentSize:        1,
		},
		MarkerGraph: config.MarkerGraph{
			MinCoverage:             2,
			MaxCoverage:             2,
			LowCoverageThreshold:    0,
			HighCoverageThreshold:   1000,
			MaxDistance:             5,
			EdgeMarkerSkipThreshold: 5,
			PruneIterations:         0,
			MaxLengthVector:         nil,
		},
		Consensus: config.Consensus{},
	}
}

func TestBuildAssemblesTwoIdenticalReadsIntoOneSegment(t *testing.T) {
	dir, _ := testutil.TempDir(t, "", "")
	defer os.RemoveAll(dir)

	bases := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	counts := make([]int, len(bases))
	for i := range counts {
		counts[i] = 1
	}
	rawReads := []reads.Raw{
		{Bases: bases, Counts: counts},
		{Bases: bases, Counts: counts},
	}

	e, err := Build(dir, testConfig(), rawReads)
	require.NoError(t, err)
	defer e.Close()

	segments := e.Segments()
	require.NotEmpty(t, segments, "two identical reads should assemble into at least one segment")
	for _, s := range segments {
		require.NotEmpty(t, s.Bases)
		require.Equal(t, len(s.Bases), len(s.Counts))
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	dir, _ := testutil.TempDir(t, "", "")
	defer os.RemoveAll(dir)

	cfg := testConfig()
	cfg.Kmer.K = 0
	_, err := Build(dir, cfg, nil)
	require.Error(t, err)
}

func TestOverlapCIGARFlagsMismatches(t *testing.T) {
	in := []uint8{1, 1, 9, 9}
	out := []uint8{1, 1, 2, 3}
	cigar := overlapCIGAR(in, out, 2)
	require.Equal(t, "2X", cigar)
}

func TestOverlapCIGARMatchesIdenticalCounts(t *testing.T) {
	in := []uint8{5, 5, 1, 1}
	out := []uint8{1, 1, 9, 9}
	cigar := overlapCIGAR(in, out, 2)
	require.Equal(t, "2M", cigar)
}
