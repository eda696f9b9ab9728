package lowhash

import (
	"os"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/shasta-assembly/shasta-core/reads"
)

// buildFixture creates a tiny read store (two identical reads, so every
// feature collides) plus its marker and kmer tables.
func buildFixture(t *testing.T) (*reads.Store, *markers.Table, func()) {
	t.Helper()
	dir, _ := testutil.TempDir(t, "", "")

	kt, err := kmer.Build(config.Kmer{K: 4, MarkerProbability: 1.0, Seed: 1})
	require.NoError(t, err)

	store, err := reads.Create(dir)
	require.NoError(t, err)

	bases := []byte("ACGTACGTACGTACGTACGT")
	counts := make([]int, len(bases))
	for i := range counts {
		counts[i] = 1
	}
	_, err = store.AddRead(reads.Raw{Bases: bases, Counts: counts})
	require.NoError(t, err)
	_, err = store.AddRead(reads.Raw{Bases: bases, Counts: counts})
	require.NoError(t, err)

	mt, err := markers.Build(dir, store, kt, 2)
	require.NoError(t, err)

	cleanup := func() {
		mt.Close()
		store.Close()
		os.RemoveAll(dir)
	}
	return store, mt, cleanup
}

func TestFindDetectsIdenticalReadPair(t *testing.T) {
	store, mt, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.LowHash{
		M:               3,
		HashFraction:    1.0, // accept every feature as a low hash
		Iterations:      2,
		Log2BucketCount: 4,
		MaxBucketSize:   1000,
		MinFrequency:    1,
	}
	candidates, err := Find(cfg, store, mt)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	found := false
	for _, c := range candidates {
		if c.Pair.ReadID0 == 0 && c.Pair.ReadID1 == 1 {
			found = true
			require.NotEmpty(t, c.Witnesses)
		}
	}
	require.True(t, found, "expected a candidate pair between read 0 and read 1")
}

func TestFindExcludesSelfPairs(t *testing.T) {
	store, mt, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.LowHash{
		M:               3,
		HashFraction:    1.0,
		Iterations:      1,
		Log2BucketCount: 4,
		MaxBucketSize:   1000,
		MinFrequency:    1,
	}
	candidates, err := Find(cfg, store, mt)
	require.NoError(t, err)
	for _, c := range candidates {
		require.NotEqual(t, c.Pair.ReadID0, c.Pair.ReadID1)
	}
}

func TestFindRespectsMinFrequency(t *testing.T) {
	store, mt, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.LowHash{
		M:               3,
		HashFraction:    1.0,
		Iterations:      1,
		Log2BucketCount: 4,
		MaxBucketSize:   1000,
		MinFrequency:    1000000, // unreachable
	}
	candidates, err := Find(cfg, store, mt)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestFindDiscardsOversizedBuckets(t *testing.T) {
	store, mt, cleanup := buildFixture(t)
	defer cleanup()

	cfg := config.LowHash{
		M:               3,
		HashFraction:    1.0,
		Iterations:      1,
		Log2BucketCount: 0, // a single bucket holding every feature
		MaxBucketSize:   1,
		MinFrequency:    1,
	}
	candidates, err := Find(cfg, store, mt)
	require.NoError(t, err)
	require.Empty(t, candidates)
}
