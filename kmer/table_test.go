package kmer

import (
	"testing"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	bases := []byte("ACGTACGT")
	id := Encode(bases)
	require.Equal(t, bases, Decode(id, len(bases)))
}

func TestReverseComplementIsInvolution(t *testing.T) {
	tbl, err := Build(config.Kmer{K: 5, MarkerProbability: 0.5, Seed: 42})
	require.NoError(t, err)
	for id := ID(0); int(id) < tbl.Size(); id++ {
		rc := tbl.ReverseComplement(id)
		require.Equal(t, id, tbl.ReverseComplement(rc), "twin(twin(%d)) != %d", id, id)
	}
}

func TestMarkerFlagSymmetricUnderReverseComplement(t *testing.T) {
	tbl, err := Build(config.Kmer{K: 6, MarkerProbability: 0.3, Seed: 7})
	require.NoError(t, err)
	for id := ID(0); int(id) < tbl.Size(); id++ {
		rc := tbl.ReverseComplement(id)
		require.Equal(t, tbl.IsMarker(id), tbl.IsMarker(rc))
	}
}

func TestBuildRejectsBadK(t *testing.T) {
	_, err := Build(config.Kmer{K: 0, MarkerProbability: 0.5})
	require.Error(t, err)
	_, err = Build(config.Kmer{K: config.MaxK + 1, MarkerProbability: 0.5})
	require.Error(t, err)
}
