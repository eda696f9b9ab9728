// Package config defines the parameter block that drives every phase of
// the assembly engine. It owns no state of its own; Validate performs the
// "Invalid input" checks of the error-handling design so that a caller
// (a CLI, a test, a notebook) fails fast instead of letting a bad
// parameter silently degrade a later phase.
package config

import (
	"github.com/grailbio/base/errors"
)

// Kmer holds the marker-selection parameters.
type Kmer struct {
	// K is the k-mer length used for markers. Must be <= MaxK.
	K int
	// MarkerProbability is the probability that a given k-mer id is
	// selected as a marker. Must be in (0, 1].
	MarkerProbability float64
	// Seed seeds the pseudo-random marker selection.
	Seed uint32
}

// MaxK is the largest k-mer length accepted for markers. A k-mer id packs
// 2 bits per base into a uint64.
const MaxK = 30

// LowHash holds the locality-sensitive-hashing candidate-finder parameters
// (spec §4.1).
type LowHash struct {
	// M is the number of consecutive markers that make up one feature.
	M int
	// HashFraction is the fraction of the 64-bit hash space retained as
	// "low hashes". Must be in (0, 1].
	HashFraction float64
	// Iterations is the number of independent LowHash passes.
	Iterations int
	// Log2BucketCount is the base-2 log of the number of buckets used to
	// group low hashes within one iteration.
	Log2BucketCount int
	// MaxBucketSize discards buckets exceeding this size.
	MaxBucketSize int
	// MinFrequency is the minimum number of distinct feature collisions
	// (across all iterations) required for a pair to become a candidate.
	MinFrequency int
}

// Alignment holds the marker-alignment engine parameters (spec §4.2).
type Alignment struct {
	// MaxSkip is the largest ordinal gap tolerated between consecutive
	// aligned markers on either read.
	MaxSkip int
	// MaxMarkerFrequency: k-mers occurring more than this many times in
	// either read are excluded from the alignment (too repetitive).
	MaxMarkerFrequency int
	// MinAlignedMarkerCount is the post-filter minimum alignment length.
	MinAlignedMarkerCount int
	// MaxTrim is the post-filter maximum trim on either side.
	MaxTrim int
}

// ReadGraph holds read-graph / chimera-detection parameters (spec §4.3).
type ReadGraph struct {
	// MaxAlignmentCount caps the number of kept alignments per oriented
	// read (the highest-scoring alignments are kept).
	MaxAlignmentCount int
	// MaxChimericReadDistance is the BFS radius used by chimera detection.
	MaxChimericReadDistance int
	// MinComponentSize discards read-graph connected components smaller
	// than this (isolated reads are unassemblable).
	MinComponentSize int
}

// MarkerGraph holds marker-graph construction and cleanup parameters
// (spec §4.4, §4.5).
type MarkerGraph struct {
	// MinCoverage, MaxCoverage bound the disjoint-set size accepted as a
	// vertex.
	MinCoverage int
	MaxCoverage int
	// LowCoverageThreshold, HighCoverageThreshold bound the ascending
	// coverage-ordered sweep of approximate transitive reduction.
	LowCoverageThreshold  int
	HighCoverageThreshold int
	// MaxDistance is the BFS depth bound for transitive reduction.
	MaxDistance int
	// EdgeMarkerSkipThreshold bounds how far Phase 6 (edge discovery)
	// walks forward along an oriented read looking for the next marker
	// that belongs to a vertex, before giving up on that marker.
	EdgeMarkerSkipThreshold int
	// PruneIterations is the number of leaf-pruning iterations.
	PruneIterations int
	// MaxLengthVector is the ascending sequence of chain-length
	// thresholds used by bubble/superbubble simplification.
	MaxLengthVector []int
	// ShortCycleMaxLength bounds the chain length (in marker-graph
	// edges) of an assembly-graph self-edge or reversed-edge pair
	// eligible for short-cycle removal; 0 disables the pass.
	ShortCycleMaxLength int
}

// Consensus holds consensus-engine parameters (spec §4.7).
type Consensus struct {
	// MarkerGraphEdgeLengthThresholdForConsensus bounds the length of an
	// individual marker interval; longer intervals short-circuit to
	// "copy the shortest interval" rather than running POA.
	MarkerGraphEdgeLengthThresholdForConsensus int
}

// Config is the complete parameter block consumed by the engine (spec §6).
type Config struct {
	Kmer        Kmer
	LowHash     LowHash
	Alignment   Alignment
	ReadGraph   ReadGraph
	MarkerGraph MarkerGraph
	Consensus   Consensus
}

// Validate checks the configuration for the "Invalid input" conditions of
// the error-handling design (spec §7) and returns an error of kind
// errors.Invalid on the first violation found. nil means the configuration
// may be used to run the pipeline.
func (c *Config) Validate() error {
	switch {
	case c.Kmer.K <= 0 || c.Kmer.K > MaxK:
		return errors.E(errors.Invalid, "config: k must be in (0, %d], got %d", MaxK, c.Kmer.K)
	case c.Kmer.MarkerProbability <= 0 || c.Kmer.MarkerProbability > 1:
		return errors.E(errors.Invalid, "config: marker selection probability must be in (0, 1], got %v", c.Kmer.MarkerProbability)
	case c.LowHash.M <= 0:
		return errors.E(errors.Invalid, "config: lowhash m must be > 0")
	case c.LowHash.HashFraction <= 0 || c.LowHash.HashFraction > 1:
		return errors.E(errors.Invalid, "config: lowhash hashFraction must be in (0, 1], got %v", c.LowHash.HashFraction)
	case c.LowHash.Iterations <= 0:
		return errors.E(errors.Invalid, "config: lowhash iterations must be > 0")
	case c.LowHash.Log2BucketCount < 1 || c.LowHash.Log2BucketCount > 63:
		return errors.E(errors.Invalid, "config: lowhash log2BucketCount must be in [1, 63], got %d", c.LowHash.Log2BucketCount)
	case c.LowHash.MaxBucketSize <= 0:
		return errors.E(errors.Invalid, "config: lowhash maxBucketSize must be > 0")
	case c.LowHash.MinFrequency <= 0:
		return errors.E(errors.Invalid, "config: lowhash minFrequency must be > 0")
	case c.Alignment.MaxSkip <= 0:
		return errors.E(errors.Invalid, "config: alignment maxSkip must be > 0")
	case c.Alignment.MaxMarkerFrequency <= 0:
		return errors.E(errors.Invalid, "config: alignment maxMarkerFrequency must be > 0")
	case c.MarkerGraph.MinCoverage <= 0 || c.MarkerGraph.MinCoverage > c.MarkerGraph.MaxCoverage:
		return errors.E(errors.Invalid, "config: marker graph minCoverage/maxCoverage out of order: %d/%d",
			c.MarkerGraph.MinCoverage, c.MarkerGraph.MaxCoverage)
	case c.MarkerGraph.MaxCoverage > 255:
		return errors.E(errors.Invalid, "config: marker graph maxCoverage must be <= 255, got %d", c.MarkerGraph.MaxCoverage)
	case c.MarkerGraph.LowCoverageThreshold > c.MarkerGraph.HighCoverageThreshold:
		return errors.E(errors.Invalid, "config: lowCoverageThreshold must be <= highCoverageThreshold")
	case c.MarkerGraph.MaxDistance <= 0:
		return errors.E(errors.Invalid, "config: marker graph maxDistance must be > 0")
	case c.MarkerGraph.PruneIterations < 0:
		return errors.E(errors.Invalid, "config: marker graph pruneIterations must be >= 0")
	case c.MarkerGraph.ShortCycleMaxLength < 0:
		return errors.E(errors.Invalid, "config: marker graph shortCycleMaxLength must be >= 0")
	}
	for i := 1; i < len(c.MarkerGraph.MaxLengthVector); i++ {
		if c.MarkerGraph.MaxLengthVector[i] < c.MarkerGraph.MaxLengthVector[i-1] {
			return errors.E(errors.Invalid, "config: maxLengthVector must be non-decreasing")
		}
	}
	return nil
}
