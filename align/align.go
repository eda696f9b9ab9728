// Package align implements the alignment engine (spec §4.2): given the
// marker sequences of two oriented reads, compute the sequence of aligned
// (ordinal0, ordinal1) pairs via a banded/pruned shortest path over the
// bipartite alignment DAG whose vertices are candidate matched ordinal
// pairs and whose edges connect (i0,i1) -> (j0,j1) when both ordinal gaps
// are in (0, maxSkip].
package align

import (
	"sort"

	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/markers"
)

// Pair is one aligned ordinal pair.
type Pair struct {
	Ordinal0, Ordinal1 uint32
}

// Summary is the alignment summary of spec §3: first/last aligned ordinal
// pair and marker count, plus the swap/reverseComplement/computeTrim
// transformations.
type Summary struct {
	FirstOrdinals Pair
	LastOrdinals  Pair
	MarkerCount   uint32
}

// NewSummary computes the summary of an alignment (a sequence of ordinal
// pairs strictly increasing in both coordinates).
func NewSummary(alignment []Pair) Summary {
	var s Summary
	s.MarkerCount = uint32(len(alignment))
	if s.MarkerCount > 0 {
		s.FirstOrdinals = alignment[0]
		s.LastOrdinals = alignment[len(alignment)-1]
	}
	return s
}

// Swap updates the summary to reflect exchanging the two oriented reads.
func (s Summary) Swap() Summary {
	s.FirstOrdinals.Ordinal0, s.FirstOrdinals.Ordinal1 = s.FirstOrdinals.Ordinal1, s.FirstOrdinals.Ordinal0
	s.LastOrdinals.Ordinal0, s.LastOrdinals.Ordinal1 = s.LastOrdinals.Ordinal1, s.LastOrdinals.Ordinal0
	return s
}

// ReverseComplement updates the summary to reflect reverse-complementing
// both reads, given their total marker counts. This follows
// Alignment.hpp's reverseComplement exactly (spec §9 SUPPLEMENTED
// FEATURES #1): swap first/last per read, then negate against
// markerCount-1.
func (s Summary) ReverseComplement(markerCount0, markerCount1 uint32) Summary {
	s.FirstOrdinals.Ordinal0, s.LastOrdinals.Ordinal0 = s.LastOrdinals.Ordinal0, s.FirstOrdinals.Ordinal0
	s.FirstOrdinals.Ordinal0 = markerCount0 - 1 - s.FirstOrdinals.Ordinal0
	s.LastOrdinals.Ordinal0 = markerCount0 - 1 - s.LastOrdinals.Ordinal0

	s.FirstOrdinals.Ordinal1, s.LastOrdinals.Ordinal1 = s.LastOrdinals.Ordinal1, s.FirstOrdinals.Ordinal1
	s.FirstOrdinals.Ordinal1 = markerCount1 - 1 - s.FirstOrdinals.Ordinal1
	s.LastOrdinals.Ordinal1 = markerCount1 - 1 - s.LastOrdinals.Ordinal1
	return s
}

// Trim is the (leftTrim, rightTrim) pair computed by ComputeTrim.
type Trim struct {
	Left, Right uint32
}

// ComputeTrim computes the left and right trim in markers (spec §3): the
// minimum, over the two oriented reads, of the number of markers excluded
// from the alignment on that side. Symmetric under Swap, per spec §8.
func (s Summary) ComputeTrim(markerCount0, markerCount1 uint32) Trim {
	if s.MarkerCount == 0 {
		t := markerCount0
		if markerCount1 < t {
			t = markerCount1
		}
		return Trim{t, t}
	}
	left := s.FirstOrdinals.Ordinal0
	if s.FirstOrdinals.Ordinal1 < left {
		left = s.FirstOrdinals.Ordinal1
	}
	right0 := markerCount0 - 1 - s.LastOrdinals.Ordinal0
	right1 := markerCount1 - 1 - s.LastOrdinals.Ordinal1
	right := right0
	if right1 < right {
		right = right1
	}
	return Trim{left, right}
}

// Opts holds the alignment-engine and post-filter parameters (spec §4.2).
type Opts struct {
	MaxSkip               int
	MaxMarkerFrequency    int
	MinAlignedMarkerCount int
	MaxTrim               int
	ApplyPostFilter       bool
}

// candidate is a vertex of the bipartite alignment DAG: a pair of
// ordinals sharing a k-mer id.
type candidate struct {
	ordinal0, ordinal1 uint32
}

// Align computes the alignment between two marker sequences. markers0 and
// markers1 must each be sorted by ordinal (the natural order returned by
// markers.Table.All). The result is empty (never an error: spec §4.2
// "never fatal") when no path meets the criteria.
func Align(markers0, markers1 []markers.Marker, opts Opts) ([]Pair, Summary) {
	candidates := findCandidates(markers0, markers1, opts.MaxMarkerFrequency)
	if len(candidates) == 0 {
		return nil, Summary{}
	}

	// Longest strictly-increasing-in-both-coordinates chain under the
	// maxSkip edge rule, by dynamic programming over candidates sorted by
	// (ordinal0, ordinal1). best[i] = length of the best chain ending at
	// candidates[i]; prev[i] backpointers reconstruct it.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ordinal0 != candidates[j].ordinal0 {
			return candidates[i].ordinal0 < candidates[j].ordinal0
		}
		return candidates[i].ordinal1 < candidates[j].ordinal1
	})

	n := len(candidates)
	best := make([]int, n)
	prev := make([]int, n)
	bestIdx := 0
	for i := range candidates {
		best[i] = 1
		prev[i] = -1
		for j := i - 1; j >= 0; j-- {
			d0 := int(candidates[i].ordinal0) - int(candidates[j].ordinal0)
			d1 := int(candidates[i].ordinal1) - int(candidates[j].ordinal1)
			if d0 <= 0 || d1 <= 0 {
				continue
			}
			if d0 > opts.MaxSkip || d1 > opts.MaxSkip {
				continue
			}
			if best[j]+1 > best[i] {
				best[i] = best[j] + 1
				prev[i] = j
			}
		}
		if best[i] > best[bestIdx] {
			bestIdx = i
		}
	}

	// Reconstruct the winning chain.
	var chain []int
	for i := bestIdx; i != -1; i = prev[i] {
		chain = append(chain, i)
	}
	alignment := make([]Pair, len(chain))
	for i, ci := range chain {
		c := candidates[ci]
		alignment[len(chain)-1-i] = Pair{c.ordinal0, c.ordinal1}
	}

	summary := NewSummary(alignment)
	if opts.ApplyPostFilter {
		if int(summary.MarkerCount) < opts.MinAlignedMarkerCount {
			return nil, Summary{}
		}
		trim := summary.ComputeTrim(uint32(len(markers0)), uint32(len(markers1)))
		if int(trim.Left) > opts.MaxTrim || int(trim.Right) > opts.MaxTrim {
			return nil, Summary{}
		}
	}
	return alignment, summary
}

// findCandidates returns every ordinal pair sharing a k-mer id, excluding
// k-mers that occur more than maxMarkerFrequency times in either read
// (spec §4.2: "k-mers appearing more times than this in either read are
// ignored -- they are repetitive and poison the alignment").
func findCandidates(markers0, markers1 []markers.Marker, maxMarkerFrequency int) []candidate {
	freq0 := make(map[kmer.ID]int)
	for _, m := range markers0 {
		freq0[m.KmerID]++
	}
	freq1 := make(map[kmer.ID]int)
	for _, m := range markers1 {
		freq1[m.KmerID]++
	}

	byKmer1 := make(map[kmer.ID][]uint32)
	for _, m := range markers1 {
		if freq1[m.KmerID] > maxMarkerFrequency {
			continue
		}
		byKmer1[m.KmerID] = append(byKmer1[m.KmerID], m.Ordinal)
	}

	var out []candidate
	for _, m := range markers0 {
		if freq0[m.KmerID] > maxMarkerFrequency {
			continue
		}
		for _, ord1 := range byKmer1[m.KmerID] {
			out = append(out, candidate{m.Ordinal, ord1})
		}
	}
	return out
}
