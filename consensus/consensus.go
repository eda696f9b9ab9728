// Package consensus implements the consensus engine (spec §4.7): vertex
// consensus by repeat-count majority vote, and edge consensus via a
// progressive partial-order-alignment-style multiple sequence alignment
// over the deduplicated intervening sequences of a marker-graph edge's
// marker intervals.
//
// No partial-order-alignment library appears anywhere in the example
// pack, so the multiple sequence alignment here is implemented directly:
// a progressive profile alignment built from repeated pairwise
// Needleman-Wunsch global alignment against a running column-majority
// profile, the textbook approximation to true POA (see DESIGN.md).
package consensus

import (
	"sort"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/markergraph"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/shasta-assembly/shasta-core/reads"
)

// Mode distinguishes the two edge-consensus regimes of spec §4.7.
type Mode int

const (
	ModeOverlapping Mode = iota
	ModeSpanning
)

// Result is the output of EdgeConsensus.
type Result struct {
	Bases          []byte
	Counts         []uint8
	Mode           Mode
	Offset         int // the majority offset, meaningful only in ModeOverlapping
	ShortCircuited bool
}

// VertexConsensus computes a marker-graph vertex's consensus sequence
// (its k-mer, spec §4.7) and the per-position repeat-count consensus,
// majority-voted over the run-length counts of every contributing marker,
// ties broken toward the lower count.
func VertexConsensus(mt *markers.Table, store *reads.Store, kt *kmer.Table, v markergraph.Vertex) ([]byte, []uint8) {
	first := v.Markers[0]
	marker := mt.At(first.Oriented, first.Ordinal)
	k := kt.K()
	bases := kmer.Decode(marker.KmerID, k)

	counts := make([]uint8, k)
	for col := 0; col < k; col++ {
		tally := make(map[uint8]int)
		for _, m := range v.Markers {
			mk := mt.At(m.Oriented, m.Ordinal)
			rowCounts := store.Counts(m.Oriented)
			tally[rowCounts[int(mk.Position)+col]]++
		}
		counts[col] = majorityCount(tally)
	}
	return bases, counts
}

// majorityCount picks the tally's majority key, ties broken toward the
// lower value.
func majorityCount(tally map[uint8]int) uint8 {
	var best uint8
	bestCount := -1
	for count, n := range tally {
		if n > bestCount || (n == bestCount && count < best) {
			best = count
			bestCount = n
		}
	}
	return best
}

// interval is one surviving (non-discarded) marker interval of an edge,
// with its classification already resolved.
type interval struct {
	bases  []byte
	counts []uint8
	offset int
}

// EdgeConsensus computes a marker-graph edge's consensus (spec §4.7).
// sourceFlank/targetFlank are the k-length consensus bases of the edge's
// source and target vertices (from VertexConsensus), prepended/appended
// to the spanning-mode result.
func EdgeConsensus(cfg config.Consensus, mt *markers.Table, store *reads.Store, k int, e markergraph.Edge, sourceFlank, targetFlank []byte) Result {
	var overlapping, spanning []interval
	for _, iv := range e.Intervals {
		pos0 := mt.At(iv.Oriented, int(iv.Ordinal0)).Position
		pos1 := mt.At(iv.Oriented, int(iv.Ordinal1)).Position
		offset := int(pos1) - int(pos0)
		if offset <= k {
			overlapping = append(overlapping, interval{offset: offset})
			continue
		}
		bases := store.Bases(iv.Oriented)[int(pos0)+k : int(pos1)]
		counts := store.Counts(iv.Oriented)[int(pos0)+k : int(pos1)]
		spanning = append(spanning, interval{bases: append([]byte(nil), bases...), counts: append([]uint8(nil), counts...), offset: offset})
	}

	if len(overlapping) >= len(spanning) {
		return overlappingConsensus(overlapping, sourceFlank, targetFlank)
	}
	return spanningConsensus(cfg, spanning, sourceFlank, targetFlank)
}

// overlappingConsensus implements spec §4.7's overlapping-markers mode:
// no intervening sequence, consensus derived from the flanking k-mers and
// the most frequent offset; repeat counts are zero placeholders.
func overlappingConsensus(overlapping []interval, sourceFlank, targetFlank []byte) Result {
	tally := make(map[int]int)
	for _, iv := range overlapping {
		tally[iv.offset]++
	}
	bestOffset, bestCount := 0, -1
	for offset, n := range tally {
		if n > bestCount || (n == bestCount && offset < bestOffset) {
			bestOffset, bestCount = offset, n
		}
	}
	bases := append(append([]byte(nil), sourceFlank...), targetFlank...)
	counts := make([]uint8, len(bases))
	return Result{Bases: bases, Counts: counts, Mode: ModeOverlapping, Offset: bestOffset}
}

// spanningConsensus implements spec §4.7's spanning-markers mode: POA
// over the deduplicated intervening sequences, in decreasing-frequency
// order, with the long-interval short circuit.
func spanningConsensus(cfg config.Consensus, spanning []interval, sourceFlank, targetFlank []byte) Result {
	threshold := cfg.MarkerGraphEdgeLengthThresholdForConsensus
	if threshold > 0 {
		for _, iv := range spanning {
			if len(iv.bases) > threshold {
				shortest := shortestInterval(spanning)
				return Result{
					Bases:          flank(sourceFlank, shortest.bases, targetFlank),
					Counts:         flankCounts(len(sourceFlank), shortest.counts, len(targetFlank)),
					Mode:           ModeSpanning,
					ShortCircuited: true,
				}
			}
		}
	}

	ordered := dedupeByFrequency(spanning)
	rows := buildMSA(ordered)
	bases, counts := voteColumns(rows)
	return Result{
		Bases:  flank(sourceFlank, bases, targetFlank),
		Counts: flankCounts(len(sourceFlank), counts, len(targetFlank)),
		Mode:   ModeSpanning,
	}
}

func shortestInterval(spanning []interval) interval {
	best := spanning[0]
	for _, iv := range spanning[1:] {
		if len(iv.bases) < len(best.bases) {
			best = iv
		}
	}
	return best
}

func flank(source, middle, target []byte) []byte {
	out := make([]byte, 0, len(source)+len(middle)+len(target))
	out = append(out, source...)
	out = append(out, middle...)
	out = append(out, target...)
	return out
}

func flankCounts(sourceLen int, middle []uint8, targetLen int) []uint8 {
	out := make([]uint8, 0, sourceLen+len(middle)+targetLen)
	out = append(out, make([]uint8, sourceLen)...)
	out = append(out, middle...)
	out = append(out, make([]uint8, targetLen)...)
	return out
}

// msaRow is one aligned row of the multiple sequence alignment, bases and
// counts expanded in lockstep (gap columns carry a 0 placeholder count).
type msaRow struct {
	bases  []byte
	counts []uint8
}

// distinctSeq groups the intervals sharing an identical intervening
// sequence, for deduplication (spec §4.7).
type distinctSeq struct {
	bases     []byte
	instances []interval
}

// dedupeByFrequency groups spanning intervals by identical sequence and
// orders the groups by decreasing frequency (spec §4.7: "the order
// matters -- POA result is order-sensitive"), picking one representative
// interval's counts per group (the first encountered).
func dedupeByFrequency(spanning []interval) []interval {
	groups := make(map[string]*distinctSeq)
	var order []string
	for _, iv := range spanning {
		key := string(iv.bases)
		g, ok := groups[key]
		if !ok {
			g = &distinctSeq{bases: iv.bases}
			groups[key] = g
			order = append(order, key)
		}
		g.instances = append(g.instances, iv)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(groups[order[i]].instances) > len(groups[order[j]].instances)
	})
	out := make([]interval, len(order))
	for i, key := range order {
		out[i] = groups[key].instances[0]
	}
	return out
}

// buildMSA runs the progressive profile alignment described in the
// package doc comment, feeding sequences in the given (decreasing-
// frequency) order.
func buildMSA(ordered []interval) []msaRow {
	if len(ordered) == 0 {
		return nil
	}
	rows := []msaRow{{bases: append([]byte(nil), ordered[0].bases...), counts: append([]uint8(nil), ordered[0].counts...)}}
	for i := 1; i < len(ordered); i++ {
		profile := columnProfile(rows)
		alignedProfile, alignedNew := needlemanWunsch(profile, ordered[i].bases)
		rows = expandRows(rows, alignedProfile)
		rows = append(rows, msaRow{bases: alignedNew, counts: expandCounts(ordered[i].counts, alignedNew)})
	}
	return rows
}

// columnProfile derives a representative sequence from the current rows
// by per-column majority vote (gap included as a category), used only to
// guide alignment of the next sequence -- not the final consensus.
func columnProfile(rows []msaRow) []byte {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0].bases)
	profile := make([]byte, width)
	for c := 0; c < width; c++ {
		tally := make(map[byte]int)
		for _, r := range rows {
			tally[r.bases[c]]++
		}
		profile[c] = majorityBase(tally)
	}
	return profile
}

// expandRows widens every existing row with a gap column wherever the new
// alignment inserted a gap into the profile (i.e. the new sequence had an
// insertion relative to the existing alignment), the standard
// profile-alignment technique for keeping all rows the same width.
func expandRows(rows []msaRow, alignedProfile []byte) []msaRow {
	out := make([]msaRow, len(rows))
	for i := range rows {
		out[i] = msaRow{
			bases:  make([]byte, 0, len(alignedProfile)),
			counts: make([]uint8, 0, len(alignedProfile)),
		}
	}
	pi := 0 // pointer into the pre-alignment profile / row columns
	for _, c := range alignedProfile {
		if c == gapByte {
			for i := range out {
				out[i].bases = append(out[i].bases, gapByte)
				out[i].counts = append(out[i].counts, 0)
			}
			continue
		}
		for i := range rows {
			out[i].bases = append(out[i].bases, rows[i].bases[pi])
			out[i].counts = append(out[i].counts, rows[i].counts[pi])
		}
		pi++
	}
	return out
}

// expandCounts walks an aligned base row and a sequence's original
// (ungapped) counts, emitting a 0 placeholder at every gap column and
// consuming one original count per base column.
func expandCounts(original []uint8, aligned []byte) []uint8 {
	out := make([]uint8, len(aligned))
	oi := 0
	for i, c := range aligned {
		if c == gapByte {
			continue
		}
		out[i] = original[oi]
		oi++
	}
	return out
}

// voteColumns majority-votes each MSA column's base (5 categories: A, C,
// G, T, gap); non-gap columns additionally majority-vote the repeat count
// among the rows contributing that base (spec §4.7).
func voteColumns(rows []msaRow) ([]byte, []uint8) {
	if len(rows) == 0 {
		return nil, nil
	}
	width := len(rows[0].bases)
	var bases []byte
	var counts []uint8
	for c := 0; c < width; c++ {
		tally := make(map[byte]int)
		for _, r := range rows {
			tally[r.bases[c]]++
		}
		majority := majorityBase(tally)
		if majority == gapByte {
			continue
		}
		countTally := make(map[uint8]int)
		for _, r := range rows {
			if r.bases[c] == majority {
				countTally[r.counts[c]]++
			}
		}
		bases = append(bases, majority)
		counts = append(counts, majorityCount(countTally))
	}
	return bases, counts
}

const gapByte = '-'

// baseOrder fixes a deterministic tie-break order among the 5 consensus
// categories (spec §4.7: "5 categories: A,C,G,T,gap").
var baseOrder = []byte{'A', 'C', 'G', 'T', gapByte}

func majorityBase(tally map[byte]int) byte {
	best := baseOrder[0]
	bestCount := -1
	for _, b := range baseOrder {
		n := tally[b]
		if n > bestCount {
			best = b
			bestCount = n
		}
	}
	return best
}

const (
	nwMatch    = 0
	nwMismatch = 1
	nwGap      = 1
)

// needlemanWunsch computes a global alignment of a and b under unit
// mismatch/gap cost, returning both sequences with '-' gaps inserted so
// the two results have equal length. Standard stdlib dynamic programming;
// used here as the pairwise primitive of the progressive profile
// alignment described in the package doc comment (no POA or alignment
// library appears in the example pack for this purpose).
func needlemanWunsch(a, b []byte) ([]byte, []byte) {
	n, m := len(a), len(b)
	dist := make([][]int, n+1)
	for i := range dist {
		dist[i] = make([]int, m+1)
		dist[i][0] = i * nwGap
	}
	for j := 0; j <= m; j++ {
		dist[0][j] = j * nwGap
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := dist[i-1][j-1]
			if a[i-1] == b[j-1] {
				sub += nwMatch
			} else {
				sub += nwMismatch
			}
			del := dist[i-1][j] + nwGap
			ins := dist[i][j-1] + nwGap
			best := sub
			if del < best {
				best = del
			}
			if ins < best {
				best = ins
			}
			dist[i][j] = best
		}
	}

	var outA, outB []byte
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && dist[i][j] == dist[i-1][j-1]+subCost(a[i-1], b[j-1]):
			outA = append(outA, a[i-1])
			outB = append(outB, b[j-1])
			i--
			j--
		case i > 0 && dist[i][j] == dist[i-1][j]+nwGap:
			outA = append(outA, a[i-1])
			outB = append(outB, gapByte)
			i--
		default:
			outA = append(outA, gapByte)
			outB = append(outB, b[j-1])
			j--
		}
	}
	reverseBytes(outA)
	reverseBytes(outB)
	return outA, outB
}

func subCost(x, y byte) int {
	if x == y {
		return nwMatch
	}
	return nwMismatch
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
