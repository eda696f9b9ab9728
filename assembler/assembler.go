// Package assembler ties every phase of the core assembly engine together
// (spec §6): read store construction, k-mer and marker tables, LowHash
// candidate discovery, pairwise alignment, the read graph, the marker
// graph and its cleanup passes, the assembly graph, and consensus --
// emitting the final segment/link records.
//
// Per spec §9's design note, the engine is an explicit struct owning its
// memory-mapped regions, not a package of global mutable singletons: every
// phase's on-disk state hangs off one *Engine so that multiple engines
// (e.g. one per test) never collide.
package assembler

import (
	"github.com/grailbio/base/errors"

	"github.com/shasta-assembly/shasta-core/align"
	"github.com/shasta-assembly/shasta-core/assemblygraph"
	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/consensus"
	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/lowhash"
	"github.com/shasta-assembly/shasta-core/markergraph"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/shasta-assembly/shasta-core/readgraph"
	"github.com/shasta-assembly/shasta-core/reads"
)

// Engine owns every memory-mapped region and in-memory graph produced by a
// single assembly run.
type Engine struct {
	cfg   config.Config
	dir   string
	store *reads.Store
	kt    *kmer.Table
	mt    *markers.Table
	rg    *readgraph.Graph
	mg    *markergraph.Graph
	ag    *assemblygraph.Graph

	alignedPairs []alignedPair
}

// Segment is one assembled segment (spec §6): the ordered chain of
// underlying marker-graph edge ids, the source/target marker-graph vertex
// ids, the average marker-graph coverage, and the consensus base/repeat-
// count sequences.
type Segment struct {
	ID              uint32
	Chain           []uint32
	Source, Target  uint32
	AverageCoverage float64
	Bases           []byte
	Counts          []uint8
	Circular        bool
}

// Link is a GFA-style L-record (spec §6): an edge between two segments'
// endpoints, carrying the CIGAR computed from their k-base overlap.
type Link struct {
	From, To uint32
	CIGAR    string
}

// Build runs the full pipeline over rawReads and returns the engine handle
// with its assembly graph and consensus available. dir is the directory
// every memory-mapped region is created under.
func Build(dir string, cfg config.Config, rawReads []reads.Raw) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := reads.Create(dir)
	if err != nil {
		return nil, errors.E(err, "assembler: creating read store")
	}
	for _, r := range rawReads {
		if _, err := store.AddRead(r); err != nil {
			return nil, errors.E(err, "assembler: adding read")
		}
	}

	kt, err := kmer.Build(cfg.Kmer)
	if err != nil {
		return nil, errors.E(err, "assembler: building k-mer table")
	}

	mt, err := markers.Build(dir, store, kt, 0)
	if err != nil {
		return nil, errors.E(err, "assembler: building marker table")
	}

	e := &Engine{cfg: cfg, dir: dir, store: store, kt: kt, mt: mt}
	if err := e.findAlignments(); err != nil {
		return nil, err
	}
	if err := e.buildMarkerGraph(); err != nil {
		return nil, err
	}
	e.cleanupMarkerGraph()
	e.ag = e.mg.Assemble()
	return e, nil
}

// alignedPair is one surviving pairwise alignment, kept through the
// read-graph and marker-graph phases.
type alignedPair struct {
	oriented0, oriented1 reads.OrientedID
	pairs                []align.Pair
}

// findAlignments runs LowHash candidate discovery followed by the
// alignment engine on every candidate pair (spec §4.1, §4.2).
func (e *Engine) findAlignments() error {
	candidates, err := lowhash.Find(e.cfg.LowHash, e.store, e.mt)
	if err != nil {
		return errors.E(err, "assembler: lowhash")
	}

	opts := align.Opts{
		MaxSkip:               e.cfg.Alignment.MaxSkip,
		MaxMarkerFrequency:    e.cfg.Alignment.MaxMarkerFrequency,
		MinAlignedMarkerCount: e.cfg.Alignment.MinAlignedMarkerCount,
		MaxTrim:               e.cfg.Alignment.MaxTrim,
		ApplyPostFilter:       true,
	}

	var aligned []alignedPair
	var readGraphAlignments []readgraph.Alignment
	for _, c := range candidates {
		o0 := reads.NewOrientedID(c.Pair.ReadID0, reads.Forward)
		strand1 := reads.Forward
		if !c.Pair.SameStrand {
			strand1 = reads.Reverse
		}
		o1 := reads.NewOrientedID(c.Pair.ReadID1, strand1)

		pairs, summary := align.Align(e.mt.All(o0), e.mt.All(o1), opts)
		if summary.MarkerCount == 0 {
			continue
		}
		aligned = append(aligned, alignedPair{oriented0: o0, oriented1: o1, pairs: pairs})
		readGraphAlignments = append(readGraphAlignments, readgraph.Alignment{
			Oriented0:   o0,
			Oriented1:   o1,
			MarkerCount: summary.MarkerCount,
		})
	}

	e.rg = readgraph.Build(e.cfg.ReadGraph, 2*e.store.ReadCount(), readGraphAlignments)
	e.alignedPairs = aligned
	return nil
}

// buildMarkerGraph converts the surviving alignments into marker-graph
// ordinal pairs and runs the six-phase builder (spec §4.4), skipping
// alignments incident to a chimeric or otherwise unusable read.
func (e *Engine) buildMarkerGraph() error {
	usable := make(map[reads.OrientedID]bool)
	for _, o := range e.rg.UsableReads() {
		usable[o] = true
	}

	var alignments []markergraph.AlignmentOrdinals
	for _, a := range e.alignedPairs {
		if !usable[a.oriented0] || !usable[a.oriented1] {
			continue
		}
		alignments = append(alignments, markergraph.AlignmentOrdinals{
			Oriented0: a.oriented0,
			Oriented1: a.oriented1,
			Pairs:     a.pairs,
		})
	}

	mg, err := markergraph.Build(e.cfg.MarkerGraph, e.mt, alignments, e.rg.IsChimeric)
	if err != nil {
		return errors.E(err, "assembler: building marker graph")
	}
	e.mg = mg
	return nil
}

// cleanupMarkerGraph runs short-cycle removal's narrow pre-pass (spec §9's
// Design Note) followed by the three marker-graph cleanup passes in the
// order spec §4.5 describes.
func (e *Engine) cleanupMarkerGraph() {
	e.mg.RemoveShortCycles(e.cfg.MarkerGraph.ShortCycleMaxLength)
	e.mg.TransitiveReduction()
	e.mg.PruneLeaves(e.cfg.MarkerGraph.PruneIterations)
	e.mg.SimplifyBubbles(e.cfg.MarkerGraph.MaxLengthVector)
}

// Segments returns the assembled segments with their consensus sequences
// (spec §4.6, §4.7), concatenating each chain's edge-consensus pieces with
// the k-base-overlap trim their shared vertex flanks require.
func (e *Engine) Segments() []Segment {
	k := e.kt.K()
	segments := make([]Segment, 0, len(e.ag.Edges))
	for _, age := range e.ag.Edges {
		bases, counts := e.consensusForChain(age.Chain, k)
		segments = append(segments, Segment{
			ID:              age.ID,
			Chain:           age.Chain,
			Source:          age.Source,
			Target:          age.Target,
			AverageCoverage: age.AverageCoverage,
			Bases:           bases,
			Counts:          counts,
			Circular:        age.Circular,
		})
	}
	return segments
}

// consensusForChain computes one segment's consensus by running
// EdgeConsensus on every marker-graph edge in the chain and concatenating
// the results, dropping the leading k bases of every edge after the first
// since each edge-consensus result already includes its own flanking
// k-mers (spec §6: "careful handling of k-base overlap").
func (e *Engine) consensusForChain(chain []uint32, k int) ([]byte, []uint8) {
	var bases []byte
	var counts []uint8
	for i, edgeID := range chain {
		edge := e.mg.Edges[edgeID]
		sourceBases, _ := consensus.VertexConsensus(e.mt, e.store, e.kt, e.mg.Vertices[edge.Source])
		targetBases, _ := consensus.VertexConsensus(e.mt, e.store, e.kt, e.mg.Vertices[edge.Target])
		result := consensus.EdgeConsensus(e.cfg.Consensus, e.mt, e.store, k, edge, sourceBases, targetBases)
		if i == 0 {
			bases = append(bases, result.Bases...)
			counts = append(counts, result.Counts...)
			continue
		}
		if len(result.Bases) < k {
			continue
		}
		bases = append(bases, result.Bases[k:]...)
		counts = append(counts, result.Counts[k:]...)
	}
	return bases, counts
}

// Links computes the GFA-style L-records (spec §6): one link for every
// (in-chain, out-chain) pair at each assembly-graph vertex, with a CIGAR
// derived from the k-base overlap between the last k repeat counts of the
// incoming segment and the first k repeat counts of the outgoing one.
func (e *Engine) Links() []Link {
	var links []Link
	segments := e.Segments()
	byID := make(map[uint32]Segment, len(segments))
	for _, s := range segments {
		byID[s.ID] = s
	}

	vertices := make(map[uint32]bool)
	for _, s := range segments {
		vertices[s.Source] = true
		vertices[s.Target] = true
	}
	for v := range vertices {
		for _, inID := range e.ag.InEdges(v) {
			for _, outID := range e.ag.OutEdges(v) {
				in, to := byID[e.ag.Edges[inID].ID], byID[e.ag.Edges[outID].ID]
				links = append(links, Link{
					From:  in.ID,
					To:    to.ID,
					CIGAR: overlapCIGAR(in.Counts, to.Counts, e.kt.K()),
				})
			}
		}
	}
	return links
}

// overlapCIGAR computes the alignment CIGAR between the last k repeat
// counts of the incoming segment and the first k repeat counts of the
// outgoing one (spec §6): a run-length encoding of per-position match (M)
// vs mismatch (X). Both chains share the same underlying marker-graph
// vertex consensus, so in practice every position matches and the result
// is a flat "<k>M" -- but it is computed, not assumed, since a bubble-
// simplification edge case could leave the two sides' vertex-consensus
// inputs out of sync.
func overlapCIGAR(inCounts, outCounts []uint8, k int) string {
	if len(inCounts) < k || len(outCounts) < k {
		return ""
	}
	left := inCounts[len(inCounts)-k:]
	right := outCounts[:k]

	var b []byte
	runLen, runOp := 0, byte(0)
	flush := func() {
		if runLen > 0 {
			b = append(b, itoa(runLen)...)
			b = append(b, runOp)
		}
	}
	for i := 0; i < k; i++ {
		op := byte('M')
		if left[i] != right[i] {
			op = 'X'
		}
		if op != runOp {
			flush()
			runLen, runOp = 0, op
		}
		runLen++
	}
	flush()
	return string(b)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Close releases every memory-mapped region the engine owns.
func (e *Engine) Close() error {
	var errs errors.Once
	errs.Set(e.mt.Close())
	errs.Set(e.store.Close())
	return errs.Err()
}
