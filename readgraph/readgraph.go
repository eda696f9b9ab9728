// Package readgraph implements the read graph (spec §4.3): an undirected
// graph with one vertex per oriented read and one edge per kept alignment,
// inserted symmetrically across strand flips, plus the derived per-read
// chimera flag and per-edge cross-strand flag used to exclude unreliable
// input from the marker-graph build.
package readgraph

import (
	"sort"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/reads"
)

// Alignment is one kept alignment to insert into the graph, as produced by
// the align package's post-filter.
type Alignment struct {
	Oriented0, Oriented1 reads.OrientedID
	MarkerCount          uint32
}

// Edge is one adjacency-list entry.
type Edge struct {
	Other       reads.OrientedID
	MarkerCount uint32
	CrossStrand bool
}

// Graph is the read graph. Vertices are dense oriented-read ids in
// [0, 2*readCount).
type Graph struct {
	cfg       config.ReadGraph
	adjacency [][]Edge
	chimeric  []bool // indexed by reads.ID
}

// Build constructs the read graph from the given alignments (spec §4.3),
// applies the per-vertex MaxAlignmentCount cap, computes cross-strand
// edges, and runs chimera detection. orientedCount must equal
// 2*store.ReadCount().
func Build(cfg config.ReadGraph, orientedCount int, alignments []Alignment) *Graph {
	g := &Graph{
		cfg:       cfg,
		adjacency: make([][]Edge, orientedCount),
		chimeric:  make([]bool, orientedCount/2),
	}
	for _, a := range alignments {
		g.insertSymmetric(a.Oriented0, a.Oriented1, a.MarkerCount)
	}
	g.capAlignmentCount()
	g.markCrossStrand()
	g.detectChimeras()
	return g
}

// insertSymmetric inserts the edge (o0,o1) and, per spec §4.3, its strand
// partner (o0.Twin(), o1.Twin()).
func (g *Graph) insertSymmetric(o0, o1 reads.OrientedID, markerCount uint32) {
	g.insertOne(o0, o1, markerCount)
	g.insertOne(o0.Twin(), o1.Twin(), markerCount)
}

func (g *Graph) insertOne(o0, o1 reads.OrientedID, markerCount uint32) {
	g.adjacency[o0.Value()] = append(g.adjacency[o0.Value()], Edge{Other: o1, MarkerCount: markerCount})
	g.adjacency[o1.Value()] = append(g.adjacency[o1.Value()], Edge{Other: o0, MarkerCount: markerCount})
}

// capAlignmentCount keeps, for every oriented read, only the
// MaxAlignmentCount highest-scoring edges (spec §4.3 resource model: an
// oriented read with very high coverage would otherwise blow up later
// phases). A value of 0 disables the cap.
func (g *Graph) capAlignmentCount() {
	if g.cfg.MaxAlignmentCount <= 0 {
		return
	}
	// First pass: trim every over-degree vertex down to its highest-scoring
	// MaxAlignmentCount edges, recording which neighbors survived.
	kept := make(map[reads.OrientedID]map[reads.OrientedID]bool)
	for o := range g.adjacency {
		edges := g.adjacency[o]
		if len(edges) <= g.cfg.MaxAlignmentCount {
			continue
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].MarkerCount > edges[j].MarkerCount })
		edges = append([]Edge(nil), edges[:g.cfg.MaxAlignmentCount]...)
		g.adjacency[o] = edges
		survivors := make(map[reads.OrientedID]bool, len(edges))
		for _, e := range edges {
			survivors[e.Other] = true
		}
		kept[reads.OrientedID(o)] = survivors
	}
	if len(kept) == 0 {
		return
	}
	// Second pass: an edge survives only if both endpoints kept it, so drop
	// the far side of any edge whose near side was trimmed away above.
	for o := range g.adjacency {
		self := reads.OrientedID(o)
		filtered := g.adjacency[o][:0]
		for _, e := range g.adjacency[o] {
			if survivors, capped := kept[e.Other]; capped && !survivors[self] {
				continue
			}
			filtered = append(filtered, e)
		}
		g.adjacency[o] = filtered
	}
}

// markCrossStrand flags every edge between two reads that are connected by
// alignments in both relative orientations (same-strand and opposite-strand),
// i.e. the pair of edges that together "bridge strand classes" by linking
// both twin classes of the two underlying reads (spec §4.3).
func (g *Graph) markCrossStrand() {
	sameStrandPair := make(map[reads.Pair]bool)
	oppositeStrandPair := make(map[reads.Pair]bool)
	for o := range g.adjacency {
		oriented := reads.OrientedID(o)
		for _, e := range g.adjacency[o] {
			if oriented.ReadID() == e.Other.ReadID() {
				continue
			}
			pair := reads.NewPair(oriented.ReadID(), e.Other.ReadID(), oriented.Strand() == e.Other.Strand())
			if pair.SameStrand {
				sameStrandPair[pair] = true
			} else {
				oppositeStrandPair[pair] = true
			}
		}
	}
	bridging := make(map[reads.Pair]bool)
	for pair := range sameStrandPair {
		if oppositeStrandPair[pair] {
			bridging[pair] = true
		}
	}
	if len(bridging) == 0 {
		return
	}
	for o := range g.adjacency {
		oriented := reads.OrientedID(o)
		for i, e := range g.adjacency[o] {
			if oriented.ReadID() == e.Other.ReadID() {
				continue
			}
			pair := reads.NewPair(oriented.ReadID(), e.Other.ReadID(), oriented.Strand() == e.Other.Strand())
			if bridging[pair] {
				g.adjacency[o][i].CrossStrand = true
			}
		}
	}
}

// detectChimeras applies the standard chimera-detection heuristic (spec
// §4.3): a read is chimeric if its neighbors, excluding both of the read's
// own oriented vertices, are no longer mutually reachable within
// MaxChimericReadDistance hops -- meaning the read itself is the only
// local bridge connecting them, a hallmark of a chimeric (artifactual)
// read stitched together from two unrelated genomic regions.
func (g *Graph) detectChimeras() {
	radius := g.cfg.MaxChimericReadDistance
	if radius <= 0 {
		return
	}
	for readID := range g.chimeric {
		o0 := reads.NewOrientedID(reads.ID(readID), reads.Forward)
		o1 := o0.Twin()
		neighbors := g.distinctReadNeighbors(o0, o1)
		if len(neighbors) < 2 {
			continue
		}
		if !g.neighborsMutuallyReachable(o0, o1, neighbors, radius) {
			g.chimeric[readID] = true
		}
	}
}

// distinctReadNeighbors returns the set of underlying read ids adjacent to
// either oriented vertex of a read.
func (g *Graph) distinctReadNeighbors(o0, o1 reads.OrientedID) []reads.ID {
	seen := make(map[reads.ID]bool)
	var out []reads.ID
	for _, v := range [2]reads.OrientedID{o0, o1} {
		for _, e := range g.adjacency[v.Value()] {
			if e.Other.ReadID() == o0.ReadID() {
				continue
			}
			if !seen[e.Other.ReadID()] {
				seen[e.Other.ReadID()] = true
				out = append(out, e.Other.ReadID())
			}
		}
	}
	return out
}

// neighborsMutuallyReachable runs a bounded BFS from the first neighbor,
// excluding the excluded read's two vertices entirely, and checks whether
// every other neighbor is reached within radius hops.
func (g *Graph) neighborsMutuallyReachable(excluded0, excluded1 reads.OrientedID, neighbors []reads.ID, radius int) bool {
	start := reads.NewOrientedID(neighbors[0], reads.Forward)
	visited := map[reads.OrientedID]bool{start: true}
	frontier := []reads.OrientedID{start}
	for depth := 0; depth < radius && len(frontier) > 0; depth++ {
		var next []reads.OrientedID
		for _, v := range frontier {
			for _, e := range g.adjacency[v.Value()] {
				if e.Other == excluded0 || e.Other == excluded1 {
					continue
				}
				if visited[e.Other] {
					continue
				}
				visited[e.Other] = true
				next = append(next, e.Other)
			}
		}
		frontier = next
	}
	for _, n := range neighbors[1:] {
		if !visited[reads.NewOrientedID(n, reads.Forward)] && !visited[reads.NewOrientedID(n, reads.Reverse)] {
			return false
		}
	}
	return true
}

// Neighbors returns the kept, non-cross-strand edges of an oriented read.
func (g *Graph) Neighbors(o reads.OrientedID) []Edge {
	var out []Edge
	for _, e := range g.adjacency[o.Value()] {
		if e.CrossStrand {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsChimeric reports whether the given read was flagged as chimeric.
func (g *Graph) IsChimeric(id reads.ID) bool { return g.chimeric[id] }

// components partitions the oriented-read vertex set into connected
// components using only kept (non-chimeric-read, non-cross-strand) edges.
func (g *Graph) components() [][]reads.OrientedID {
	visited := make([]bool, len(g.adjacency))
	var comps [][]reads.OrientedID
	for start := range g.adjacency {
		if visited[start] {
			continue
		}
		o := reads.OrientedID(start)
		if g.chimeric[o.ReadID()] {
			continue
		}
		var comp []reads.OrientedID
		stack := []reads.OrientedID{o}
		visited[start] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, cur)
			for _, e := range g.Neighbors(cur) {
				if g.chimeric[e.Other.ReadID()] || visited[e.Other.Value()] {
					continue
				}
				visited[e.Other.Value()] = true
				stack = append(stack, e.Other)
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// UsableReads returns the oriented reads belonging to connected components
// of at least MinComponentSize vertices, excluding chimeric reads (spec
// §4.3: "Chimeric reads ... are excluded from the marker-graph build").
// A MinComponentSize of 0 disables the filter.
func (g *Graph) UsableReads() []reads.OrientedID {
	var out []reads.OrientedID
	for _, comp := range g.components() {
		if len(comp) < g.cfg.MinComponentSize {
			continue
		}
		out = append(out, comp...)
	}
	return out
}
