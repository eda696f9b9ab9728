// Package markergraph implements the marker graph builder and its cleanup
// passes (spec §4.4, §4.5): the six-phase construction (union, find, size
// filter, bad-vertex filter, reverse-complement pairing, edge discovery)
// followed by short-cycle removal, approximate transitive reduction, leaf
// pruning, and bubble/superbubble simplification.
package markergraph

import (
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"

	"github.com/shasta-assembly/shasta-core/align"
	"github.com/shasta-assembly/shasta-core/assemblygraph"
	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/shasta-assembly/shasta-core/reads"
	"github.com/shasta-assembly/shasta-core/unionfind"
)

// VertexID indexes into Graph.Vertices.
type VertexID uint32

// unassigned marks a marker that did not survive the coverage/bad-vertex
// filters into any vertex.
const unassigned = ^uint32(0)

// MarkerRef is one marker belonging to a vertex.
type MarkerRef struct {
	Oriented reads.OrientedID
	Ordinal  int
}

// Vertex is one surviving marker-graph vertex: the disjoint set of
// markers that merged together, plus its reverse-complement twin.
type Vertex struct {
	Markers []MarkerRef
	Twin    VertexID
	HasTwin bool
}

// Interval is a marker interval (spec glossary): the read sub-path
// underlying one marker-graph edge occurrence.
type Interval struct {
	Oriented           reads.OrientedID
	Ordinal0, Ordinal1 uint32
}

// Removal-reason bits (spec §4.5: "each pass sets removal-reason bits on
// edges; no edges are deleted from storage"). Spec §3's glossary names
// seven reasons; "replaces-bubble" and "replaces-superbubble" describe
// the surviving edge of a collapse rather than a removal reason in their
// own right, so they are not separate bits here. These five flags
// comfortably fit a uint8, which is why this uses a plain bitmask instead
// of a bitset library (see DESIGN.md).
const (
	ReasonTransitiveReduction uint8 = 1 << iota
	ReasonPruned
	ReasonShortCycle
	ReasonBubble
	ReasonSuperbubble
)

// Edge is one marker-graph edge.
type Edge struct {
	Source, Target VertexID
	Intervals      []Interval
	Coverage       uint8
	Removed        uint8 // bitmask of Reason* flags; 0 means not removed
	Twin           uint32
	HasTwin        bool
}

// IsRemoved reports whether any removal reason bit is set.
func (e Edge) IsRemoved() bool { return e.Removed != 0 }

// Graph is the marker graph.
type Graph struct {
	cfg      config.MarkerGraph
	Vertices []Vertex
	Edges    []Edge

	outEdges [][]uint32 // by VertexID
	inEdges  [][]uint32
}

// AlignmentOrdinals is one kept, non-chimeric alignment's aligned ordinal
// pairs, as produced by the align package.
type AlignmentOrdinals struct {
	Oriented0, Oriented1 reads.OrientedID
	Pairs                []align.Pair
}

// Build runs all six phases of spec §4.4. chimeric reports whether a read
// id was flagged chimeric by the read graph; alignments incident to a
// chimeric read are skipped during union (spec §4.3, §4.4 Phase 1).
func Build(cfg config.MarkerGraph, mt *markers.Table, alignments []AlignmentOrdinals, chimeric func(reads.ID) bool) (*Graph, error) {
	total := mt.Total()

	roots, err := phase1And2Union(total, mt, alignments, chimeric)
	if err != nil {
		return nil, err
	}

	rootToVertex, _ := phase3SizeFilter(roots, cfg)

	g := &Graph{cfg: cfg}
	vertexOfFlat := make([]uint32, total)
	for i := range vertexOfFlat {
		vertexOfFlat[i] = unassigned
	}
	if err := g.phase4BadVertexFilter(total, roots, rootToVertex, mt, vertexOfFlat); err != nil {
		return nil, err
	}

	g.phase5TwinPairing(mt, vertexOfFlat)
	g.phase6Edges(cfg, mt, vertexOfFlat)
	return g, nil
}

func phase1And2Union(total int, mt *markers.Table, alignments []AlignmentOrdinals, chimeric func(reads.ID) bool) ([]int, error) {
	uf, err := unionfind.New(total)
	if err != nil {
		return nil, err
	}
	err = traverse.Each(len(alignments), func(i int) error {
		a := alignments[i]
		if chimeric != nil && (chimeric(a.Oriented0.ReadID()) || chimeric(a.Oriented1.ReadID())) {
			return nil
		}
		for _, p := range a.Pairs {
			idx0 := mt.Index(a.Oriented0, int(p.Ordinal0))
			idx1 := mt.Index(a.Oriented1, int(p.Ordinal1))
			uf.Union(idx0, idx1)
		}
		return nil
	})
	if err != nil {
		return nil, errors.E(err, "markergraph: phase 1 union")
	}

	roots := make([]int, total)
	err = traverse.Each(total, func(i int) error {
		roots[i] = uf.Find(i)
		return nil
	})
	if err != nil {
		return nil, errors.E(err, "markergraph: phase 2 find")
	}
	return roots, nil
}

// phase3SizeFilter histograms disjoint-set sizes and assigns a dense,
// ascending vertex id to every root whose set size is in
// [minCoverage, maxCoverage].
func phase3SizeFilter(roots []int, cfg config.MarkerGraph) (map[int]uint32, map[int]int) {
	sizeOf := make(map[int]int)
	for _, r := range roots {
		sizeOf[r]++
	}
	var candidates []int
	for root, size := range sizeOf {
		if size >= cfg.MinCoverage && size <= cfg.MaxCoverage {
			candidates = append(candidates, root)
		}
	}
	sort.Ints(candidates)
	rootToVertex := make(map[int]uint32, len(candidates))
	for i, root := range candidates {
		rootToVertex[root] = uint32(i)
	}
	return rootToVertex, sizeOf
}

// phase4BadVertexFilter gathers the markers of every phase-3 candidate
// vertex, flags as bad any whose markers include the same oriented read
// twice, and renumbers the survivors compactly (spec §4.4 Phase 4).
func (g *Graph) phase4BadVertexFilter(total int, roots []int, rootToVertex map[int]uint32, mt *markers.Table, vertexOfFlat []uint32) error {
	membersOf := make(map[uint32][]int) // candidate vertex id -> flat marker indices
	for flat := 0; flat < total; flat++ {
		vid, ok := rootToVertex[roots[flat]]
		if !ok {
			continue
		}
		membersOf[vid] = append(membersOf[vid], flat)
	}

	// Deterministic order: candidate vertex ids are already dense and
	// ascending from phase 3.
	ids := make([]int, 0, len(membersOf))
	for vid := range membersOf {
		ids = append(ids, int(vid))
	}
	sort.Ints(ids)

	for _, vid := range ids {
		flats := membersOf[uint32(vid)]
		refs := make([]MarkerRef, len(flats))
		for i, flat := range flats {
			o, ordinal := mt.Locate(flat)
			refs[i] = MarkerRef{Oriented: o, Ordinal: ordinal}
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].Oriented < refs[j].Oriented })

		bad := false
		for i := 1; i < len(refs); i++ {
			if refs[i].Oriented == refs[i-1].Oriented {
				bad = true
				break
			}
		}
		if bad {
			continue
		}

		newID := VertexID(len(g.Vertices))
		g.Vertices = append(g.Vertices, Vertex{Markers: refs})
		for _, flat := range flats {
			vertexOfFlat[flat] = uint32(newID)
		}
	}
	return nil
}

// phase5TwinPairing computes each surviving vertex's reverse-complement
// twin (spec §4.4 Phase 5): the vertex whose markers are exactly the
// twins of this vertex's markers.
func (g *Graph) phase5TwinPairing(mt *markers.Table, vertexOfFlat []uint32) {
	for i := range g.Vertices {
		m := g.Vertices[i].Markers[0]
		twinOriented := m.Oriented.Twin()
		twinOrdinal := mt.Twin(m.Oriented, m.Ordinal)
		twinFlat := mt.Index(twinOriented, twinOrdinal)
		if twinFlat < 0 || twinFlat >= len(vertexOfFlat) {
			continue
		}
		twinVertex := vertexOfFlat[twinFlat]
		if twinVertex == unassigned {
			continue
		}
		g.Vertices[i].Twin = VertexID(twinVertex)
		g.Vertices[i].HasTwin = true
	}
}

// phase6Edges discovers marker-graph edges (spec §4.4 Phase 6): for each
// marker in each vertex, follow its oriented read forward to the next
// marker belonging to any vertex, recording a candidate edge with one
// marker interval; then groups by (source, target).
func (g *Graph) phase6Edges(cfg config.MarkerGraph, mt *markers.Table, vertexOfFlat []uint32) {
	type edgeKey struct{ source, target VertexID }
	intervalsOf := make(map[edgeKey][]Interval)

	for vid := range g.Vertices {
		for _, m := range g.Vertices[vid].Markers {
			n := mt.Count(m.Oriented)
			limit := m.Ordinal + cfg.EdgeMarkerSkipThreshold
			if limit >= n {
				limit = n - 1
			}
			for ordinal := m.Ordinal + 1; ordinal <= limit; ordinal++ {
				flat := mt.Index(m.Oriented, ordinal)
				target := vertexOfFlat[flat]
				if target == unassigned {
					continue
				}
				key := edgeKey{source: VertexID(vid), target: VertexID(target)}
				intervalsOf[key] = append(intervalsOf[key], Interval{
					Oriented: m.Oriented,
					Ordinal0: uint32(m.Ordinal),
					Ordinal1: uint32(ordinal),
				})
				break
			}
		}
	}

	keys := make([]edgeKey, 0, len(intervalsOf))
	for k := range intervalsOf {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].target < keys[j].target
	})

	edgeIDOf := make(map[edgeKey]uint32, len(keys))
	for i, k := range keys {
		intervals := intervalsOf[k]
		coverage := len(intervals)
		if coverage > 255 {
			coverage = 255 // spec §8 invariant: coverage caps at 255
		}
		g.Edges = append(g.Edges, Edge{
			Source:    k.source,
			Target:    k.target,
			Intervals: intervals,
			Coverage:  uint8(coverage),
		})
		edgeIDOf[k] = uint32(i)
	}

	// Edge twin pairing: edge (u->v) pairs with (twin(v)->twin(u)).
	for i := range g.Edges {
		e := g.Edges[i]
		uTwin, uOK := g.twinOf(e.Source)
		vTwin, vOK := g.twinOf(e.Target)
		if !uOK || !vOK {
			continue
		}
		twinKey := edgeKey{source: vTwin, target: uTwin}
		if twinID, ok := edgeIDOf[twinKey]; ok {
			g.Edges[i].Twin = twinID
			g.Edges[i].HasTwin = true
		}
	}

	g.buildAdjacency()
}

func (g *Graph) twinOf(v VertexID) (VertexID, bool) {
	vtx := g.Vertices[v]
	return vtx.Twin, vtx.HasTwin
}

func (g *Graph) buildAdjacency() {
	g.outEdges = make([][]uint32, len(g.Vertices))
	g.inEdges = make([][]uint32, len(g.Vertices))
	for i, e := range g.Edges {
		g.outEdges[e.Source] = append(g.outEdges[e.Source], uint32(i))
		g.inEdges[e.Target] = append(g.inEdges[e.Target], uint32(i))
	}
}

// OutEdges returns the (possibly removed) marker-graph edges leaving v.
func (g *Graph) OutEdges(v VertexID) []uint32 { return g.outEdges[v] }

// InEdges returns the (possibly removed) marker-graph edges entering v.
func (g *Graph) InEdges(v VertexID) []uint32 { return g.inEdges[v] }

// nonRemovedOut / nonRemovedIn filter the adjacency lists to edges that
// have not been flagged removed by any cleanup pass so far.
func (g *Graph) nonRemovedOut(v VertexID) []uint32 {
	var out []uint32
	for _, eid := range g.outEdges[v] {
		if !g.Edges[eid].IsRemoved() {
			out = append(out, eid)
		}
	}
	return out
}

func (g *Graph) nonRemovedIn(v VertexID) []uint32 {
	var out []uint32
	for _, eid := range g.inEdges[v] {
		if !g.Edges[eid].IsRemoved() {
			out = append(out, eid)
		}
	}
	return out
}

// Assemble builds the assembly graph (spec §4.6) over the marker graph's
// current, cleaned-up edge set: the same Build function bubble/superbubble
// simplification uses internally, run one final time on the result.
func (g *Graph) Assemble() *assemblygraph.Graph {
	return assemblygraph.Build(g.asAssemblyInput())
}

// asAssemblyInput converts the currently non-removed edge set into
// assemblygraph's generic input format, for the bubble/superbubble
// simplification pass and for the final assembler run.
func (g *Graph) asAssemblyInput() []assemblygraph.EdgeInput {
	var out []assemblygraph.EdgeInput
	for i, e := range g.Edges {
		if e.IsRemoved() {
			continue
		}
		out = append(out, assemblygraph.EdgeInput{
			ID:          uint32(i),
			Source:      uint32(e.Source),
			Target:      uint32(e.Target),
			Coverage:    e.Coverage,
			TwinEdge:    e.Twin,
			HasTwinEdge: e.HasTwin && !g.Edges[e.Twin].IsRemoved(),
		})
	}
	return out
}
