// Package assemblygraph implements the assembly graph (spec §4.6): the
// chain finder that walks non-removed marker-graph edges into maximal
// chains, plus reverse-complement chain pairing. It is deliberately
// generic over the caller's edge identifiers (plain uint32 ids) rather
// than importing the markergraph package, so that markergraph's cleanup
// passes (spec §4.5) can rebuild an assembly graph from their own
// in-progress edge set without an import cycle; the top-level assembler
// runs it again, unchanged, on the final marker graph.
package assemblygraph

// EdgeInput is one non-removed marker-graph edge, as seen by the chain
// finder. ID is the caller's own edge id; ids need not be dense (the
// marker graph passes its edge-array indices with removed edges left
// out). The caller is responsible for excluding removed edges up front.
type EdgeInput struct {
	ID          uint32
	Source      uint32 // marker-graph vertex id
	Target      uint32
	Coverage    uint8
	TwinEdge    uint32 // ID of this edge's reverse-complement counterpart
	HasTwinEdge bool
}

// Edge is one assembly-graph edge: a maximal chain of marker-graph edges.
type Edge struct {
	ID                uint32
	Chain             []uint32 // marker-graph edge ids, source to target
	Source, Target    uint32   // marker-graph vertex ids
	AverageCoverage   float64
	Circular          bool
	Twin              uint32 // ID of the reverse-complement assembly-graph edge
	SelfComplementary bool
}

// Graph is the chain-indexed assembly graph.
type Graph struct {
	Edges []Edge
	// outByVertex/inByVertex index assembly-graph edges by their source
	// and target marker-graph vertex id.
	outByVertex map[uint32][]uint32
	inByVertex  map[uint32][]uint32
}

// Build runs the chain finder over edges (spec §4.6): an edge extends
// forward iff its target has exactly one out-edge and exactly one
// in-edge among the supplied (already non-removed) edge set; symmetric
// backward. It then pairs each chain with its reverse complement.
func Build(edges []EdgeInput) *Graph {
	byID := make(map[uint32]EdgeInput, len(edges))
	outOf := make(map[uint32][]uint32) // vertex -> edge ids leaving it
	inOf := make(map[uint32][]uint32)  // vertex -> edge ids entering it
	for _, e := range edges {
		byID[e.ID] = e
		outOf[e.Source] = append(outOf[e.Source], e.ID)
		inOf[e.Target] = append(inOf[e.Target], e.ID)
	}

	visited := make(map[uint32]bool, len(edges))
	var chains [][]uint32
	for _, e := range edges {
		if visited[e.ID] {
			continue
		}
		chain := extendChain(e.ID, byID, outOf, inOf, visited)
		chains = append(chains, chain)
	}

	g := &Graph{
		outByVertex: make(map[uint32][]uint32),
		inByVertex:  make(map[uint32][]uint32),
	}
	for i, chain := range chains {
		cov := 0
		for _, eid := range chain {
			cov += int(byID[eid].Coverage)
		}
		edge := Edge{
			ID:              uint32(i),
			Chain:           chain,
			Source:          byID[chain[0]].Source,
			Target:          byID[chain[len(chain)-1]].Target,
			AverageCoverage: float64(cov) / float64(len(chain)),
			Circular:        byID[chain[0]].Source == byID[chain[len(chain)-1]].Target,
		}
		g.Edges = append(g.Edges, edge)
	}

	g.pairTwins(byID)

	for _, e := range g.Edges {
		g.outByVertex[e.Source] = append(g.outByVertex[e.Source], e.ID)
		g.inByVertex[e.Target] = append(g.inByVertex[e.Target], e.ID)
	}
	return g
}

// extendChain extends edge seed both forward and backward through unique
// single-in/single-out vertices, marking every edge it passes through
// visited, and returns the chain source-to-target.
func extendChain(seed uint32, byID map[uint32]EdgeInput, outOf, inOf map[uint32][]uint32, visited map[uint32]bool) []uint32 {
	chain := []uint32{seed}
	visited[seed] = true

	// Extend forward from the chain's current last edge.
	for {
		last := byID[chain[len(chain)-1]]
		v := last.Target
		if len(outOf[v]) != 1 || len(inOf[v]) != 1 {
			break
		}
		next := outOf[v][0]
		if visited[next] {
			break // wrapped back onto an already-chained edge: circular
		}
		chain = append(chain, next)
		visited[next] = true
	}
	// Extend backward from the chain's current first edge.
	for {
		first := byID[chain[0]]
		v := first.Source
		if len(outOf[v]) != 1 || len(inOf[v]) != 1 {
			break
		}
		prev := inOf[v][0]
		if visited[prev] {
			break
		}
		chain = append([]uint32{prev}, chain...)
		visited[prev] = true
	}
	return chain
}

// pairTwins computes, for every chain, the assembly-graph edge formed by
// its reverse-complemented chain (spec §4.6: "the sequence of twin
// marker-graph edges, reversed"), marking self-complementary chains.
func (g *Graph) pairTwins(byID map[uint32]EdgeInput) {
	// chainOfFirstEdge maps a marker-graph edge id to the assembly-graph
	// edge whose chain starts with it, to look up a reverse-complemented
	// chain's assembly-graph edge by its first (twinned) marker-graph edge.
	chainOfFirstEdge := make(map[uint32]uint32, len(g.Edges))
	for _, e := range g.Edges {
		chainOfFirstEdge[e.Chain[0]] = e.ID
	}

	for i, e := range g.Edges {
		last := byID[e.Chain[len(e.Chain)-1]]
		if !last.HasTwinEdge {
			continue
		}
		twinChainFirst := last.TwinEdge
		twinAssemblyID, ok := chainOfFirstEdge[twinChainFirst]
		if !ok {
			continue
		}
		g.Edges[i].Twin = twinAssemblyID
		if twinAssemblyID == e.ID {
			g.Edges[i].SelfComplementary = true
		}
	}
}

// OutEdges returns the assembly-graph edges leaving vertex v.
func (g *Graph) OutEdges(v uint32) []uint32 { return g.outByVertex[v] }

// InEdges returns the assembly-graph edges entering vertex v.
func (g *Graph) InEdges(v uint32) []uint32 { return g.inByVertex[v] }
