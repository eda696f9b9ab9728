package markergraph

import (
	"container/heap"
	"sort"

	"github.com/shasta-assembly/shasta-core/assemblygraph"
)

// TransitiveReduction runs the approximate transitive reduction pass
// (spec §4.5): edges at or below lowCoverageThreshold are flagged weak
// immediately; for each coverage level strictly between
// lowCoverageThreshold and highCoverageThreshold, in ascending order, an
// edge is flagged if a bounded forward BFS from its source (over
// currently non-removed edges, excluding the edge itself) reaches its
// target within maxDistance hops.
func (g *Graph) TransitiveReduction() {
	byCoverage := make(map[uint8][]uint32)
	for i, e := range g.Edges {
		if e.IsRemoved() {
			continue
		}
		if int(e.Coverage) <= g.cfg.LowCoverageThreshold {
			g.Edges[i].Removed |= ReasonTransitiveReduction
			continue
		}
		byCoverage[e.Coverage] = append(byCoverage[e.Coverage], uint32(i))
	}

	var levels []int
	for c := range byCoverage {
		levels = append(levels, int(c))
	}
	sort.Ints(levels)

	for _, level := range levels {
		if level <= g.cfg.LowCoverageThreshold || level >= g.cfg.HighCoverageThreshold {
			continue
		}
		for _, eid := range byCoverage[uint8(level)] {
			e := g.Edges[eid]
			if e.IsRemoved() {
				continue
			}
			if g.reachableExcluding(e.Source, e.Target, eid, g.cfg.MaxDistance) {
				g.Edges[eid].Removed |= ReasonTransitiveReduction
			}
		}
	}
}

// reachableExcluding reports whether target is reachable from source
// within maxDistance hops over non-removed edges, ignoring excludeEdge at
// its source endpoint.
func (g *Graph) reachableExcluding(source, target VertexID, excludeEdge uint32, maxDistance int) bool {
	visited := map[VertexID]bool{source: true}
	frontier := []VertexID{source}
	for depth := 0; depth < maxDistance && len(frontier) > 0; depth++ {
		var next []VertexID
		for _, v := range frontier {
			for _, eid := range g.nonRemovedOut(v) {
				if v == source && eid == excludeEdge {
					continue
				}
				e := g.Edges[eid]
				if e.Target == target {
					return true
				}
				if !visited[e.Target] {
					visited[e.Target] = true
					next = append(next, e.Target)
				}
			}
		}
		frontier = next
	}
	return false
}

// RemoveShortCycles flags the marker-graph edges underlying two narrow
// classes of assembly-graph short cycle (spec §9's Design Note, spec §3's
// `short-cycle` removal-reason bit): self-edges (source == target) and
// reversed-edge pairs (v0->v1 and v1->v0 both exist, with v0 having no
// other incoming edge and v1 having no other outgoing edge), each
// considered only when its chain is at most maxLength marker-graph edges
// long. This is deliberately not generalized to arbitrary cycles.
func (g *Graph) RemoveShortCycles(maxLength int) {
	if maxLength <= 0 {
		return
	}
	ag := assemblygraph.Build(g.asAssemblyInput())

	toFlag := make(map[uint32]bool)
	for _, e := range ag.Edges {
		if e.Source == e.Target && len(e.Chain) <= maxLength {
			toFlag[e.ID] = true
		}
	}

	for _, e := range ag.Edges {
		if len(e.Chain) > maxLength {
			continue
		}
		v0, v1 := e.Source, e.Target
		if len(ag.InEdges(v0)) != 1 || len(ag.OutEdges(v1)) != 1 {
			continue
		}
		back := ag.Edges[ag.OutEdges(v1)[0]]
		if back.Target != v0 {
			continue
		}
		toFlag[e.ID] = true
	}

	for eid := range toFlag {
		for _, mgEdgeID := range ag.Edges[eid].Chain {
			g.Edges[mgEdgeID].Removed |= ReasonShortCycle
		}
	}
}

// PruneLeaves runs leaf pruning (spec §4.5): for iterationCount rounds,
// flag every edge whose source has no non-removed in-edges or whose
// target has no non-removed out-edges. Each round is computed against a
// snapshot of the previous round's result so that one round exposes
// exactly the next layer of leaves, rather than cascading within itself.
func (g *Graph) PruneLeaves(iterations int) {
	for iter := 0; iter < iterations; iter++ {
		var toFlag []uint32
		for i, e := range g.Edges {
			if e.IsRemoved() {
				continue
			}
			if len(g.nonRemovedIn(e.Source)) == 0 || len(g.nonRemovedOut(e.Target)) == 0 {
				toFlag = append(toFlag, uint32(i))
			}
		}
		if len(toFlag) == 0 {
			return // idempotent: nothing left to prune (spec §8)
		}
		for _, eid := range toFlag {
			g.Edges[eid].Removed |= ReasonPruned
		}
	}
}

// SimplifyBubbles runs bubble/superbubble simplification (spec §4.5): for
// each ascending maxLength threshold, rebuild the assembly graph and
// apply the parallel-edges pass followed by the short-edge-component
// shortest-path pass, discarding the assembly graph afterward.
func (g *Graph) SimplifyBubbles(maxLengthVector []int) {
	for _, maxLength := range maxLengthVector {
		ag := assemblygraph.Build(g.asAssemblyInput())
		g.simplifyParallelEdges(ag, maxLength)

		ag = assemblygraph.Build(g.asAssemblyInput()) // rebuilt after step 1's flags
		g.simplifyShortComponents(ag, maxLength)
	}
}

// simplifyParallelEdges implements spec §4.5 bubble step 1: among
// assembly-graph edges sharing source and target, if the longest has at
// most maxLength marker-graph edges, keep only the highest-average-
// coverage edge and flag the losers' marker-graph edges as bubble.
func (g *Graph) simplifyParallelEdges(ag *assemblygraph.Graph, maxLength int) {
	type key struct{ source, target uint32 }
	groups := make(map[key][]assemblygraph.Edge)
	for _, e := range ag.Edges {
		k := key{e.Source, e.Target}
		groups[k] = append(groups[k], e)
	}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		longest := 0
		for _, e := range group {
			if len(e.Chain) > longest {
				longest = len(e.Chain)
			}
		}
		if longest > maxLength {
			continue
		}
		best := 0
		for i, e := range group {
			if e.AverageCoverage > group[best].AverageCoverage {
				best = i
			}
		}
		for i, e := range group {
			if i == best {
				continue
			}
			for _, mgEdgeID := range e.Chain {
				g.Edges[mgEdgeID].Removed |= ReasonBubble
			}
		}
	}
}

// simplifyShortComponents implements spec §4.5 bubble step 2: form the
// subgraph of assembly-graph edges with chain length <= maxLength, find
// its connected components, and for each component with at least one
// entry and one exit vertex, keep only the shortest-path edges (by
// 1/averageCoverage length) from each entry to each reachable exit,
// flagging every other in-component edge as superbubble.
func (g *Graph) simplifyShortComponents(ag *assemblygraph.Graph, maxLength int) {
	var shortEdges []assemblygraph.Edge
	for _, e := range ag.Edges {
		if len(e.Chain) <= maxLength {
			shortEdges = append(shortEdges, e)
		}
	}
	if len(shortEdges) == 0 {
		return
	}

	components := groupIntoComponents(shortEdges)
	for _, comp := range components {
		entries, exits := entryExitVertices(comp, ag)
		if len(entries) == 0 || len(exits) == 0 {
			continue
		}
		kept := make(map[uint32]bool)
		for _, entry := range entries {
			for _, exit := range exits {
				path := shortestPath(comp, entry, exit)
				for _, eid := range path {
					kept[eid] = true
				}
			}
		}
		for _, e := range comp {
			if kept[e.ID] {
				continue
			}
			for _, mgEdgeID := range e.Chain {
				g.Edges[mgEdgeID].Removed |= ReasonSuperbubble
			}
		}
	}
}

// groupIntoComponents partitions edges into connected components of the
// undirected graph they induce over assembly-graph vertices.
func groupIntoComponents(edges []assemblygraph.Edge) [][]assemblygraph.Edge {
	parent := make(map[uint32]uint32)
	var find func(uint32) uint32
	find = func(v uint32) uint32 {
		if _, ok := parent[v]; !ok {
			parent[v] = v
		}
		for parent[v] != v {
			parent[v] = parent[parent[v]]
			v = parent[v]
		}
		return v
	}
	union := func(a, b uint32) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, e := range edges {
		union(e.Source, e.Target)
	}
	byRoot := make(map[uint32][]assemblygraph.Edge)
	for _, e := range edges {
		root := find(e.Source)
		byRoot[root] = append(byRoot[root], e)
	}
	var out [][]assemblygraph.Edge
	for _, comp := range byRoot {
		out = append(out, comp)
	}
	return out
}

// entryExitVertices finds, within one component, the vertices reached by
// an inbound edge from outside the component (entries) and the vertices
// with an outbound edge leaving the component (exits), per spec §4.5.
func entryExitVertices(comp []assemblygraph.Edge, ag *assemblygraph.Graph) ([]uint32, []uint32) {
	inComponent := make(map[uint32]bool)
	for _, e := range comp {
		inComponent[e.Source] = true
		inComponent[e.Target] = true
	}
	entrySet := make(map[uint32]bool)
	exitSet := make(map[uint32]bool)
	for v := range inComponent {
		for _, eid := range ag.InEdges(v) {
			if !inComponent[ag.Edges[eid].Source] {
				entrySet[v] = true
			}
		}
		for _, eid := range ag.OutEdges(v) {
			if !inComponent[ag.Edges[eid].Target] {
				exitSet[v] = true
			}
		}
	}
	var entries, exits []uint32
	for v := range entrySet {
		entries = append(entries, v)
	}
	for v := range exitSet {
		exits = append(exits, v)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i] < entries[j] })
	sort.Slice(exits, func(i, j int) bool { return exits[i] < exits[j] })
	return entries, exits
}

// pqItem is one entry of the shortest-path priority queue.
type pqItem struct {
	vertex uint32
	dist   float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// shortestPath runs Dijkstra's algorithm within comp from source to
// target, using 1/averageCoverage as edge length (spec §4.5), and returns
// the assembly-graph edge ids on the shortest path. Dijkstra is stdlib
// (container/heap) because no shortest-path library appears anywhere in
// the example pack (see DESIGN.md).
func shortestPath(comp []assemblygraph.Edge, source, target uint32) []uint32 {
	adj := make(map[uint32][]assemblygraph.Edge)
	for _, e := range comp {
		adj[e.Source] = append(adj[e.Source], e)
	}
	dist := map[uint32]float64{source: 0}
	prevEdge := make(map[uint32]uint32)
	hasPrev := make(map[uint32]bool)

	pq := &priorityQueue{{vertex: source, dist: 0}}
	heap.Init(pq)
	visited := make(map[uint32]bool)
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.vertex] {
			continue
		}
		visited[cur.vertex] = true
		if cur.vertex == target {
			break
		}
		for _, e := range adj[cur.vertex] {
			length := 1.0
			if e.AverageCoverage > 0 {
				length = 1.0 / e.AverageCoverage
			}
			nd := cur.dist + length
			if existing, ok := dist[e.Target]; !ok || nd < existing {
				dist[e.Target] = nd
				prevEdge[e.Target] = e.ID
				hasPrev[e.Target] = true
				heap.Push(pq, pqItem{vertex: e.Target, dist: nd})
			}
		}
	}

	if !hasPrev[target] && target != source {
		return nil
	}
	var path []uint32
	v := target
	for v != source {
		eid, ok := prevEdge[v]
		if !ok {
			break
		}
		path = append([]uint32{eid}, path...)
		v = findEdgeSource(comp, eid)
	}
	return path
}

func findEdgeSource(comp []assemblygraph.Edge, id uint32) uint32 {
	for _, e := range comp {
		if e.ID == id {
			return e.Source
		}
	}
	return 0
}
