package depgraph

import (
	"sort"
	"strings"
)

// arc is one directed step in the scheduling-order graph, carrying the
// relationship that produced it.
type arc struct {
	to   string
	edge Relationship
}

// buildAdjacency maps each prerequisite key to its outgoing arcs, in a
// deterministic order. Undirected edge types are skipped.
func buildAdjacency(edges []Relationship) map[string][]arc {
	adj := make(map[string][]arc)
	for _, e := range edges {
		pre, dep, ok := e.Direction()
		if !ok {
			continue
		}
		adj[pre] = append(adj[pre], arc{to: dep, edge: e})
	}
	for key := range adj {
		arcs := adj[key]
		sort.Slice(arcs, func(i, j int) bool {
			if arcs[i].to != arcs[j].to {
				return arcs[i].to < arcs[j].to
			}
			return arcs[i].edge.identity() < arcs[j].edge.identity()
		})
	}
	return adj
}

// detectCycles finds dependency cycles via depth-first search with
// white/gray/black coloring. A gray neighbor marks a back edge; the
// cycle path is reconstructed by walking the parent chain. Unlike a
// plain DAG check the search keeps going after recording a cycle, so
// every back edge reachable from the node set is reported.
//
// Nodes are visited in sorted order and results are canonicalized, so
// output is deterministic for a given input.
func detectCycles(nodes []string, edges []Relationship) []Cycle {
	adj := buildAdjacency(edges)

	sorted := append([]string(nil), nodes...)
	sort.Strings(sorted)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(sorted))
	parent := make(map[string]string)
	parentEdge := make(map[string]Relationship)

	var cycles []Cycle
	seen := make(map[string]bool)

	record := func(from string, back arc) {
		// Walk parents from the back edge's origin up to its target,
		// collecting the tree path that the back edge closes.
		keys := []string{from}
		var treeEdges []Relationship
		cur := from
		for cur != back.to {
			prev, ok := parent[cur]
			if !ok {
				return
			}
			keys = append([]string{prev}, keys...)
			treeEdges = append([]Relationship{parentEdge[cur]}, treeEdges...)
			cur = prev
		}
		cycleEdges := append(treeEdges, back.edge)

		keys, cycleEdges = canonicalizeCycle(keys, cycleEdges)
		sig := strings.Join(keys, "\x00")
		if seen[sig] {
			return
		}
		seen[sig] = true

		cycles = append(cycles, Cycle{
			Keys:     keys,
			Edges:    cycleEdges,
			Severity: cycleSeverity(cycleEdges),
		})
	}

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		for _, a := range adj[node] {
			switch color[a.to] {
			case white:
				parent[a.to] = node
				parentEdge[a.to] = a.edge
				dfs(a.to)
			case gray:
				record(node, a)
			}
		}
		color[node] = black
	}

	for _, node := range sorted {
		if color[node] == white {
			dfs(node)
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i].Keys, "\x00") < strings.Join(cycles[j].Keys, "\x00")
	})
	return cycles
}

// canonicalizeCycle rotates the cycle so the lexicographically smallest
// key comes first. Edges are rotated by the same offset so edge i still
// leads from key i to key (i+1) mod n.
func canonicalizeCycle(keys []string, edges []Relationship) ([]string, []Relationship) {
	if len(keys) == 0 {
		return keys, edges
	}
	min := 0
	for i, k := range keys {
		if k < keys[min] {
			min = i
		}
	}
	if min == 0 {
		return keys, edges
	}
	rk := append(append([]string(nil), keys[min:]...), keys[:min]...)
	re := append(append([]Relationship(nil), edges[min:]...), edges[:min]...)
	return rk, re
}

// cycleSeverity grades a cycle: critical when every edge is hard.
func cycleSeverity(edges []Relationship) CycleSeverity {
	for _, e := range edges {
		if e.Strength != StrengthHard {
			return SeverityWarning
		}
	}
	return SeverityCritical
}

// chooseBreakEdge picks the edge cycle breaking should drop: the lowest
// confidence edge, ties resolved by the stable edge identity. Manual
// edges are never dropped; a cycle of only manual edges returns nil.
func chooseBreakEdge(c Cycle) *Relationship {
	var best *Relationship
	for i := range c.Edges {
		e := &c.Edges[i]
		if e.Method == MethodManual {
			continue
		}
		if best == nil || e.Confidence < best.Confidence ||
			(e.Confidence == best.Confidence && e.identity() < best.identity()) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// kahnOrder computes a topological order of the nodes over the given
// edges using Kahn's algorithm. The zero in-degree frontier is kept
// sorted and the smallest key is taken first, so the order is total and
// deterministic. When a cycle prevents completion the returned order
// covers only the acyclic prefix and ok is false.
func kahnOrder(nodes []string, edges []Relationship) (order []string, ok bool) {
	adj := buildAdjacency(edges)

	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = 0
	}
	for _, arcs := range adj {
		for _, a := range arcs {
			if _, known := inDegree[a.to]; known {
				inDegree[a.to]++
			}
		}
	}

	var frontier []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			frontier = append(frontier, n)
		}
	}
	sort.Strings(frontier)

	order = make([]string, 0, len(nodes))
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		order = append(order, current)

		for _, a := range adj[current] {
			if _, known := inDegree[a.to]; !known {
				continue
			}
			inDegree[a.to]--
			if inDegree[a.to] == 0 {
				i := sort.SearchStrings(frontier, a.to)
				frontier = append(frontier, "")
				copy(frontier[i+1:], frontier[i:])
				frontier[i] = a.to
			}
		}
	}

	return order, len(order) == len(nodes)
}
