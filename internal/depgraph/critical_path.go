package depgraph

// computeCriticalPath finds the longest chain of constraint edges
// weighted by estimate points. It runs a longest-path DP over the
// topological order, so the input edges must already be acyclic; nodes
// stuck in an unbroken cycle fall outside the computed order and are
// ignored.
//
// A chain needs at least one edge. When no two nodes are connected the
// critical path is empty rather than the single largest item.
func computeCriticalPath(nodes []string, edges []Relationship, points map[string]int) []string {
	if len(edges) == 0 {
		return nil
	}

	order, _ := kahnOrder(nodes, edges)
	adj := buildAdjacency(edges)

	inOrder := make(map[string]bool, len(order))
	for _, n := range order {
		inOrder[n] = true
	}

	dist := make(map[string]int, len(order))
	prev := make(map[string]string, len(order))
	for _, n := range order {
		dist[n] = points[n]
	}

	for _, n := range order {
		for _, a := range adj[n] {
			if !inOrder[a.to] {
				continue
			}
			candidate := dist[n] + points[a.to]
			if candidate > dist[a.to] ||
				(candidate == dist[a.to] && prevBeats(prev, a.to, n)) {
				dist[a.to] = candidate
				prev[a.to] = n
			}
		}
	}

	// Pick the heaviest chain end among nodes that are actually on a
	// chain. Ties go to the smaller key so runs are reproducible.
	var end string
	found := false
	for _, n := range order {
		if _, chained := prev[n]; !chained {
			continue
		}
		if !found || dist[n] > dist[end] || (dist[n] == dist[end] && n < end) {
			end = n
			found = true
		}
	}
	if !found {
		return nil
	}

	var path []string
	for cur := end; ; {
		path = append([]string{cur}, path...)
		p, ok := prev[cur]
		if !ok {
			break
		}
		cur = p
	}
	return path
}

// prevBeats reports whether candidate predecessor n should replace the
// current one for node on an equal-length chain.
func prevBeats(prev map[string]string, node, n string) bool {
	current, ok := prev[node]
	if !ok {
		return true
	}
	return n < current
}
