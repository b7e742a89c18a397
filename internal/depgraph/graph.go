package depgraph

import (
	"sort"
	"time"
)

// CycleSeverity grades a detected dependency cycle.
type CycleSeverity string

const (
	// SeverityCritical marks a cycle made entirely of hard constraint
	// edges. Such a cycle makes the backlog unschedulable until broken.
	SeverityCritical CycleSeverity = "critical"

	// SeverityWarning marks a cycle that includes at least one soft or
	// advisory edge. Planning can proceed; the cycle is reported.
	SeverityWarning CycleSeverity = "warning"
)

// Cycle is one detected dependency cycle.
type Cycle struct {
	// Keys lists the item keys on the cycle, in traversal order,
	// rotated so the lexicographically smallest key comes first.
	Keys []string `json:"keys"`

	// Edges are the relationships forming the cycle.
	Edges []Relationship `json:"edges"`

	// Severity is critical when every edge is a hard constraint.
	Severity CycleSeverity `json:"severity"`

	// BrokenEdge is the edge dropped to break the cycle, nil when the
	// cycle could not be broken (all edges manual).
	BrokenEdge *Relationship `json:"broken_edge,omitempty"`
}

// IsBroken reports whether cycle breaking removed an edge from this cycle.
func (c Cycle) IsBroken() bool {
	return c.BrokenEdge != nil
}

// GraphStats summarizes a built graph.
type GraphStats struct {
	NodeCount     int     `json:"node_count"`
	EdgeCount     int     `json:"edge_count"`
	HardCount     int     `json:"hard_count"`
	AverageDegree float64 `json:"average_degree"`
}

// Graph is the result of one dependency analysis run. It is rebuilt
// wholesale per run and never mutated afterwards.
type Graph struct {
	// Nodes lists the item keys in scope, in input order.
	Nodes []string `json:"nodes"`

	// Edges holds every relationship that survived the confidence
	// threshold, including edges later dropped by cycle breaking.
	Edges []Relationship `json:"edges"`

	// Cycles lists detected cycles with their severity and break status.
	Cycles []Cycle `json:"cycles,omitempty"`

	// Dropped lists edges removed by cycle breaking. They remain in
	// Edges for audit but are excluded from scheduling constraints.
	Dropped []Relationship `json:"dropped,omitempty"`

	// CriticalPath is the longest chain of hard constraint edges
	// weighted by estimate, as item keys in execution order.
	CriticalPath []string `json:"critical_path,omitempty"`

	// Stats summarizes the graph.
	Stats GraphStats `json:"stats"`

	// AnalyzedAt is when the analysis run completed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	dropped map[string]bool
	onPath  map[string]bool
}

// NewGraph assembles a graph from analysis output and precomputes the
// lookup sets the allocator queries.
func NewGraph(nodes []string, edges []Relationship) *Graph {
	g := &Graph{
		Nodes: nodes,
		Edges: edges,
	}
	g.Stats = GraphStats{
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}
	for _, e := range edges {
		if e.Strength == StrengthHard {
			g.Stats.HardCount++
		}
	}
	if len(nodes) > 0 {
		g.Stats.AverageDegree = float64(len(edges)) / float64(len(nodes))
	}
	g.dropped = make(map[string]bool)
	g.onPath = make(map[string]bool)
	return g
}

// markDropped records edges removed by cycle breaking.
func (g *Graph) markDropped(edges []Relationship) {
	for _, e := range edges {
		if !g.dropped[e.identity()] {
			g.dropped[e.identity()] = true
			g.Dropped = append(g.Dropped, e)
		}
	}
}

// setCriticalPath stores the computed path and its membership set.
func (g *Graph) setCriticalPath(path []string) {
	g.CriticalPath = path
	g.onPath = make(map[string]bool, len(path))
	for _, key := range path {
		g.onPath[key] = true
	}
}

// IsDropped reports whether cycle breaking removed this edge from the
// scheduling constraints.
func (g *Graph) IsDropped(r Relationship) bool {
	return g.dropped[r.identity()]
}

// OnCriticalPath reports whether the item key lies on the critical path.
func (g *Graph) OnCriticalPath(key string) bool {
	return g.onPath[key]
}

// ConstraintEdges returns the hard blocks/requires edges that survive
// cycle breaking. These are the only edges the allocator must honor.
func (g *Graph) ConstraintEdges() []Relationship {
	var out []Relationship
	for _, e := range g.Edges {
		if e.ConstrainsScheduling() && !g.IsDropped(e) {
			out = append(out, e)
		}
	}
	return out
}

// TopologicalOrder returns the graph's nodes in dependency order over
// the surviving constraint edges, prerequisites before dependents. ok
// is false when an unbroken cycle prevents a complete ordering; the
// returned prefix then covers only the acyclic part.
func (g *Graph) TopologicalOrder() ([]string, bool) {
	return kahnOrder(g.Nodes, g.ConstraintEdges())
}

// UnbrokenCritical returns the critical cycles cycle breaking could not
// resolve. Any entry here makes the backlog unschedulable.
func (g *Graph) UnbrokenCritical() []Cycle {
	var out []Cycle
	for _, c := range g.Cycles {
		if c.Severity == SeverityCritical && !c.IsBroken() {
			out = append(out, c)
		}
	}
	return out
}

// Prerequisites returns, per dependent key, the sorted prerequisite keys
// implied by the surviving constraint edges.
func (g *Graph) Prerequisites() map[string][]string {
	prereqs := make(map[string][]string)
	for _, e := range g.ConstraintEdges() {
		pre, dep, ok := e.Direction()
		if !ok {
			continue
		}
		prereqs[dep] = append(prereqs[dep], pre)
	}
	for dep := range prereqs {
		sort.Strings(prereqs[dep])
		prereqs[dep] = dedupSorted(prereqs[dep])
	}
	return prereqs
}

// Dependents returns, per prerequisite key, the sorted keys it unblocks.
func (g *Graph) Dependents() map[string][]string {
	deps := make(map[string][]string)
	for _, e := range g.ConstraintEdges() {
		pre, dep, ok := e.Direction()
		if !ok {
			continue
		}
		deps[pre] = append(deps[pre], dep)
	}
	for pre := range deps {
		sort.Strings(deps[pre])
		deps[pre] = dedupSorted(deps[pre])
	}
	return deps
}

// EdgesFrom returns every edge whose source is the given key.
func (g *Graph) EdgesFrom(key string) []Relationship {
	var out []Relationship
	for _, e := range g.Edges {
		if e.SourceKey == key {
			out = append(out, e)
		}
	}
	return out
}

func dedupSorted(keys []string) []string {
	out := keys[:0]
	for i, k := range keys {
		if i == 0 || keys[i-1] != k {
			out = append(out, k)
		}
	}
	return out
}
