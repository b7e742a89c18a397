package assess

import "fmt"

// IterationValue is the deliverable-value assessment of one iteration.
type IterationValue struct {
	// Iteration is the zero-based iteration index.
	Iteration int `json:"iteration"`

	// Name is the iteration's display name.
	Name string `json:"name"`

	// DeliversValue is true when the iteration can ship working
	// software independent of later iterations: at least one
	// allocation is complete with every hard prerequisite finished
	// no later than this iteration.
	DeliversValue bool `json:"delivers_value"`

	// Score is completed points over allocated points, zero for an
	// empty iteration.
	Score float64 `json:"score"`

	// CompletedPoints and TotalPoints summarize the iteration's load.
	CompletedPoints int `json:"completed_points"`
	TotalPoints     int `json:"total_points"`

	// Reasons explain the verdict.
	Reasons []string `json:"reasons,omitempty"`
}

// iterationValues assesses deliverable value per iteration.
func iterationValues(in input) []IterationValue {
	values := make([]IterationValue, len(in.iterations))
	for k := range in.iterations {
		values[k] = IterationValue{Iteration: k, Name: in.iterations[k].Name}
	}

	prereqs := map[string][]string{}
	if in.graph != nil {
		prereqs = in.graph.Prerequisites()
	}

	for _, al := range in.alloc.Allocated {
		v := &values[al.Iteration]
		v.TotalPoints += al.Points
		if !al.Complete {
			continue
		}
		v.CompletedPoints += al.Points
		if !v.DeliversValue && prereqsSatisfiedBy(al.Key, al.Iteration, prereqs, in) {
			v.DeliversValue = true
			v.Reasons = append(v.Reasons,
				fmt.Sprintf("%s completes with all prerequisites finished", al.Key))
		}
	}

	for k := range values {
		v := &values[k]
		switch {
		case v.TotalPoints == 0:
			v.Reasons = append(v.Reasons, "no work allocated")
		case v.CompletedPoints == 0:
			v.Reasons = append(v.Reasons, "no allocation expected to complete within the time-box")
		default:
			v.Score = float64(v.CompletedPoints) / float64(v.TotalPoints)
		}
		if v.TotalPoints > 0 && !v.DeliversValue && v.CompletedPoints > 0 {
			v.Reasons = append(v.Reasons, "completed work still waits on unfinished prerequisites")
		}
	}
	return values
}

// prereqsSatisfiedBy reports whether every hard prerequisite of key is
// allocated and finishes no later than iteration k. Prerequisites that
// are not schedulable items in this plan count as unmet: the iteration
// cannot ship value that depends on work outside the plan.
func prereqsSatisfiedBy(key string, k int, prereqs map[string][]string, in input) bool {
	for _, p := range prereqs[key] {
		done, ok := in.allocatedAt[p]
		if !ok {
			if !schedulableKey(p, in) {
				continue
			}
			return false
		}
		if done > k {
			return false
		}
		if done == k && !in.completeAt[p] {
			return false
		}
	}
	return true
}

// schedulableKey reports whether the key names a story or enabler in
// the plan's item set. Container items carry no schedulable work of
// their own.
func schedulableKey(key string, in input) bool {
	for _, item := range in.items {
		if item.Key == key {
			return item.Kind.IsSchedulable()
		}
	}
	return false
}
