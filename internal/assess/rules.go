package assess

import (
	"fmt"
	"strings"

	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
)

// categoryRule evaluates one readiness dimension. Each rule returns a
// score in [0,1] plus any critical blockers it found.
type categoryRule struct {
	Category    Category
	Description string
	Evaluate    func(in input) (float64, []Blocker)
}

// defaultRules returns the readiness rule set, one rule per category.
func defaultRules() []categoryRule {
	return []categoryRule{
		{
			Category:    CategoryStoryReadiness,
			Description: "Share of schedulable items with acceptance criteria and a usable estimate",
			Evaluate:    evaluateStoryReadiness,
		},
		{
			Category:    CategoryDependencyResolution,
			Description: "Share of dependency relationships the plan resolves",
			Evaluate:    evaluateDependencyResolution,
		},
		{
			Category:    CategoryCapacityAllocation,
			Description: "Share of backlog points the plan placed into iterations",
			Evaluate:    evaluateCapacityAllocation,
		},
		{
			Category:    CategoryValueDelivery,
			Description: "How much of each iteration's load completes within its time-box",
			Evaluate:    evaluateValueDelivery,
		},
		{
			Category:    CategoryRiskMitigation,
			Description: "Average allocation confidence, penalized per unresolved cycle warning",
			Evaluate:    evaluateRiskMitigation,
		},
		{
			Category:    CategoryTeamAlignment,
			Description: "How evenly the plan loads the participating teams",
			Evaluate:    evaluateTeamAlignment,
		},
	}
}

func evaluateStoryReadiness(in input) (float64, []Blocker) {
	total, ready := 0, 0
	for _, item := range in.items {
		if !item.Kind.IsSchedulable() {
			continue
		}
		total++
		if len(item.AcceptanceCriteria) > 0 && item.Points > 0 {
			ready++
		}
	}
	if total == 0 {
		return 1, nil
	}
	return float64(ready) / float64(total), nil
}

func evaluateDependencyResolution(in input) (float64, []Blocker) {
	if in.graph == nil || len(in.graph.Edges) == 0 {
		return 1, nil
	}

	var blockers []Blocker
	unresolved := make(map[string]bool)
	for _, c := range in.graph.UnbrokenCritical() {
		blockers = append(blockers, Blocker{
			Category: CategoryDependencyResolution,
			Description: fmt.Sprintf("unbroken hard dependency cycle: %s",
				strings.Join(c.Keys, " -> ")),
			ItemKeys: c.Keys,
		})
		for _, e := range c.Edges {
			unresolved[edgeKey(e)] = true
		}
	}

	for _, e := range in.graph.ConstraintEdges() {
		prereq, dependent, directed := e.Direction()
		if !directed {
			continue
		}
		_, prereqPlaced := in.allocatedAt[prereq]
		_, depPlaced := in.allocatedAt[dependent]
		if depPlaced && !prereqPlaced && schedulableKey(prereq, in) {
			unresolved[edgeKey(e)] = true
		}
	}

	score := 1 - float64(len(unresolved))/float64(len(in.graph.Edges))
	if score < 0 {
		score = 0
	}
	return score, blockers
}

func evaluateCapacityAllocation(in input) (float64, []Blocker) {
	stats := in.alloc.Stats
	var blockers []Blocker
	for _, u := range in.alloc.Unallocated {
		if u.Reason != allocate.ReasonExceedsCapacity {
			continue
		}
		blockers = append(blockers, Blocker{
			Category: CategoryCapacityAllocation,
			Description: fmt.Sprintf("%s (%d points) exceeds every single-iteration capacity",
				u.Key, u.Points),
			ItemKeys: []string{u.Key},
		})
	}
	if stats.TotalPoints == 0 {
		return 1, blockers
	}
	return float64(stats.AllocatedPoints) / float64(stats.TotalPoints), blockers
}

func evaluateValueDelivery(in input) (float64, []Blocker) {
	loaded, delivering := 0, 0
	var sum float64
	for _, v := range in.values {
		if v.TotalPoints > 0 {
			sum += v.Score
			loaded++
			if v.DeliversValue {
				delivering++
			}
		}
	}

	// Empty iterations carry no value verdict either way; an entirely
	// empty plan only scores 1 when there was nothing to place.
	score := 1.0
	if loaded > 0 {
		score = sum / float64(loaded)
	} else if in.alloc.Stats.TotalPoints > 0 {
		score = 0
	}

	var blockers []Blocker
	if loaded > 0 && delivering == 0 {
		blockers = append(blockers, Blocker{
			Category:    CategoryValueDelivery,
			Description: "no iteration ships independently working software",
		})
	}
	return score, blockers
}

func evaluateRiskMitigation(in input) (float64, []Blocker) {
	score := 1.0
	if len(in.alloc.Allocated) > 0 {
		var sum float64
		for _, al := range in.alloc.Allocated {
			sum += al.Confidence
		}
		score = sum / float64(len(in.alloc.Allocated))
	}

	if in.graph != nil {
		for _, c := range in.graph.Cycles {
			if c.Severity == depgraph.SeverityWarning {
				score -= 0.1
			}
		}
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}

func evaluateTeamAlignment(in input) (float64, []Blocker) {
	util := in.alloc.Stats.Utilization
	if len(util) <= 1 {
		return 1, nil
	}

	min, max := 1.0, 0.0
	for _, u := range util {
		if u < min {
			min = u
		}
		if u > max {
			max = u
		}
	}
	if max <= 0 {
		return 1, nil
	}
	return 1 - (max-min)/max, nil
}

func edgeKey(e depgraph.Relationship) string {
	return e.SourceKey + "\x00" + e.TargetKey + "\x00" + string(e.Type)
}

// recommend produces the templated remedy for a weak category.
func recommend(cat Category, score float64) Recommendation {
	r := Recommendation{Category: cat}
	switch cat {
	case CategoryStoryReadiness:
		r.Action = "refine stories before committing"
		r.Detail = "add acceptance criteria and estimates to the unready stories"
	case CategoryDependencyResolution:
		r.Action = "resolve dependency hazards"
		r.Detail = "break remaining cycles and schedule prerequisites inside the horizon"
	case CategoryCapacityAllocation:
		r.Action = "rebalance scope against capacity"
		r.Detail = "decompose oversized items, add capacity, or defer low-priority work"
	case CategoryValueDelivery:
		r.Action = "front-load shippable work"
		r.Detail = "pull at least one independently completable story into each iteration"
	case CategoryRiskMitigation:
		r.Action = "reduce schedule risk"
		r.Detail = "leave more slack in packed iterations and revisit low-confidence velocity figures"
	case CategoryTeamAlignment:
		r.Action = "level the load across teams"
		r.Detail = "move unpinned work from the most loaded team to the least loaded one"
	}
	r.Detail = fmt.Sprintf("%s (score %.2f)", r.Detail, score)
	return r
}
