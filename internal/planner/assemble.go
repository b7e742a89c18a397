package planner

import (
	"fmt"
	"sort"

	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/assess"
	"github.com/ByBren-LLC/bigroom/internal/train"
)

const capacityTolerance = 1e-9

// assemble folds the stage outputs into the returned plan. Each
// iteration plan is validated against the capacity and ordering
// invariants; a violation leaves the plan in draft instead of
// promoting it.
func (e *Engine) assemble(run *runState, iterations []train.Iteration) *ARTPlan {
	prereqs := run.graph.Prerequisites()
	dependents := run.graph.Dependents()

	working := make(map[string]bool, len(run.schedulable))
	for _, item := range run.schedulable {
		working[item.Key] = true
	}

	allocatedAt := make(map[string]int, len(run.alloc.Allocated))
	completeAt := make(map[string]bool, len(run.alloc.Allocated))
	for _, a := range run.alloc.Allocated {
		allocatedAt[a.Key] = a.Iteration
		completeAt[a.Key] = a.Complete
	}

	values := make(map[int]*assess.IterationValue, len(run.readiness.IterationValues))
	for i := range run.readiness.IterationValues {
		v := &run.readiness.IterationValues[i]
		values[v.Iteration] = v
	}

	plans := make([]IterationPlan, len(iterations))
	allValid := true
	for k, it := range iterations {
		p := IterationPlan{Iteration: it, Value: values[k]}
		charged := make(map[string]float64)
		var violations []string

		for _, a := range run.alloc.Allocated {
			if a.Iteration != k {
				continue
			}
			p.Allocated = append(p.Allocated, AllocatedWorkItem{
				Key:        a.Key,
				Team:       a.Team,
				Points:     a.Points,
				Complete:   a.Complete,
				Confidence: a.Confidence,
				Rationale:  a.Rationale,
				BlockedBy:  keysIn(prereqs[a.Key], working),
				Enables:    keysIn(dependents[a.Key], working),
			})
			p.TotalPoints += a.Points
			charged[a.Team] += float64(a.Points)

			for _, pre := range prereqs[a.Key] {
				if !working[pre] {
					continue
				}
				at, ok := allocatedAt[pre]
				switch {
				case !ok:
					violations = append(violations,
						fmt.Sprintf("%s scheduled in %s but prerequisite %s is unallocated", a.Key, it.Name, pre))
				case at > k:
					violations = append(violations,
						fmt.Sprintf("%s scheduled in %s ahead of prerequisite %s", a.Key, it.Name, pre))
				case at == k && !completeAt[pre]:
					violations = append(violations,
						fmt.Sprintf("%s shares %s with prerequisite %s that is not expected to finish", a.Key, it.Name, pre))
				}
			}
		}

		p.Utilization = make(map[string]float64, len(it.Capacities))
		for _, c := range it.Capacities {
			usable := allocate.UsableCapacity(c, run.cfg.Allocation)
			if usable <= 0 {
				if charged[c.TeamID] > capacityTolerance {
					violations = append(violations,
						fmt.Sprintf("team %s carries %.1f points with no usable capacity in %s", c.TeamID, charged[c.TeamID], it.Name))
				}
				continue
			}
			p.Utilization[c.TeamID] = charged[c.TeamID] / usable
			if charged[c.TeamID] > usable+capacityTolerance {
				violations = append(violations,
					fmt.Sprintf("team %s carries %.1f points against %.1f usable in %s", c.TeamID, charged[c.TeamID], usable, it.Name))
			}
		}

		p.Validation = ValidationResult{Valid: len(violations) == 0, Violations: violations}
		if !p.Validation.Valid {
			allValid = false
		}
		plans[k] = p
	}

	status := PlanStatusDraft
	if allValid && status.CanTransitionTo(PlanStatusValidated) {
		status = PlanStatusValidated
	}
	if run.readiness != nil && status.CanTransitionTo(PlanStatusFinal) {
		status = PlanStatusFinal
	}

	return &ARTPlan{
		ID:             run.planID,
		Status:         status,
		IterationPlans: plans,
		Unallocated:    run.alloc.Unallocated,
		Graph:          run.graph,
		Summary:        e.summarize(run),
		Readiness:      run.readiness,
		Warnings:       run.warnings,
		CreatedAt:      e.clock(),
	}
}

func (e *Engine) summarize(run *runState) PlanSummary {
	s := PlanSummary{
		TotalPoints:      run.alloc.Stats.TotalPoints,
		AllocatedPoints:  run.alloc.Stats.AllocatedPoints,
		AllocatedCount:   run.alloc.Stats.AllocatedCount,
		UnallocatedCount: run.alloc.Stats.UnallocatedCount,
		DecomposedCount:  run.decomposed,
		CapacityBalance:  capacityBalance(run.alloc.Stats.Utilization),
		RiskLevel:        riskLevel(run),
	}
	return s
}

// capacityBalance grades how evenly load spreads across teams:
// 1 means identical utilization everywhere, 0 means at least one
// team idle while another is loaded.
func capacityBalance(utilization map[string]float64) float64 {
	if len(utilization) == 0 {
		return 1
	}
	first := true
	var min, max float64
	for _, u := range utilization {
		if first {
			min, max = u, u
			first = false
			continue
		}
		if u < min {
			min = u
		}
		if u > max {
			max = u
		}
	}
	if max <= 0 {
		return 1
	}
	return 1 - (max-min)/max
}

func riskLevel(run *runState) RiskLevel {
	switch {
	case len(run.readiness.CriticalBlockers) > 0:
		return RiskHigh
	case !run.readiness.IsReady,
		len(run.warnings) > 0,
		run.alloc.Stats.UnallocatedCount > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// keysIn filters keys to those present in the working set, sorted so
// plan output is stable run to run.
func keysIn(keys []string, working map[string]bool) []string {
	var out []string
	for _, k := range keys {
		if working[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
