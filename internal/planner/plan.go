// Package planner is the engine facade: one entry point that runs the
// full pipeline (analyze, decompose, score, allocate, assess) over an
// in-memory backlog snapshot and returns the assembled ART plan.
//
// The engine is pure and deterministic. It performs no I/O, retains
// no state between calls, and given identical inputs produces an
// identical plan.
package planner

import (
	"fmt"
	"time"

	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/assess"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
	"github.com/ByBren-LLC/bigroom/internal/events"
	"github.com/ByBren-LLC/bigroom/internal/train"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// PlanStatus tracks a plan through assembly.
type PlanStatus string

const (
	// PlanStatusDraft marks a plan still being assembled.
	PlanStatusDraft PlanStatus = "draft"

	// PlanStatusValidated marks a plan whose iteration plans passed
	// the capacity and ordering checks.
	PlanStatusValidated PlanStatus = "validated"

	// PlanStatusFinal marks a fully assessed plan ready to return.
	PlanStatusFinal PlanStatus = "final"
)

// String returns the string representation of the plan status.
func (s PlanStatus) String() string {
	return string(s)
}

// CanTransitionTo validates a status transition. The machine is
// linear: draft -> validated -> final.
func (s PlanStatus) CanTransitionTo(target PlanStatus) bool {
	switch s {
	case PlanStatusDraft:
		return target == PlanStatusValidated
	case PlanStatusValidated:
		return target == PlanStatusFinal
	default:
		return false
	}
}

// TransitionTo advances the status, or reports an INVALID_PLAN_STATUS
// error when the transition is not legal.
func (s PlanStatus) TransitionTo(target PlanStatus) (PlanStatus, error) {
	if !s.CanTransitionTo(target) {
		return s, types.NewError(types.INVALID_PLAN_STATUS,
			fmt.Sprintf("cannot transition plan from %s to %s", s, target))
	}
	return target, nil
}

// AllocatedWorkItem is one scheduled item inside an iteration plan.
type AllocatedWorkItem struct {
	// Key is the work item's tracker key.
	Key string `json:"key"`

	// Team is the team the item was assigned to.
	Team string `json:"team"`

	// Points is the allocated estimate.
	Points int `json:"points"`

	// Complete reports whether the item is expected to finish within
	// its iteration.
	Complete bool `json:"complete"`

	// Confidence grades the allocation (velocity confidence times
	// remaining slack).
	Confidence float64 `json:"confidence"`

	// Rationale explains the placement.
	Rationale string `json:"rationale"`

	// BlockedBy lists hard prerequisites of this item.
	BlockedBy []string `json:"blocked_by,omitempty"`

	// Enables lists items waiting on this one.
	Enables []string `json:"enables,omitempty"`
}

// ValidationResult reports whether an iteration plan honors the
// capacity and ordering invariants.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// IterationPlan is one iteration with its allocated work. It is
// produced fresh per planning run and never mutated after assembly.
type IterationPlan struct {
	// Iteration is the time-box this plan fills.
	Iteration train.Iteration `json:"iteration"`

	// Allocated lists the scheduled items in placement order.
	Allocated []AllocatedWorkItem `json:"allocated"`

	// TotalPoints is the sum of allocated estimates.
	TotalPoints int `json:"total_points"`

	// Utilization maps team ID to charged points over the team's
	// usable capacity for this iteration.
	Utilization map[string]float64 `json:"utilization,omitempty"`

	// Value is the iteration's deliverable-value assessment.
	Value *assess.IterationValue `json:"value,omitempty"`

	// Validation reports the iteration's invariant checks.
	Validation ValidationResult `json:"validation"`
}

// RiskLevel grades the whole plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PlanSummary rolls the plan up for reporting.
type PlanSummary struct {
	TotalPoints      int       `json:"total_points"`
	AllocatedPoints  int       `json:"allocated_points"`
	AllocatedCount   int       `json:"allocated_count"`
	UnallocatedCount int       `json:"unallocated_count"`
	DecomposedCount  int       `json:"decomposed_count"`
	CapacityBalance  float64   `json:"capacity_balance"`
	RiskLevel        RiskLevel `json:"risk_level"`
}

// PlanWarning is a stage-local failure attached to the plan instead
// of aborting the run.
type PlanWarning struct {
	Stage   events.Stage `json:"stage"`
	ItemKey string       `json:"item_key,omitempty"`
	Message string       `json:"message"`
}

// ARTPlan is the sole artifact a planning run returns. It owns every
// contained structure; nothing mutates it after construction.
type ARTPlan struct {
	// ID identifies the planning run.
	ID types.ID `json:"id"`

	// Status is final for a plan whose iteration checks passed, and
	// draft when a validation violation was recorded.
	Status PlanStatus `json:"status"`

	// IterationPlans hold the per-iteration allocations, in calendar
	// order.
	IterationPlans []IterationPlan `json:"iteration_plans"`

	// Unallocated lists the items the scheduler could not place.
	Unallocated []allocate.UnallocatedItem `json:"unallocated,omitempty"`

	// Graph is the dependency graph the run used.
	Graph *depgraph.Graph `json:"graph"`

	// Summary rolls the plan up.
	Summary PlanSummary `json:"summary"`

	// Readiness is the whole-plan assessment.
	Readiness *assess.ReadinessResult `json:"readiness"`

	// Warnings carry stage-local failures (decomposition, scoring)
	// and advisory cycles.
	Warnings []PlanWarning `json:"warnings,omitempty"`

	// CreatedAt stamps the run.
	CreatedAt time.Time `json:"created_at"`
}
