// Package assess post-processes an allocation into value and
// readiness assessments: can each iteration ship working software on
// its own, and is the train ready to commit to the plan.
//
// Readiness is scored per category by a fixed rule set, combined into
// a weighted overall score, and gated on both a configurable minimum
// and the absence of critical blockers. Recommendations come from
// templates keyed by the failing category.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
	"github.com/ByBren-LLC/bigroom/internal/train"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Category is one readiness dimension.
type Category string

const (
	CategoryStoryReadiness       Category = "story_readiness"
	CategoryDependencyResolution Category = "dependency_resolution"
	CategoryCapacityAllocation   Category = "capacity_allocation"
	CategoryValueDelivery        Category = "value_delivery"
	CategoryRiskMitigation       Category = "risk_mitigation"
	CategoryTeamAlignment        Category = "team_alignment"
)

// Categories lists every readiness dimension in report order.
func Categories() []Category {
	return []Category{
		CategoryStoryReadiness,
		CategoryDependencyResolution,
		CategoryCapacityAllocation,
		CategoryValueDelivery,
		CategoryRiskMitigation,
		CategoryTeamAlignment,
	}
}

// Config controls the readiness gate.
type Config struct {
	// MinReadyScore is the overall score a plan must reach to be
	// declared ready. Critical blockers veto regardless.
	MinReadyScore float64 `json:"min_ready_score" yaml:"min_ready_score" mapstructure:"min_ready_score" validate:"min=0,max=1"`

	// Weights scale each category's contribution to the overall
	// score. Missing categories weigh 1.
	Weights map[Category]float64 `json:"weights,omitempty" yaml:"weights,omitempty" mapstructure:"weights"`
}

// DefaultConfig returns the stock readiness configuration.
func DefaultConfig() Config {
	return Config{MinReadyScore: 0.85}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.MinReadyScore < 0 || c.MinReadyScore > 1 {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("min ready score %.2f outside [0,1]", c.MinReadyScore))
	}
	for cat, w := range c.Weights {
		if w < 0 {
			return types.NewFatalError(types.VALIDATION_FAILED,
				fmt.Sprintf("category %s weight %.2f below zero", cat, w))
		}
	}
	return nil
}

// weight resolves a category's weight, defaulting to 1.
func (c Config) weight(cat Category) float64 {
	if w, ok := c.Weights[cat]; ok {
		return w
	}
	return 1
}

// Blocker is one condition that vetoes readiness.
type Blocker struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	ItemKeys    []string `json:"item_keys,omitempty"`
}

// Recommendation is a templated remedy for a weak category.
type Recommendation struct {
	Category Category `json:"category"`
	Action   string   `json:"action"`
	Detail   string   `json:"detail"`
}

// ReadinessResult is the whole-plan assessment.
type ReadinessResult struct {
	// CategoryScores holds each dimension's score in [0,1].
	CategoryScores map[Category]float64 `json:"category_scores"`

	// Overall is the weighted average of the category scores.
	Overall float64 `json:"overall"`

	// IsReady is true when Overall reaches the configured minimum
	// and no critical blockers remain.
	IsReady bool `json:"is_ready"`

	// CriticalBlockers lists the conditions vetoing readiness.
	CriticalBlockers []Blocker `json:"critical_blockers,omitempty"`

	// Recommendations carry one templated remedy per weak category.
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	// IterationValues hold the per-iteration value assessments.
	IterationValues []IterationValue `json:"iteration_values"`
}

// input bundles everything the category rules inspect.
type input struct {
	iterations  []train.Iteration
	items       []backlog.WorkItem
	graph       *depgraph.Graph
	alloc       *allocate.Result
	values      []IterationValue
	allocatedAt map[string]int
	completeAt  map[string]bool
}

// Assessor scores iteration plans for deliverable value and ART
// readiness.
type Assessor struct {
	cfg    Config
	rules  []categoryRule
	logger *slog.Logger
}

// NewAssessor creates an assessor. A zero-value config falls back to
// the defaults; a nil logger falls back to slog.Default.
func NewAssessor(cfg Config, logger *slog.Logger) *Assessor {
	if cfg.MinReadyScore == 0 && cfg.Weights == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{cfg: cfg, rules: defaultRules(), logger: logger}
}

// Assess evaluates an allocation result against its iterations and
// dependency graph. The graph may be nil when no analysis ran; alloc
// must not be nil.
func (a *Assessor) Assess(
	ctx context.Context,
	iterations []train.Iteration,
	items []backlog.WorkItem,
	graph *depgraph.Graph,
	alloc *allocate.Result,
) (*ReadinessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, types.NewFatalError(types.VALIDATION_FAILED, "assessment requires an allocation result")
	}

	in := input{
		iterations:  iterations,
		items:       items,
		graph:       graph,
		alloc:       alloc,
		allocatedAt: make(map[string]int, len(alloc.Allocated)),
		completeAt:  make(map[string]bool, len(alloc.Allocated)),
	}
	for _, al := range alloc.Allocated {
		in.allocatedAt[al.Key] = al.Iteration
		in.completeAt[al.Key] = al.Complete
	}
	in.values = iterationValues(in)

	result := &ReadinessResult{
		CategoryScores:  make(map[Category]float64, len(a.rules)),
		IterationValues: in.values,
	}

	var weighted, totalWeight float64
	for _, rule := range a.rules {
		score, blockers := rule.Evaluate(in)
		result.CategoryScores[rule.Category] = score
		result.CriticalBlockers = append(result.CriticalBlockers, blockers...)

		w := a.cfg.weight(rule.Category)
		weighted += score * w
		totalWeight += w

		if score < a.cfg.MinReadyScore {
			result.Recommendations = append(result.Recommendations, recommend(rule.Category, score))
		}
	}
	if totalWeight > 0 {
		result.Overall = weighted / totalWeight
	}
	sort.Slice(result.CriticalBlockers, func(i, j int) bool {
		bi, bj := result.CriticalBlockers[i], result.CriticalBlockers[j]
		if bi.Category != bj.Category {
			return bi.Category < bj.Category
		}
		return bi.Description < bj.Description
	})
	result.IsReady = result.Overall >= a.cfg.MinReadyScore && len(result.CriticalBlockers) == 0

	a.logger.Debug("plan assessed",
		"overall", result.Overall,
		"ready", result.IsReady,
		"blockers", len(result.CriticalBlockers),
		"recommendations", len(result.Recommendations))

	return result, nil
}
