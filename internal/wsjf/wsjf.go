// Package wsjf computes Weighted-Shortest-Job-First priority scores
// for backlog items.
//
// A score is (business value + time criticality + risk reduction)
// divided by job size. The three value components are each 0-100,
// composed from weighted sub-components; job size derives from the
// estimate, complexity, uncertainty, and dependency count. Scoring is
// a pure calculation: the calculator touches nothing outside its
// inputs, and a zero or negative job size is an error rather than a
// silent clamp, because coercing it would distort relative rankings.
package wsjf

import (
	"fmt"
	"log/slog"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Tier is a discrete priority band derived from the WSJF score.
type Tier string

const (
	TierUrgent Tier = "URGENT"
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
)

// Thresholds holds the WSJF cutoffs for each priority tier. A score
// at or above a cutoff earns that tier, so ties land on the higher
// band.
type Thresholds struct {
	Urgent float64 `json:"urgent" yaml:"urgent" mapstructure:"urgent" validate:"gt=0"`
	High   float64 `json:"high" yaml:"high" mapstructure:"high" validate:"gt=0"`
	Medium float64 `json:"medium" yaml:"medium" mapstructure:"medium" validate:"gt=0"`
}

// DefaultThresholds returns the stock tier cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Urgent: 15, High: 8, Medium: 3}
}

// Validate checks that the cutoffs are positive and strictly
// descending; equal cutoffs would make a tier unreachable.
func (t Thresholds) Validate() error {
	if t.Medium <= 0 {
		return types.NewFatalError(types.VALIDATION_FAILED, "medium threshold must be positive")
	}
	if t.Urgent <= t.High || t.High <= t.Medium {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("tier thresholds must descend strictly: urgent %.2f, high %.2f, medium %.2f",
				t.Urgent, t.High, t.Medium))
	}
	return nil
}

// Tier maps a WSJF score to its priority band.
func (t Thresholds) Tier(score float64) Tier {
	switch {
	case score >= t.Urgent:
		return TierUrgent
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// ComponentScore is one weighted sub-component of a value dimension.
type ComponentScore struct {
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Value  float64 `json:"value" yaml:"value" mapstructure:"value" validate:"min=0,max=100"`
	Weight float64 `json:"weight" yaml:"weight" mapstructure:"weight" validate:"min=0"`
}

// JobSizeInputs are the raw ingredients of the job-size denominator.
// Complexity and Uncertainty are 1-5 bands; DependencyCount is how
// many prerequisites the item waits on.
type JobSizeInputs struct {
	Points          int `json:"points" yaml:"points" mapstructure:"points"`
	Complexity      int `json:"complexity" yaml:"complexity" mapstructure:"complexity" validate:"min=1,max=5"`
	Uncertainty     int `json:"uncertainty" yaml:"uncertainty" mapstructure:"uncertainty" validate:"min=1,max=5"`
	DependencyCount int `json:"dependency_count" yaml:"dependency_count" mapstructure:"dependency_count" validate:"min=0"`
}

// RawScores carries everything Score needs for one item.
type RawScores struct {
	BusinessValue   []ComponentScore `json:"business_value" yaml:"business_value" mapstructure:"business_value"`
	TimeCriticality []ComponentScore `json:"time_criticality" yaml:"time_criticality" mapstructure:"time_criticality"`
	RiskReduction   []ComponentScore `json:"risk_reduction" yaml:"risk_reduction" mapstructure:"risk_reduction"`
	JobSize         JobSizeInputs    `json:"job_size" yaml:"job_size" mapstructure:"job_size"`
}

// ScoredStory is one item's WSJF result. Priority is normalized
// against the batch maximum by ScoreBatch; a lone Score call leaves
// it zero.
type ScoredStory struct {
	Key             string  `json:"key"`
	Points          int     `json:"points"`
	BusinessValue   float64 `json:"business_value"`
	TimeCriticality float64 `json:"time_criticality"`
	RiskReduction   float64 `json:"risk_reduction"`
	JobSize         float64 `json:"job_size"`
	WSJF            float64 `json:"wsjf"`
	Priority        float64 `json:"priority"`
	Tier            Tier    `json:"tier"`
}

// Calculator scores work items against a fixed set of tier thresholds.
type Calculator struct {
	thresholds Thresholds
	logger     *slog.Logger
}

// NewCalculator creates a calculator. Zero-value thresholds fall back
// to the defaults; a nil logger falls back to slog.Default.
func NewCalculator(thresholds Thresholds, logger *slog.Logger) *Calculator {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{thresholds: thresholds, logger: logger}
}

// Thresholds returns the calculator's tier cutoffs.
func (c *Calculator) Thresholds() Thresholds {
	return c.thresholds
}

// Score computes the WSJF score for one item. The error carries the
// item key; a non-positive job size is reported, never coerced.
func (c *Calculator) Score(item backlog.WorkItem, raw RawScores) (ScoredStory, error) {
	if err := c.thresholds.Validate(); err != nil {
		return ScoredStory{}, err
	}

	bv, err := composite("business value", raw.BusinessValue)
	if err != nil {
		return ScoredStory{}, itemErr(err, item.Key)
	}
	tc, err := composite("time criticality", raw.TimeCriticality)
	if err != nil {
		return ScoredStory{}, itemErr(err, item.Key)
	}
	rr, err := composite("risk reduction", raw.RiskReduction)
	if err != nil {
		return ScoredStory{}, itemErr(err, item.Key)
	}

	size, err := jobSize(raw.JobSize)
	if err != nil {
		return ScoredStory{}, itemErr(err, item.Key)
	}
	if size <= 0 {
		return ScoredStory{}, types.NewError(types.INVALID_JOB_SIZE,
			fmt.Sprintf("job size %.2f is not positive; coercing it would distort rankings", size)).
			WithItem(item.Key)
	}

	score := (bv + tc + rr) / size
	return ScoredStory{
		Key:             item.Key,
		Points:          item.Points,
		BusinessValue:   bv,
		TimeCriticality: tc,
		RiskReduction:   rr,
		JobSize:         size,
		WSJF:            score,
		Tier:            c.thresholds.Tier(score),
	}, nil
}

// composite folds weighted sub-components into one 0-100 dimension
// score. No components means the dimension contributes nothing.
func composite(dimension string, components []ComponentScore) (float64, error) {
	if len(components) == 0 {
		return 0, nil
	}

	var weighted, weights float64
	for _, comp := range components {
		if comp.Value < 0 || comp.Value > 100 {
			return 0, types.NewError(types.SCORE_OUT_OF_RANGE,
				fmt.Sprintf("%s component %q is %.2f, outside 0-100", dimension, comp.Name, comp.Value))
		}
		if comp.Weight < 0 {
			return 0, types.NewError(types.SCORING_FAILED,
				fmt.Sprintf("%s component %q has negative weight %.2f", dimension, comp.Name, comp.Weight))
		}
		weighted += comp.Value * comp.Weight
		weights += comp.Weight
	}
	if weights <= 0 {
		return 0, types.NewError(types.SCORING_FAILED,
			fmt.Sprintf("%s component weights sum to zero", dimension))
	}
	return weighted / weights, nil
}

// jobSize turns the raw inputs into the WSJF denominator. Complexity
// and uncertainty scale the estimate up to double it each; every
// prerequisite adds half a point of coordination effort.
func jobSize(in JobSizeInputs) (float64, error) {
	if in.Points < 0 {
		return 0, types.NewError(types.NEGATIVE_ESTIMATE,
			fmt.Sprintf("job size points %d below zero", in.Points))
	}
	if in.Complexity < 1 || in.Complexity > 5 {
		return 0, types.NewError(types.SCORING_FAILED,
			fmt.Sprintf("complexity %d outside the 1-5 band", in.Complexity))
	}
	if in.Uncertainty < 1 || in.Uncertainty > 5 {
		return 0, types.NewError(types.SCORING_FAILED,
			fmt.Sprintf("uncertainty %d outside the 1-5 band", in.Uncertainty))
	}
	if in.DependencyCount < 0 {
		return 0, types.NewError(types.SCORING_FAILED,
			fmt.Sprintf("dependency count %d below zero", in.DependencyCount))
	}

	size := float64(in.Points) * levelFactor(in.Complexity) * levelFactor(in.Uncertainty)
	size += 0.5 * float64(in.DependencyCount)
	return size, nil
}

// levelFactor maps a 1-5 band onto a 1.0-2.0 multiplier.
func levelFactor(level int) float64 {
	return 1 + 0.25*float64(level-1)
}

func itemErr(err error, key string) error {
	if engErr, ok := err.(*types.EngineError); ok {
		return engErr.WithItem(key)
	}
	return err
}
