// Package decompose splits oversized stories and enablers into
// right-sized sub-items while conserving estimate points and acceptance
// criteria.
//
// Decomposition is validated before a result is returned: sub-item
// estimates stay within the configured maximum, the criteria mapping
// covers the original set exactly, and the points total drifts by at
// most one. A decomposition that cannot satisfy those invariants fails
// loudly rather than producing a partial result.
package decompose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// PointsStrategy selects how the parent estimate is split.
type PointsStrategy string

const (
	// PointsEven splits the estimate into equal integer shares.
	PointsEven PointsStrategy = "even"

	// PointsWeighted sizes each share proportionally to the number of
	// acceptance criteria assigned to it.
	PointsWeighted PointsStrategy = "weighted"

	// PointsFibonacci snaps each share to the estimation scale and
	// adjusts until the total lands within one point of the original.
	PointsFibonacci PointsStrategy = "fibonacci"
)

// CriteriaStrategy selects how acceptance criteria are distributed.
type CriteriaStrategy string

const (
	// CriteriaSequential deals criteria round-robin across sub-items.
	CriteriaSequential CriteriaStrategy = "sequential"

	// CriteriaThematic groups criteria by shared keywords.
	CriteriaThematic CriteriaStrategy = "thematic"

	// CriteriaBalanced cuts the criteria list into contiguous chunks of
	// near-equal size.
	CriteriaBalanced CriteriaStrategy = "balanced"
)

// Config controls decomposition.
type Config struct {
	// MaxPoints is the largest allowed sub-item estimate.
	MaxPoints int `json:"max_points" yaml:"max_points" mapstructure:"max_points" validate:"min=1"`

	// MinSubItems and MaxSubItems bound how many sub-items one
	// decomposition may produce.
	MinSubItems int `json:"min_sub_items" yaml:"min_sub_items" mapstructure:"min_sub_items" validate:"min=2"`
	MaxSubItems int `json:"max_sub_items" yaml:"max_sub_items" mapstructure:"max_sub_items" validate:"min=2"`

	// PointsStrategy selects the estimate split.
	PointsStrategy PointsStrategy `json:"points_strategy" yaml:"points_strategy" mapstructure:"points_strategy"`

	// CriteriaStrategy selects the criteria distribution.
	CriteriaStrategy CriteriaStrategy `json:"criteria_strategy" yaml:"criteria_strategy" mapstructure:"criteria_strategy"`
}

// DefaultConfig returns the stock decomposition configuration.
func DefaultConfig() Config {
	return Config{
		MaxPoints:        5,
		MinSubItems:      2,
		MaxSubItems:      5,
		PointsStrategy:   PointsEven,
		CriteriaStrategy: CriteriaSequential,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.MaxPoints < 1 {
		return types.NewFatalError(types.VALIDATION_FAILED, "max points must be at least 1")
	}
	if c.MinSubItems < 2 {
		return types.NewFatalError(types.VALIDATION_FAILED, "min sub-items must be at least 2")
	}
	if c.MaxSubItems < c.MinSubItems {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("max sub-items %d below min %d", c.MaxSubItems, c.MinSubItems))
	}
	switch c.PointsStrategy {
	case PointsEven, PointsWeighted, PointsFibonacci:
	default:
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("unknown points strategy %q", c.PointsStrategy))
	}
	switch c.CriteriaStrategy {
	case CriteriaSequential, CriteriaThematic, CriteriaBalanced:
	default:
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("unknown criteria strategy %q", c.CriteriaStrategy))
	}
	return nil
}

// Result is one validated decomposition.
type Result struct {
	// Parent is the original item, unchanged.
	Parent backlog.WorkItem `json:"parent"`

	// SubItems are the new right-sized items, parented to the original.
	SubItems []backlog.WorkItem `json:"sub_items"`

	// CriteriaMap maps each original acceptance criterion index to the
	// sub-item index it was assigned to.
	CriteriaMap map[int]int `json:"criteria_map"`

	// Rationale explains the chosen split in one line.
	Rationale string `json:"rationale"`
}

// Decomposer splits oversized work items.
type Decomposer struct {
	cfg    Config
	logger *slog.Logger
}

// NewDecomposer creates a decomposer with the given configuration.
// A nil logger falls back to slog.Default.
func NewDecomposer(cfg Config, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{cfg: cfg, logger: logger}
}

// Decompose splits one work item into sub-items per the configured
// strategies. Candidate sub-item counts are tried from the smallest
// feasible upwards; the first count whose distribution passes
// validation wins. Errors carry the item key so batch callers can
// report per-item failures.
func (d *Decomposer) Decompose(ctx context.Context, item backlog.WorkItem) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if !item.Kind.IsSchedulable() {
		return nil, types.NewError(types.DECOMPOSITION_FAILED,
			fmt.Sprintf("%s items are not decomposed, only their descendant stories and enablers are", item.Kind)).
			WithItem(item.Key)
	}

	criteria := item.AcceptanceCriteria
	if len(criteria) < d.cfg.MinSubItems {
		return nil, types.NewError(types.INSUFFICIENT_CRITERIA,
			fmt.Sprintf("%d acceptance criteria cannot seed %d sub-items", len(criteria), d.cfg.MinSubItems)).
			WithItem(item.Key)
	}

	lo, hi, err := d.countBounds(item)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for n := lo; n <= hi; n++ {
		result, err := d.attempt(item, n)
		if err != nil {
			lastErr = err
			continue
		}
		d.logger.Debug("decomposed work item",
			"item", item.Key,
			"sub_items", n,
			"points", item.Points,
			"points_strategy", d.cfg.PointsStrategy,
			"criteria_strategy", d.cfg.CriteriaStrategy)
		return result, nil
	}

	return nil, types.WrapError(types.DECOMPOSITION_FAILED,
		fmt.Sprintf("no sub-item count between %d and %d yields a valid split of %s", lo, hi, item.Key),
		lastErr).WithItem(item.Key)
}

// countBounds computes the feasible sub-item count range for the item.
func (d *Decomposer) countBounds(item backlog.WorkItem) (lo, hi int, err error) {
	lo = ceilDiv(item.Points, d.cfg.MaxPoints)
	if lo < d.cfg.MinSubItems {
		lo = d.cfg.MinSubItems
	}

	hi = d.cfg.MaxSubItems
	if len(item.AcceptanceCriteria) < hi {
		hi = len(item.AcceptanceCriteria)
	}
	// Every sub-item needs at least one point.
	if item.Points < hi {
		hi = item.Points
	}

	if lo > hi {
		return 0, 0, types.NewError(types.DECOMPOSITION_FAILED,
			fmt.Sprintf("%d points cannot fit into at most %d sub-items of at most %d points each",
				item.Points, hi, d.cfg.MaxPoints)).WithItem(item.Key)
	}
	return lo, hi, nil
}

// attempt runs one distribution at a fixed sub-item count and validates it.
func (d *Decomposer) attempt(item backlog.WorkItem, n int) (*Result, error) {
	groups, err := distributeCriteria(item.AcceptanceCriteria, n, d.cfg.CriteriaStrategy)
	if err != nil {
		return nil, err
	}

	counts := make([]int, n)
	for _, g := range groups {
		if g >= 0 && g < n {
			counts[g]++
		}
	}

	shares, err := distributePoints(item.Points, n, counts, d.cfg)
	if err != nil {
		return nil, err
	}

	result := d.assemble(item, n, shares, groups)
	if err := d.validate(item, result); err != nil {
		return nil, err
	}
	return result, nil
}

// assemble builds the sub-items and criteria mapping.
func (d *Decomposer) assemble(item backlog.WorkItem, n int, shares []int, groups []int) *Result {
	criteriaBySub := make([][]string, n)
	criteriaMap := make(map[int]int, len(groups))
	for i, g := range groups {
		criteriaMap[i] = g
		criteriaBySub[g] = append(criteriaBySub[g], adaptCriterion(item.AcceptanceCriteria[i]))
	}

	subs := make([]backlog.WorkItem, 0, n)
	for j := 0; j < n; j++ {
		subs = append(subs, backlog.WorkItem{
			ID:                 types.NewID(),
			Key:                fmt.Sprintf("%s-%d", item.Key, j+1),
			Kind:               item.Kind,
			Title:              fmt.Sprintf("%s (part %d of %d)", item.Title, j+1, n),
			Description:        subDescription(item, j+1, n),
			Points:             shares[j],
			AcceptanceCriteria: criteriaBySub[j],
			Parent:             item.Key,
			Team:               item.Team,
			Labels:             append([]string(nil), item.Labels...),
			Attributes:         item.Attributes,
		})
	}

	return &Result{
		Parent:      item,
		SubItems:    subs,
		CriteriaMap: criteriaMap,
		Rationale: fmt.Sprintf("split %d points across %d sub-items (%s: %s); %d acceptance criteria distributed %s",
			item.Points, n, d.cfg.PointsStrategy, joinShares(shares), len(groups), d.cfg.CriteriaStrategy),
	}
}

// validate enforces the decomposition invariants. It runs on every
// result before it is returned; a violation here is a bug in a
// distribution strategy, surfaced as an explicit failure rather than a
// silently invalid plan.
func (d *Decomposer) validate(item backlog.WorkItem, r *Result) error {
	total := 0
	for _, sub := range r.SubItems {
		if sub.Points > d.cfg.MaxPoints {
			return types.NewError(types.DECOMPOSITION_FAILED,
				fmt.Sprintf("sub-item %s has %d points, above the %d point maximum",
					sub.Key, sub.Points, d.cfg.MaxPoints)).WithItem(item.Key)
		}
		if sub.Points < 1 {
			return types.NewError(types.DECOMPOSITION_FAILED,
				fmt.Sprintf("sub-item %s has no estimate", sub.Key)).WithItem(item.Key)
		}
		if len(sub.AcceptanceCriteria) == 0 {
			return types.NewError(types.DECOMPOSITION_FAILED,
				fmt.Sprintf("sub-item %s has no acceptance criteria", sub.Key)).WithItem(item.Key)
		}
		total += sub.Points
	}

	if diff := total - item.Points; diff > 1 || diff < -1 {
		return types.NewError(types.POINTS_CONSERVATION_LOST,
			fmt.Sprintf("sub-item points sum to %d, original estimate is %d", total, item.Points)).
			WithItem(item.Key)
	}

	assigned := make(map[int]bool, len(r.CriteriaMap))
	perSub := make([]int, len(r.SubItems))
	for i, g := range r.CriteriaMap {
		if i < 0 || i >= len(item.AcceptanceCriteria) {
			return types.NewError(types.DECOMPOSITION_FAILED,
				fmt.Sprintf("criteria map references unknown criterion %d", i)).WithItem(item.Key)
		}
		if g < 0 || g >= len(r.SubItems) {
			return types.NewError(types.DECOMPOSITION_FAILED,
				fmt.Sprintf("criterion %d assigned to unknown sub-item %d", i, g)).WithItem(item.Key)
		}
		if assigned[i] {
			return types.NewError(types.DECOMPOSITION_FAILED,
				fmt.Sprintf("criterion %d assigned twice", i)).WithItem(item.Key)
		}
		assigned[i] = true
		perSub[g]++
	}
	if len(assigned) != len(item.AcceptanceCriteria) {
		return types.NewError(types.DECOMPOSITION_FAILED,
			fmt.Sprintf("%d of %d acceptance criteria assigned", len(assigned), len(item.AcceptanceCriteria))).
			WithItem(item.Key)
	}
	for j, sub := range r.SubItems {
		if perSub[j] != len(sub.AcceptanceCriteria) {
			return types.NewError(types.DECOMPOSITION_FAILED,
				fmt.Sprintf("sub-item %s carries %d criteria, mapping says %d",
					sub.Key, len(sub.AcceptanceCriteria), perSub[j])).WithItem(item.Key)
		}
	}
	return nil
}

// adaptCriterion rewords a criterion so it reads as a standalone
// statement inside the sub-item: leading conjunctions are dropped and
// the first letter is capitalized.
func adaptCriterion(text string) string {
	out := strings.TrimSpace(text)
	lower := strings.ToLower(out)
	for _, prefix := range []string{"and ", "or ", "then ", "also "} {
		if strings.HasPrefix(lower, prefix) {
			out = strings.TrimSpace(out[len(prefix):])
			break
		}
	}
	if out == "" {
		return strings.TrimSpace(text)
	}
	r, size := utf8.DecodeRuneInString(out)
	return string(unicode.ToUpper(r)) + out[size:]
}

func subDescription(item backlog.WorkItem, part, total int) string {
	base := strings.TrimSpace(item.Description)
	scope := fmt.Sprintf("Part %d of %d of %s.", part, total, item.Key)
	if base == "" {
		return scope
	}
	return scope + " " + base
}

func joinShares(shares []int) string {
	parts := make([]string, len(shares))
	for i, s := range shares {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return strings.Join(parts, "+")
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
