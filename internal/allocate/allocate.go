// Package allocate schedules scored work items into time-boxed
// iterations under capacity and hard-dependency constraints.
//
// The scheduler is greedy and deterministic: items become eligible
// once every hard prerequisite has completed in an earlier iteration,
// eligible items rank by WSJF score, critical-path membership, and
// size, and each places first-fit into the earliest iteration with
// room. Whatever cannot be placed is reported with a reason and a
// suggested remedy; a partial plan is a valid outcome, an unbroken
// hard cycle is not.
package allocate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
	"github.com/ByBren-LLC/bigroom/internal/train"
	"github.com/ByBren-LLC/bigroom/internal/types"
	"github.com/ByBren-LLC/bigroom/internal/wsjf"
)

// Reason explains why an item stayed unallocated.
type Reason string

const (
	// ReasonExceedsCapacity marks items larger than every team's
	// single-iteration usable capacity; no schedule can hold them.
	ReasonExceedsCapacity Reason = "exceeds capacity"

	// ReasonExceedsRemainingCapacity marks items that would fit an
	// empty plan but found no room left in this one.
	ReasonExceedsRemainingCapacity Reason = "exceeds remaining capacity"

	// ReasonPrerequisiteUnscheduled marks items whose hard
	// prerequisites are unallocated or complete too late for any
	// iteration in the horizon.
	ReasonPrerequisiteUnscheduled Reason = "prerequisite unscheduled"
)

// Config controls the allocation run.
type Config struct {
	// BufferFraction is the share of available capacity held back per
	// iteration.
	BufferFraction float64 `json:"buffer_fraction" yaml:"buffer_fraction" mapstructure:"buffer_fraction" validate:"min=0,lt=1"`

	// MaxUtilization caps charged points at this share of an
	// iteration's raw total capacity.
	MaxUtilization float64 `json:"max_utilization" yaml:"max_utilization" mapstructure:"max_utilization" validate:"gt=0,max=1"`

	// VelocityConfidenceFloor is the lowest velocity confidence used
	// when computing allocation confidence.
	VelocityConfidenceFloor float64 `json:"velocity_confidence_floor" yaml:"velocity_confidence_floor" mapstructure:"velocity_confidence_floor" validate:"min=0,max=1"`

	// CompletionSlackRatio is the slack, as a multiple of the item's
	// points, required to mark an allocation complete within its
	// iteration. Zero marks every fitted allocation complete.
	CompletionSlackRatio float64 `json:"completion_slack_ratio" yaml:"completion_slack_ratio" mapstructure:"completion_slack_ratio" validate:"min=0"`

	// SameIterationDependents allows a dependent to share an iteration
	// with a prerequisite marked complete there. Off by default:
	// completion lands at the end of the time-box, so dependents start
	// strictly later.
	SameIterationDependents bool `json:"same_iteration_dependents" yaml:"same_iteration_dependents" mapstructure:"same_iteration_dependents"`
}

// DefaultConfig returns the stock allocation configuration.
func DefaultConfig() Config {
	return Config{
		BufferFraction:          0.2,
		MaxUtilization:          0.85,
		VelocityConfidenceFloor: 0.5,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.BufferFraction < 0 || c.BufferFraction >= 1 {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("buffer fraction %.2f outside [0,1)", c.BufferFraction))
	}
	if c.MaxUtilization <= 0 || c.MaxUtilization > 1 {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("max utilization %.2f outside (0,1]", c.MaxUtilization))
	}
	if c.VelocityConfidenceFloor < 0 || c.VelocityConfidenceFloor > 1 {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("velocity confidence floor %.2f outside [0,1]", c.VelocityConfidenceFloor))
	}
	if c.CompletionSlackRatio < 0 {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("completion slack ratio %.2f below zero", c.CompletionSlackRatio))
	}
	return nil
}

// Allocation is one item placed into an iteration.
type Allocation struct {
	Key           string  `json:"key"`
	Iteration     int     `json:"iteration"`
	IterationName string  `json:"iteration_name"`
	Team          string  `json:"team"`
	Points        int     `json:"points"`
	WSJF          float64 `json:"wsjf"`
	Complete      bool    `json:"complete"`
	Confidence    float64 `json:"confidence"`
	Rationale     string  `json:"rationale"`
}

// UnallocatedItem is one item the scheduler could not place.
type UnallocatedItem struct {
	Key        string `json:"key"`
	Points     int    `json:"points"`
	Reason     Reason `json:"reason"`
	Suggestion string `json:"suggestion"`
}

// Stats summarizes an allocation run.
type Stats struct {
	AllocatedCount    int                `json:"allocated_count"`
	UnallocatedCount  int                `json:"unallocated_count"`
	SkippedCount      int                `json:"skipped_count"`
	TotalPoints       int                `json:"total_points"`
	AllocatedPoints   int                `json:"allocated_points"`
	Utilization       map[string]float64 `json:"utilization"`
	ValueFrontLoading float64            `json:"value_front_loading"`
}

// Result is the outcome of one allocation run. A result with
// unallocated items is still a valid plan.
type Result struct {
	Allocated   []Allocation      `json:"allocated"`
	Unallocated []UnallocatedItem `json:"unallocated,omitempty"`
	Skipped     []string          `json:"skipped,omitempty"`
	Stats       Stats             `json:"stats"`
}

// Allocator schedules work items into iterations.
type Allocator struct {
	cfg    Config
	logger *slog.Logger
}

// NewAllocator creates an allocator. A zero-value config falls back
// to the defaults; a nil logger falls back to slog.Default.
func NewAllocator(cfg Config, logger *slog.Logger) *Allocator {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{cfg: cfg, logger: logger}
}

// Allocate schedules the schedulable items into the given iterations.
// The graph supplies hard ordering constraints and critical-path
// membership; it may be nil when no dependency analysis ran. Scores
// may be nil, in which case everything ranks equal and ties fall to
// size and key.
func (a *Allocator) Allocate(
	ctx context.Context,
	iterations []train.Iteration,
	teams []train.ARTTeam,
	graph *depgraph.Graph,
	items []backlog.WorkItem,
	scores map[string]wsjf.ScoredStory,
) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(iterations) == 0 {
		return nil, types.NewFatalError(types.EMPTY_ITERATIONS, "allocation requires at least one iteration")
	}
	if len(teams) == 0 {
		return nil, types.NewFatalError(types.NO_TEAMS, "allocation requires at least one team")
	}

	teamIdx, err := train.NewTeamIndex(teams)
	if err != nil {
		return nil, types.WrapFatalError(types.VALIDATION_FAILED, "team definitions rejected", err)
	}
	teamIDs := make([]string, 0, len(teamIdx))
	for id := range teamIdx {
		teamIDs = append(teamIDs, id)
	}
	sort.Strings(teamIDs)

	normalized := make([]train.Iteration, len(iterations))
	for k, it := range iterations {
		normalized[k] = it.NormalizeCapacities()
		if err := normalized[k].Validate(); err != nil {
			return nil, types.WrapFatalError(types.VALIDATION_FAILED,
				fmt.Sprintf("iteration %d rejected", k+1), err)
		}
	}

	byKey := make(map[string]backlog.WorkItem, len(items))
	schedulable := make(map[string]bool, len(items))
	var skipped []string
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byKey[item.Key]; exists {
			return nil, types.NewError(types.DUPLICATE_ITEM_KEY,
				fmt.Sprintf("work item key %q appears twice", item.Key)).WithItem(item.Key)
		}
		byKey[item.Key] = item
		if item.Kind.IsSchedulable() {
			schedulable[item.Key] = true
		} else {
			skipped = append(skipped, item.Key)
		}
	}
	sort.Strings(skipped)

	prereqs, err := a.constraints(graph, schedulable)
	if err != nil {
		return nil, err
	}

	ledger := NewLedger(normalized, a.cfg)
	pending := make(map[string]bool, len(schedulable))
	totalPoints := 0
	for key := range schedulable {
		pending[key] = true
		totalPoints += byKey[key].Points
	}

	completedAt := make(map[string]int, len(pending))
	completeFlag := make(map[string]bool, len(pending))
	var allocated []Allocation

	for k := range normalized {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for {
			eligible := a.eligibleKeys(pending, k, prereqs, completedAt, completeFlag)
			a.rank(eligible, byKey, graph, scores)

			progress := false
			for _, key := range eligible {
				item := byKey[key]
				team, ok := a.pickTeam(ledger, k, item, teamIDs)
				if !ok {
					continue
				}

				al := a.place(ledger, normalized[k], k, item, team, teamIdx, prereqs[key], scores[key], graph)
				allocated = append(allocated, al)
				completedAt[key] = k
				completeFlag[key] = al.Complete
				delete(pending, key)
				progress = true
			}
			if !progress || !a.cfg.SameIterationDependents {
				break
			}
		}
	}

	unallocated := a.classify(pending, byKey, ledger, teamIDs, len(normalized), prereqs, completedAt, completeFlag)

	allocatedPoints := 0
	for _, al := range allocated {
		allocatedPoints += al.Points
	}

	result := &Result{
		Allocated:   allocated,
		Unallocated: unallocated,
		Skipped:     skipped,
		Stats: Stats{
			AllocatedCount:    len(allocated),
			UnallocatedCount:  len(unallocated),
			SkippedCount:      len(skipped),
			TotalPoints:       totalPoints,
			AllocatedPoints:   allocatedPoints,
			Utilization:       ledger.Utilization(),
			ValueFrontLoading: frontLoading(allocated, len(normalized)),
		},
	}

	a.logger.Debug("allocation finished",
		"iterations", len(normalized),
		"allocated", len(allocated),
		"unallocated", len(unallocated),
		"skipped", len(skipped),
		"allocated_points", allocatedPoints,
		"front_loading", result.Stats.ValueFrontLoading)

	return result, nil
}

// constraints extracts the hard prerequisite map from the graph,
// restricted to items this run can actually schedule. Container
// prerequisites count as satisfied: epics and features are planning
// scaffolding, and their constraints reach stories through
// inheritance during analysis.
func (a *Allocator) constraints(graph *depgraph.Graph, schedulable map[string]bool) (map[string][]string, error) {
	if graph == nil {
		return nil, nil
	}

	if _, ok := graph.TopologicalOrder(); !ok {
		var parts []string
		for _, c := range graph.UnbrokenCritical() {
			parts = append(parts, strings.Join(c.Keys, " -> "))
		}
		detail := "hard constraint edges form a cycle"
		if len(parts) > 0 {
			detail = strings.Join(parts, "; ")
		}
		return nil, types.NewFatalError(types.CIRCULAR_DEPENDENCY,
			fmt.Sprintf("cannot order backlog: %s", detail))
	}

	prereqs := make(map[string][]string)
	for dep, pres := range graph.Prerequisites() {
		if !schedulable[dep] {
			continue
		}
		var kept []string
		for _, p := range pres {
			if schedulable[p] {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			prereqs[dep] = kept
		}
	}
	return prereqs, nil
}

// unmetAt lists the prerequisites of key not yet satisfied for
// iteration k. Completion lands at the end of an iteration, so a
// prerequisite finishing in k blocks k itself unless same-iteration
// dependents are enabled and the prerequisite is marked complete.
func (a *Allocator) unmetAt(key string, k int, prereqs map[string][]string, completedAt map[string]int, completeFlag map[string]bool) []string {
	var unmet []string
	for _, p := range prereqs[key] {
		done, ok := completedAt[p]
		if !ok {
			unmet = append(unmet, p)
			continue
		}
		if done < k {
			continue
		}
		if done == k && a.cfg.SameIterationDependents && completeFlag[p] {
			continue
		}
		unmet = append(unmet, p)
	}
	return unmet
}

// eligibleKeys returns the pending items whose prerequisites are
// satisfied for iteration k, in key order.
func (a *Allocator) eligibleKeys(pending map[string]bool, k int, prereqs map[string][]string, completedAt map[string]int, completeFlag map[string]bool) []string {
	keys := make([]string, 0, len(pending))
	for key := range pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := keys[:0]
	for _, key := range keys {
		if len(a.unmetAt(key, k, prereqs, completedAt, completeFlag)) == 0 {
			out = append(out, key)
		}
	}
	return out
}

// rank orders eligible keys by WSJF descending, critical-path items
// first, then smaller estimates, then key.
func (a *Allocator) rank(eligible []string, byKey map[string]backlog.WorkItem, graph *depgraph.Graph, scores map[string]wsjf.ScoredStory) {
	onPath := func(string) bool { return false }
	if graph != nil {
		onPath = graph.OnCriticalPath
	}
	sort.Slice(eligible, func(i, j int) bool {
		ki, kj := eligible[i], eligible[j]
		si, sj := scores[ki].WSJF, scores[kj].WSJF
		if si != sj {
			return si > sj
		}
		ci, cj := onPath(ki), onPath(kj)
		if ci != cj {
			return ci
		}
		pi, pj := byKey[ki].Points, byKey[kj].Points
		if pi != pj {
			return pi < pj
		}
		return ki < kj
	})
}

// pickTeam chooses the slot for an item in iteration k: the item's
// own team when set, otherwise the fitting team with the most room,
// ties to the smaller team ID.
func (a *Allocator) pickTeam(ledger *Ledger, k int, item backlog.WorkItem, teamIDs []string) (string, bool) {
	candidates := teamIDs
	if item.Team != "" {
		candidates = []string{item.Team}
	}

	best, bestRemaining := "", 0.0
	for _, team := range candidates {
		if !ledger.Fits(k, team, item.Points) {
			continue
		}
		r := ledger.Remaining(k, team)
		if best == "" || r > bestRemaining+capacityTolerance {
			best, bestRemaining = team, r
		}
	}
	return best, best != ""
}

// place charges the ledger and builds the allocation record.
func (a *Allocator) place(
	ledger *Ledger,
	it train.Iteration,
	k int,
	item backlog.WorkItem,
	team string,
	teamIdx train.TeamIndex,
	waits []string,
	score wsjf.ScoredStory,
	graph *depgraph.Graph,
) Allocation {
	slack := ledger.Remaining(k, team) - float64(item.Points)
	ledger.Charge(k, team, item.Points)

	entry, _ := it.Capacity(team)
	velocity := a.velocityConfidence(entry, teamIdx[team])
	confidence := velocity * slackFactor(slack, ledger.Usable(k, team))
	complete := slack+capacityTolerance >= a.cfg.CompletionSlackRatio*float64(item.Points)

	rationale := fmt.Sprintf("wsjf %.2f fits %s with %.1f points slack", score.WSJF, it.Name, slack)
	if len(waits) > 0 {
		rationale += fmt.Sprintf(" after %s", strings.Join(waits, ", "))
	}
	if graph != nil && graph.OnCriticalPath(item.Key) {
		rationale = "critical path: " + rationale
	}

	return Allocation{
		Key:           item.Key,
		Iteration:     k,
		IterationName: it.Name,
		Team:          team,
		Points:        item.Points,
		WSJF:          score.WSJF,
		Complete:      complete,
		Confidence:    confidence,
		Rationale:     rationale,
	}
}

// velocityConfidence resolves the confidence figure for a slot: the
// capacity entry's own confidence, then the team's, floored by the
// configured minimum and capped at 1.
func (a *Allocator) velocityConfidence(entry train.TeamCapacity, team train.ARTTeam) float64 {
	conf := entry.Confidence
	if conf <= 0 {
		conf = team.Confidence
	}
	if conf < a.cfg.VelocityConfidenceFloor {
		conf = a.cfg.VelocityConfidenceFloor
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// slackFactor maps remaining slack onto 0.5-1.0: a packed slot halves
// confidence, an empty one leaves it untouched.
func slackFactor(slack, usable float64) float64 {
	if usable <= 0 {
		return 0.5
	}
	ratio := slack / usable
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return 0.5 + 0.5*ratio
}

// classify explains every item left pending after the horizon.
func (a *Allocator) classify(
	pending map[string]bool,
	byKey map[string]backlog.WorkItem,
	ledger *Ledger,
	teamIDs []string,
	horizon int,
	prereqs map[string][]string,
	completedAt map[string]int,
	completeFlag map[string]bool,
) []UnallocatedItem {
	keys := make([]string, 0, len(pending))
	for key := range pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []UnallocatedItem
	for _, key := range keys {
		item := byKey[key]
		candidates := teamIDs
		if item.Team != "" {
			candidates = []string{item.Team}
		}

		entry := UnallocatedItem{Key: key, Points: item.Points}
		switch {
		case float64(item.Points) > ledger.MaxUsable(candidates)+capacityTolerance:
			entry.Reason = ReasonExceedsCapacity
			entry.Suggestion = fmt.Sprintf("decompose %s below the largest single-iteration capacity (%.1f points)",
				key, ledger.MaxUsable(candidates))
		case len(a.unmetAt(key, horizon-1, prereqs, completedAt, completeFlag)) > 0:
			blocking := a.unmetAt(key, horizon-1, prereqs, completedAt, completeFlag)
			entry.Reason = ReasonPrerequisiteUnscheduled
			entry.Suggestion = fmt.Sprintf("schedule %s first or extend the planning horizon",
				strings.Join(blocking, ", "))
		default:
			entry.Reason = ReasonExceedsRemainingCapacity
			entry.Suggestion = "add capacity or defer lower-priority work to a later increment"
		}
		out = append(out, entry)
	}
	return out
}

// frontLoading measures how much of the plan's value lands early: 1.0
// when everything ships in the first iteration, approaching 1/n when
// everything slides to the last. Items without a WSJF score weigh by
// their points instead.
func frontLoading(allocated []Allocation, iterations int) float64 {
	if len(allocated) == 0 || iterations == 0 {
		return 0
	}

	var total, early float64
	for _, al := range allocated {
		w := al.WSJF
		if w <= 0 {
			w = float64(al.Points)
		}
		if w <= 0 {
			w = 1
		}
		total += w
		early += w * float64(iterations-al.Iteration) / float64(iterations)
	}
	if total <= 0 {
		return 0
	}
	return early / total
}
