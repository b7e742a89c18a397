package planner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/config"
	"github.com/ByBren-LLC/bigroom/internal/events"
	"github.com/ByBren-LLC/bigroom/internal/train"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

func story(key string, points int) backlog.WorkItem {
	return backlog.WorkItem{
		ID:     types.NewID(),
		Key:    key,
		Kind:   backlog.KindStory,
		Title:  "Checkout flow hardening",
		Points: points,
		Team:   "platform",
		AcceptanceCriteria: []string{
			"Given a cart, totals include tax",
			"Errors surface a retry option",
		},
	}
}

func planIterations(n int, total float64) []train.Iteration {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	out := make([]train.Iteration, n)
	for k := range out {
		out[k] = train.Iteration{
			ID:    types.NewID(),
			Name:  fmt.Sprintf("I%d", k+1),
			Start: start.AddDate(0, 0, 14*k),
			End:   start.AddDate(0, 0, 14*k+13),
			Capacities: []train.TeamCapacity{
				{TeamID: "platform", Total: total, Available: total, Confidence: 0.9},
			},
		}
	}
	return out
}

func planTeams() []train.ARTTeam {
	return []train.ARTTeam{{ID: "platform", Name: "Platform", Confidence: 0.9}}
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

// Ten five-point stories against two 25-point iterations: the 20%
// buffer leaves 20 usable points per iteration, so eight stories land
// four and four and two stay unallocated for lack of remaining room.
func TestPlanARTCapacityOverflow(t *testing.T) {
	var items []backlog.WorkItem
	for i := 1; i <= 10; i++ {
		items = append(items, story(fmt.Sprintf("ST-%02d", i), 5))
	}
	iterations := planIterations(2, 25)

	engine := New(WithClock(fixedClock()))
	plan, err := engine.PlanART(context.Background(), items, iterations, planTeams(), nil)
	require.NoError(t, err)

	assert.Equal(t, PlanStatusFinal, plan.Status)
	assert.Equal(t, 8, plan.Summary.AllocatedCount)
	assert.Equal(t, 2, plan.Summary.UnallocatedCount)
	assert.Equal(t, 50, plan.Summary.TotalPoints)
	assert.Equal(t, 40, plan.Summary.AllocatedPoints)

	require.Len(t, plan.IterationPlans, 2)
	for _, ip := range plan.IterationPlans {
		assert.Len(t, ip.Allocated, 4)
		assert.Equal(t, 20, ip.TotalPoints)
		assert.InDelta(t, 1.0, ip.Utilization["platform"], 1e-9)
		assert.True(t, ip.Validation.Valid, "violations: %v", ip.Validation.Violations)
	}

	require.Len(t, plan.Unallocated, 2)
	for _, un := range plan.Unallocated {
		assert.Equal(t, allocate.ReasonExceedsRemainingCapacity, un.Reason)
	}
	require.NotNil(t, plan.Readiness)
	assert.Empty(t, plan.Readiness.CriticalBlockers)
}

// An eight-point story that depends on a three-point one cannot share
// its ten-point iteration with it, so the prerequisite lands first and
// the dependent slips to the next iteration.
func TestPlanARTSchedulesPrerequisiteFirst(t *testing.T) {
	a := story("ST-A", 8)
	a.Description = "Depends on ST-B for the shared session store."
	b := story("ST-B", 3)
	iterations := planIterations(2, 10)

	engine := New(WithClock(fixedClock()))
	plan, err := engine.PlanART(context.Background(), []backlog.WorkItem{a, b}, iterations, planTeams(), nil)
	require.NoError(t, err)

	require.Len(t, plan.IterationPlans, 2)
	require.Len(t, plan.IterationPlans[0].Allocated, 1)
	require.Len(t, plan.IterationPlans[1].Allocated, 1)
	assert.Equal(t, "ST-B", plan.IterationPlans[0].Allocated[0].Key)
	assert.Equal(t, "ST-A", plan.IterationPlans[1].Allocated[0].Key)
	assert.Equal(t, []string{"ST-B"}, plan.IterationPlans[1].Allocated[0].BlockedBy)
	assert.Equal(t, []string{"ST-A"}, plan.IterationPlans[0].Allocated[0].Enables)
	assert.Empty(t, plan.Unallocated)
	for _, ip := range plan.IterationPlans {
		assert.True(t, ip.Validation.Valid, "violations: %v", ip.Validation.Violations)
	}
	assert.Equal(t, 1, plan.Graph.Stats.HardCount)
}

// An oversized story is split before scheduling; its sub-items carry
// the points and the parent never appears in any iteration.
func TestPlanARTDecomposesOversized(t *testing.T) {
	big := story("ST-BIG", 13)
	big.AcceptanceCriteria = []string{
		"Given a cart, totals include tax",
		"Errors surface a retry option",
		"Receipts are emailed on success",
		"Refunds post within one day",
	}
	iterations := planIterations(2, 25)

	engine := New(WithClock(fixedClock()))
	plan, err := engine.PlanART(context.Background(), []backlog.WorkItem{big}, iterations, planTeams(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Summary.DecomposedCount)
	assert.Empty(t, plan.Unallocated)
	assert.Equal(t, 13, plan.Summary.AllocatedPoints)

	var keys []string
	var points int
	for _, ip := range plan.IterationPlans {
		for _, item := range ip.Allocated {
			keys = append(keys, item.Key)
			points += item.Points
			assert.NotEqual(t, "ST-BIG", item.Key)
			assert.LessOrEqual(t, item.Points, 5)
		}
	}
	assert.ElementsMatch(t, []string{"ST-BIG-1", "ST-BIG-2", "ST-BIG-3"}, keys)
	assert.Equal(t, 13, points)
}

// Identical inputs produce an identical plan shape, run after run.
func TestPlanARTDeterministic(t *testing.T) {
	build := func() *ARTPlan {
		var items []backlog.WorkItem
		for i := 1; i <= 10; i++ {
			items = append(items, story(fmt.Sprintf("ST-%02d", i), 5))
		}
		engine := New(WithClock(fixedClock()))
		plan, err := engine.PlanART(context.Background(), items, planIterations(2, 25), planTeams(), nil)
		require.NoError(t, err)
		return plan
	}

	shape := func(p *ARTPlan) [][]string {
		out := make([][]string, len(p.IterationPlans))
		for k, ip := range p.IterationPlans {
			for _, item := range ip.Allocated {
				out[k] = append(out[k], item.Key)
			}
		}
		return out
	}

	first, second := build(), build()
	assert.Equal(t, shape(first), shape(second))
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Readiness.Overall, second.Readiness.Overall)
	assert.Equal(t, first.Readiness.CategoryScores, second.Readiness.CategoryScores)

	var firstUn, secondUn []string
	for _, u := range first.Unallocated {
		firstUn = append(firstUn, u.Key)
	}
	for _, u := range second.Unallocated {
		secondUn = append(secondUn, u.Key)
	}
	assert.Equal(t, firstUn, secondUn)
}

func TestPlanARTRejectsBadInput(t *testing.T) {
	engine := New()
	items := []backlog.WorkItem{story("ST-1", 3)}
	iterations := planIterations(1, 25)

	_, err := engine.PlanART(context.Background(), items, nil, planTeams(), nil)
	assert.ErrorIs(t, err, types.NewError(types.EMPTY_ITERATIONS, ""))

	_, err = engine.PlanART(context.Background(), items, iterations, nil, nil)
	assert.ErrorIs(t, err, types.NewError(types.NO_TEAMS, ""))

	dup := []backlog.WorkItem{story("ST-1", 3), story("ST-1", 5)}
	_, err = engine.PlanART(context.Background(), dup, iterations, planTeams(), nil)
	assert.ErrorIs(t, err, types.NewError(types.DUPLICATE_ITEM_KEY, ""))
}

func TestPlanARTPublishesLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(context.Background(), events.Filter{}, 128)

	engine := New(WithEventBus(bus), WithClock(fixedClock()))
	items := []backlog.WorkItem{story("ST-1", 3), story("ST-2", 5)}
	_, err := engine.PlanART(context.Background(), items, planIterations(1, 25), planTeams(), nil)
	require.NoError(t, err)
	cancel()

	seen := map[events.EventType]int{}
	for ev := range ch {
		seen[ev.Type]++
		assert.False(t, ev.PlanID.IsZero())
	}
	assert.Equal(t, 1, seen[events.EventPlanStarted])
	assert.Equal(t, 1, seen[events.EventPlanCompleted])
	assert.Equal(t, 5, seen[events.EventStageCompleted])
	assert.Zero(t, seen[events.EventPlanFailed])
}

func TestPlanARTCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := New()
	items := []backlog.WorkItem{story("ST-1", 3)}
	_, err := engine.PlanART(ctx, items, planIterations(1, 25), planTeams(), nil)
	assert.Error(t, err)
}

func TestPlanStatusTransitions(t *testing.T) {
	assert.True(t, PlanStatusDraft.CanTransitionTo(PlanStatusValidated))
	assert.True(t, PlanStatusValidated.CanTransitionTo(PlanStatusFinal))
	assert.False(t, PlanStatusDraft.CanTransitionTo(PlanStatusFinal))
	assert.False(t, PlanStatusFinal.CanTransitionTo(PlanStatusDraft))
	assert.False(t, PlanStatusValidated.CanTransitionTo(PlanStatusDraft))

	next, err := PlanStatusDraft.TransitionTo(PlanStatusValidated)
	require.NoError(t, err)
	assert.Equal(t, PlanStatusValidated, next)

	stuck, err := PlanStatusFinal.TransitionTo(PlanStatusDraft)
	require.ErrorIs(t, err, types.NewError(types.INVALID_PLAN_STATUS, ""))
	assert.Equal(t, PlanStatusFinal, stuck)
}

func TestDecomposeStoryStandalone(t *testing.T) {
	big := story("ST-BIG", 13)
	big.AcceptanceCriteria = append(big.AcceptanceCriteria,
		"Receipts are emailed on success",
		"Refunds post within one day")

	engine := New()
	result, err := engine.DecomposeStory(context.Background(), big, config.DefaultConfig().Decomposition)
	require.NoError(t, err)
	require.Len(t, result.SubItems, 3)

	total := 0
	for _, sub := range result.SubItems {
		total += sub.Points
		assert.Equal(t, "ST-BIG", sub.Parent)
	}
	assert.Equal(t, 13, total)
}

func TestScoreStoriesStandalone(t *testing.T) {
	items := []backlog.WorkItem{story("ST-1", 3), story("ST-2", 8)}

	engine := New()
	batch, err := engine.ScoreStories(context.Background(), items, nil, config.DefaultConfig().Scoring.Thresholds)
	require.NoError(t, err)
	require.Len(t, batch.Scored, 2)
	assert.Equal(t, "ST-1", batch.Scored[0].Key)
	for _, s := range batch.Scored {
		assert.Positive(t, s.WSJF)
	}
	assert.InDelta(t, 100, batch.Scored[0].Priority, 1e-9)
	assert.Greater(t, batch.Scored[0].WSJF, batch.Scored[1].WSJF)
}
