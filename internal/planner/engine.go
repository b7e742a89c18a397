package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/assess"
	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/config"
	"github.com/ByBren-LLC/bigroom/internal/decompose"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
	"github.com/ByBren-LLC/bigroom/internal/events"
	"github.com/ByBren-LLC/bigroom/internal/train"
	"github.com/ByBren-LLC/bigroom/internal/types"
	"github.com/ByBren-LLC/bigroom/internal/wsjf"
)

// Engine runs planning pipelines. It holds no per-run state; one
// Engine may serve concurrent runs as long as each run gets its own
// input snapshot.
type Engine struct {
	logger *slog.Logger
	tracer trace.Tracer
	bus    events.Bus
	clock  func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for engine operations.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for pipeline spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithEventBus sets the bus planning events are published to.
func WithEventBus(bus events.Bus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
		}
	}
}

// WithClock overrides the time source, for deterministic timestamps
// in tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New creates an Engine. Defaults: slog.Default, a noop tracer, a nop
// event bus, and the wall clock.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("bigroom/planner"),
		bus:    events.NopBus{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlanART runs the full pipeline over the given backlog snapshot and
// returns the assembled plan. Inputs are never mutated. Plan-level
// failures (empty iterations, no teams, malformed items, an unbroken
// hard cycle) return an error; stage-local failures are attached to
// the plan as warnings.
func (e *Engine) PlanART(
	ctx context.Context,
	items []backlog.WorkItem,
	iterations []train.Iteration,
	teams []train.ARTTeam,
	cfg *config.Config,
) (*ARTPlan, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	planID := types.NewID()
	ctx, span := e.tracer.Start(ctx, "planner.plan_art", trace.WithAttributes(
		attribute.String("plan_id", planID.String()),
		attribute.Int("items", len(items)),
		attribute.Int("iterations", len(iterations)),
		attribute.Int("teams", len(teams)),
	))
	defer span.End()

	logger := e.logger.With(slog.String("plan_id", planID.String()))
	logger.Info("planning started",
		"items", len(items), "iterations", len(iterations), "teams", len(teams))

	if err := e.validateInputs(items, iterations, teams); err != nil {
		return nil, e.fail(ctx, planID, err)
	}

	e.publish(ctx, events.Event{Type: events.EventPlanStarted, PlanID: planID, Data: map[string]any{
		"items": len(items), "iterations": len(iterations), "teams": len(teams),
	}})

	run := &runState{planID: planID, cfg: cfg, items: items}

	if err := e.stageAnalyze(ctx, run); err != nil {
		return nil, e.fail(ctx, planID, err)
	}
	if err := e.stageDecompose(ctx, run); err != nil {
		return nil, e.fail(ctx, planID, err)
	}
	if err := e.stageScore(ctx, run); err != nil {
		return nil, e.fail(ctx, planID, err)
	}
	if err := e.stageAllocate(ctx, run, iterations, teams); err != nil {
		return nil, e.fail(ctx, planID, err)
	}
	if err := e.stageAssess(ctx, run, iterations); err != nil {
		return nil, e.fail(ctx, planID, err)
	}

	plan := e.assemble(run, iterations)

	logger.Info("planning completed",
		"allocated", plan.Summary.AllocatedCount,
		"unallocated", plan.Summary.UnallocatedCount,
		"ready", plan.Readiness.IsReady,
		"risk", plan.Summary.RiskLevel)
	e.publish(ctx, events.Event{Type: events.EventPlanCompleted, PlanID: planID, Data: map[string]any{
		"allocated":   plan.Summary.AllocatedCount,
		"unallocated": plan.Summary.UnallocatedCount,
		"ready":       plan.Readiness.IsReady,
	}})

	return plan, nil
}

// DecomposeStory splits one oversized item, standalone.
func (e *Engine) DecomposeStory(ctx context.Context, item backlog.WorkItem, cfg decompose.Config) (*decompose.Result, error) {
	ctx, span := e.tracer.Start(ctx, "planner.decompose_story", trace.WithAttributes(
		attribute.String("item", item.Key),
		attribute.Int("points", item.Points),
	))
	defer span.End()

	return decompose.NewDecomposer(cfg, e.logger).Decompose(ctx, item)
}

// ScoreStories scores a backlog standalone. Items missing from raw
// fall back to scores derived from the item itself.
func (e *Engine) ScoreStories(ctx context.Context, items []backlog.WorkItem, raw map[string]wsjf.RawScores, thresholds wsjf.Thresholds) (*wsjf.BatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "planner.score_stories", trace.WithAttributes(
		attribute.Int("items", len(items)),
	))
	defer span.End()

	return wsjf.NewCalculator(thresholds, e.logger).ScoreBatch(ctx, items, raw)
}

// runState accumulates pipeline output between stages.
type runState struct {
	planID types.ID
	cfg    *config.Config

	// items is the caller's backlog, untouched.
	items []backlog.WorkItem

	// schedulable is the working set the allocator sees: decomposed
	// parents replaced by their sub-items.
	schedulable []backlog.WorkItem

	// analysis covers items plus sub-items, so inherited edges reach
	// the new children.
	graph *depgraph.Graph

	decomposed int
	scores     map[string]wsjf.ScoredStory
	alloc      *allocate.Result
	readiness  *assess.ReadinessResult
	warnings   []PlanWarning
}

func (e *Engine) validateInputs(items []backlog.WorkItem, iterations []train.Iteration, teams []train.ARTTeam) error {
	if len(iterations) == 0 {
		return types.NewFatalError(types.EMPTY_ITERATIONS, "planning requires at least one iteration")
	}
	if len(teams) == 0 {
		return types.NewFatalError(types.NO_TEAMS, "planning requires at least one team")
	}
	if _, err := backlog.NewIndex(items); err != nil {
		return err
	}
	if _, err := train.NewTeamIndex(teams); err != nil {
		return types.WrapFatalError(types.VALIDATION_FAILED, "team definitions rejected", err)
	}
	for _, it := range iterations {
		if err := it.Validate(); err != nil {
			return types.WrapFatalError(types.VALIDATION_FAILED,
				fmt.Sprintf("iteration %q rejected", it.Name), err)
		}
	}
	return nil
}

// stageAnalyze builds the dependency graph over the caller's items.
func (e *Engine) stageAnalyze(ctx context.Context, run *runState) error {
	ctx, span := e.tracer.Start(ctx, "planner.analyze")
	defer span.End()

	graph, err := depgraph.NewAnalyzer(run.cfg.Analysis, e.logger).Analyze(ctx, run.items)
	if err != nil {
		return err
	}
	run.graph = graph
	span.SetAttributes(
		attribute.Int("edges", graph.Stats.EdgeCount),
		attribute.Int("cycles", len(graph.Cycles)),
	)

	for _, c := range graph.Cycles {
		e.publish(ctx, events.Event{Type: events.EventCycleDetected, PlanID: run.planID, Stage: events.StageAnalyze, Data: map[string]any{
			"keys":     c.Keys,
			"severity": string(c.Severity),
			"broken":   c.IsBroken(),
		}})
		if c.Severity == depgraph.SeverityWarning {
			run.warnings = append(run.warnings, PlanWarning{
				Stage:   events.StageAnalyze,
				Message: fmt.Sprintf("advisory dependency cycle: %v", c.Keys),
			})
		}
	}

	e.publishStage(ctx, run, events.StageAnalyze, map[string]any{
		"edges": graph.Stats.EdgeCount, "cycles": len(graph.Cycles),
	})
	return nil
}

// stageDecompose splits oversized schedulable items and swaps them
// for their sub-items in the working set. A failed decomposition
// leaves the item in place and becomes a warning. When anything was
// split the graph is rebuilt over the expanded backlog, so inherited
// edges reach the new sub-items.
func (e *Engine) stageDecompose(ctx context.Context, run *runState) error {
	ctx, span := e.tracer.Start(ctx, "planner.decompose")
	defer span.End()

	oversized := backlog.Oversized(run.items, run.cfg.Decomposition.MaxPoints)
	if len(oversized) == 0 {
		run.schedulable = run.items
		e.publishStage(ctx, run, events.StageDecompose, map[string]any{"oversized": 0})
		return nil
	}

	batch, err := decompose.NewDecomposer(run.cfg.Decomposition, e.logger).DecomposeBatch(ctx, oversized)
	if err != nil {
		return err
	}

	replaced := make(map[string][]backlog.WorkItem, len(batch.Results))
	for _, r := range batch.Results {
		replaced[r.Parent.Key] = r.SubItems
		run.decomposed++
		e.publish(ctx, events.Event{Type: events.EventItemDecomposed, PlanID: run.planID, Stage: events.StageDecompose, ItemKey: r.Parent.Key, Data: map[string]any{
			"sub_items": len(r.SubItems),
			"rationale": r.Rationale,
		}})
	}
	for _, engErr := range batch.Errors {
		run.warnings = append(run.warnings, PlanWarning{
			Stage:   events.StageDecompose,
			ItemKey: engErr.ItemKey,
			Message: engErr.Error(),
		})
	}

	working := make([]backlog.WorkItem, 0, len(run.items))
	analysis := make([]backlog.WorkItem, 0, len(run.items))
	for _, item := range run.items {
		analysis = append(analysis, item)
		if subs, ok := replaced[item.Key]; ok {
			working = append(working, subs...)
			analysis = append(analysis, subs...)
		} else {
			working = append(working, item)
		}
	}
	run.schedulable = working

	if run.decomposed > 0 {
		// Rebuilt wholesale so the graph covers the sub-items; the
		// decomposed parents stay in scope as inheritance anchors.
		graph, err := depgraph.NewAnalyzer(run.cfg.Analysis, e.logger).Analyze(ctx, analysis)
		if err != nil {
			return err
		}
		run.graph = graph
	}

	span.SetAttributes(
		attribute.Int("oversized", len(oversized)),
		attribute.Int("decomposed", run.decomposed),
		attribute.Int("failed", len(batch.Errors)),
	)
	e.publishStage(ctx, run, events.StageDecompose, map[string]any{
		"oversized": len(oversized), "decomposed": run.decomposed, "failed": len(batch.Errors),
	})
	return nil
}

// stageScore computes WSJF for the working set, seeding job-size
// dependency counts from the graph.
func (e *Engine) stageScore(ctx context.Context, run *runState) error {
	ctx, span := e.tracer.Start(ctx, "planner.score")
	defer span.End()

	prereqs := run.graph.Prerequisites()
	raw := make(map[string]wsjf.RawScores, len(run.schedulable))
	for _, item := range run.schedulable {
		raw[item.Key] = wsjf.DeriveRawScores(item, len(prereqs[item.Key]))
	}

	batch, err := wsjf.NewCalculator(run.cfg.Scoring.Thresholds, e.logger).ScoreBatch(ctx, run.schedulable, raw)
	if err != nil {
		return err
	}

	run.scores = make(map[string]wsjf.ScoredStory, len(batch.Scored))
	for _, s := range batch.Scored {
		run.scores[s.Key] = s
	}
	for _, engErr := range batch.Errors {
		run.warnings = append(run.warnings, PlanWarning{
			Stage:   events.StageScore,
			ItemKey: engErr.ItemKey,
			Message: engErr.Error(),
		})
	}

	span.SetAttributes(attribute.Int("scored", len(batch.Scored)))
	e.publishStage(ctx, run, events.StageScore, map[string]any{
		"scored": len(batch.Scored), "failed": len(batch.Errors), "max_wsjf": batch.MaxWSJF(),
	})
	return nil
}

func (e *Engine) stageAllocate(ctx context.Context, run *runState, iterations []train.Iteration, teams []train.ARTTeam) error {
	ctx, span := e.tracer.Start(ctx, "planner.allocate")
	defer span.End()

	result, err := allocate.NewAllocator(run.cfg.Allocation, e.logger).
		Allocate(ctx, iterations, teams, run.graph, run.schedulable, run.scores)
	if err != nil {
		return err
	}
	run.alloc = result

	for _, un := range result.Unallocated {
		e.publish(ctx, events.Event{Type: events.EventItemUnallocated, PlanID: run.planID, Stage: events.StageAllocate, ItemKey: un.Key, Data: map[string]any{
			"reason":     string(un.Reason),
			"suggestion": un.Suggestion,
		}})
	}

	span.SetAttributes(
		attribute.Int("allocated", result.Stats.AllocatedCount),
		attribute.Int("unallocated", result.Stats.UnallocatedCount),
	)
	e.publishStage(ctx, run, events.StageAllocate, map[string]any{
		"allocated": result.Stats.AllocatedCount, "unallocated": result.Stats.UnallocatedCount,
	})
	return nil
}

func (e *Engine) stageAssess(ctx context.Context, run *runState, iterations []train.Iteration) error {
	ctx, span := e.tracer.Start(ctx, "planner.assess")
	defer span.End()

	readiness, err := assess.NewAssessor(run.cfg.Readiness, e.logger).
		Assess(ctx, iterations, run.schedulable, run.graph, run.alloc)
	if err != nil {
		return err
	}
	run.readiness = readiness

	span.SetAttributes(
		attribute.Float64("overall", readiness.Overall),
		attribute.Bool("ready", readiness.IsReady),
	)
	e.publishStage(ctx, run, events.StageAssess, map[string]any{
		"overall": readiness.Overall, "ready": readiness.IsReady, "blockers": len(readiness.CriticalBlockers),
	})
	return nil
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	event.Timestamp = e.clock()
	if err := e.bus.Publish(ctx, event); err != nil {
		e.logger.Debug("event publish failed", "type", event.Type, "error", err)
	}
}

func (e *Engine) publishStage(ctx context.Context, run *runState, stage events.Stage, data map[string]any) {
	e.publish(ctx, events.Event{
		Type:   events.EventStageCompleted,
		PlanID: run.planID,
		Stage:  stage,
		Data:   data,
	})
}

func (e *Engine) fail(ctx context.Context, planID types.ID, err error) error {
	e.logger.Error("planning failed", "plan_id", planID.String(), "error", err)
	e.publish(ctx, events.Event{Type: events.EventPlanFailed, PlanID: planID, Data: map[string]any{
		"error": err.Error(),
	}})
	return err
}
