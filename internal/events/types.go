// Package events carries planning progress events from the engine to
// interested hosts. The engine publishes; subscribers stream progress
// without ever being able to slow a planning run down, because
// publishes never block on a full subscriber buffer.
package events

import (
	"time"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// EventType identifies the kind of planning event.
type EventType string

// Plan lifecycle events.
const (
	EventPlanStarted   EventType = "plan.started"
	EventPlanCompleted EventType = "plan.completed"
	EventPlanFailed    EventType = "plan.failed"
)

// Stage progress events.
const (
	EventStageCompleted EventType = "stage.completed"
)

// Per-finding events emitted while stages run.
const (
	EventCycleDetected   EventType = "cycle.detected"
	EventItemDecomposed  EventType = "item.decomposed"
	EventItemUnallocated EventType = "item.unallocated"
)

// Stage names the pipeline stage an event belongs to.
type Stage string

const (
	StageAnalyze   Stage = "analyze"
	StageDecompose Stage = "decompose"
	StageScore     Stage = "score"
	StageAllocate  Stage = "allocate"
	StageAssess    Stage = "assess"
)

// Event is one planning progress notification.
type Event struct {
	// Type is the event kind.
	Type EventType `json:"type"`

	// PlanID identifies the planning run the event belongs to.
	PlanID types.ID `json:"plan_id"`

	// Stage is the pipeline stage, empty for plan-level events.
	Stage Stage `json:"stage,omitempty"`

	// ItemKey is the work item the event concerns, when any.
	ItemKey string `json:"item_key,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Data carries event-specific details (counts, reasons, scores).
	Data map[string]any `json:"data,omitempty"`
}

// Filter narrows a subscription. Zero-value fields match everything.
type Filter struct {
	// Types restricts delivery to the listed event types.
	Types []EventType

	// PlanID restricts delivery to one planning run.
	PlanID types.ID
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(e Event) bool {
	if !f.PlanID.IsZero() && f.PlanID != e.PlanID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}
