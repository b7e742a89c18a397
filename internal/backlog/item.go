package backlog

import (
	"fmt"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Kind identifies the work-item variant in the SAFe hierarchy.
type Kind string

const (
	// KindEpic is a portfolio-level container; never scheduled directly.
	KindEpic Kind = "epic"

	// KindFeature is a program-level container; never scheduled directly.
	KindFeature Kind = "feature"

	// KindStory is a team-level item scheduled into iterations.
	KindStory Kind = "story"

	// KindEnabler is a technical item scheduled into iterations.
	KindEnabler Kind = "enabler"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsSchedulable reports whether items of this kind are placed into
// iterations. Epics and features only contribute through their
// descendant stories and enablers.
func (k Kind) IsSchedulable() bool {
	return k == KindStory || k == KindEnabler
}

// ParseKind converts a string into a Kind, case-sensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEpic, KindFeature, KindStory, KindEnabler:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown work item kind %q", s)
	}
}

// WorkItem is a single backlog entry within the planning scope.
//
// Parent is a weak back-reference by key, resolved through an Index;
// it is never a live pointer, so parent/child linkage cannot create
// cyclic ownership.
type WorkItem struct {
	// ID is the engine-internal identifier, assigned at load time.
	ID types.ID `json:"id"`

	// Key is the human-readable tracker key, e.g. "WTFB-42".
	// Keys are the identifiers used in dependency edges and plans.
	Key string `json:"key" yaml:"key" validate:"required"`

	// Kind is the work-item variant.
	Kind Kind `json:"kind" yaml:"kind" validate:"required"`

	// Title is the one-line summary.
	Title string `json:"title" yaml:"title" validate:"required"`

	// Description is the full text, scanned by the dependency analyzer.
	Description string `json:"description" yaml:"description"`

	// Points is the estimate in story points.
	Points int `json:"points" yaml:"points" validate:"min=0"`

	// AcceptanceCriteria is the ordered criteria list. Order is preserved
	// through decomposition so the criteria mapping stays stable.
	AcceptanceCriteria []string `json:"acceptance_criteria" yaml:"acceptance_criteria"`

	// Parent is the key of the parent item, empty for roots.
	Parent string `json:"parent,omitempty" yaml:"parent"`

	// Team is the owning team ID; empty means any team may take it.
	Team string `json:"team,omitempty" yaml:"team"`

	// Labels carry tracker labels; advisory only.
	Labels []string `json:"labels,omitempty" yaml:"labels"`

	// Attributes holds the kind-specific extension record.
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes"`
}

// Validate checks the item invariants the engine depends on. It returns a
// VALIDATION_FAILED engine error so callers can match by code.
func (w WorkItem) Validate() error {
	if w.Key == "" {
		return types.NewFatalError(types.VALIDATION_FAILED, "work item key cannot be empty")
	}
	if w.Title == "" {
		return types.NewFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("work item %s has no title", w.Key)).WithItem(w.Key)
	}
	if _, err := ParseKind(string(w.Kind)); err != nil {
		return types.WrapFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("work item %s", w.Key), err).WithItem(w.Key)
	}
	if w.Points < 0 {
		return types.NewFatalError(types.NEGATIVE_ESTIMATE,
			fmt.Sprintf("work item %s has negative estimate %d", w.Key, w.Points)).WithItem(w.Key)
	}
	if err := w.Attributes.Validate(w.Kind); err != nil {
		return types.WrapFatalError(types.VALIDATION_FAILED,
			fmt.Sprintf("work item %s attributes", w.Key), err).WithItem(w.Key)
	}
	return nil
}

// SearchText returns the text surface the dependency analyzer scans:
// title, description, and every acceptance criterion.
func (w WorkItem) SearchText() string {
	text := w.Title + "\n" + w.Description
	for _, c := range w.AcceptanceCriteria {
		text += "\n" + c
	}
	return text
}

// IsOversized reports whether a schedulable item exceeds the configured
// maximum points and is therefore a decomposition candidate.
func (w WorkItem) IsOversized(maxPoints int) bool {
	return w.Kind.IsSchedulable() && w.Points > maxPoints
}

// Oversized filters the schedulable items whose estimate exceeds maxPoints.
// Input order is preserved.
func Oversized(items []WorkItem, maxPoints int) []WorkItem {
	var out []WorkItem
	for _, item := range items {
		if item.IsOversized(maxPoints) {
			out = append(out, item)
		}
	}
	return out
}
