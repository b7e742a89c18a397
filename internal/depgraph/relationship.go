// Package depgraph builds and analyzes the dependency graph between
// backlog work items: text-based relationship detection, cycle detection
// and breaking, and critical-path computation.
//
// A graph is rebuilt wholesale on every analysis run. Relationships are
// immutable once detected; re-analysis produces a new graph rather than
// mutating edges in place.
package depgraph

import (
	"fmt"
	"time"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// DependencyType classifies the relationship between two work items.
type DependencyType string

const (
	// TypeBlocks means the source must finish before the target can start.
	TypeBlocks DependencyType = "blocks"

	// TypeBlockedBy is the manual inverse of TypeBlocks. The analyzer
	// normalizes detected inverse phrasing into TypeRequires; this type
	// exists for manually supplied tracker links.
	TypeBlockedBy DependencyType = "blocked_by"

	// TypeRequires means the source cannot start before the target finishes.
	TypeRequires DependencyType = "requires"

	// TypeEnables means the source makes the target easier or possible,
	// without strictly gating it.
	TypeEnables DependencyType = "enables"

	// TypeRelated marks a thematic association with no ordering meaning.
	TypeRelated DependencyType = "related"

	// TypeConflicts marks items that should not land together.
	TypeConflicts DependencyType = "conflicts"
)

// IsValid reports whether t is a known dependency type.
func (t DependencyType) IsValid() bool {
	switch t {
	case TypeBlocks, TypeBlockedBy, TypeRequires, TypeEnables, TypeRelated, TypeConflicts:
		return true
	}
	return false
}

func (t DependencyType) String() string {
	return string(t)
}

// Strength grades how binding a relationship is.
type Strength string

const (
	// StrengthHard marks a true ordering constraint.
	StrengthHard Strength = "hard"

	// StrengthSoft marks a preference the allocator may ignore.
	StrengthSoft Strength = "soft"

	// StrengthOptional marks purely informational links.
	StrengthOptional Strength = "optional"
)

// IsValid reports whether s is a known strength.
func (s Strength) IsValid() bool {
	return s == StrengthHard || s == StrengthSoft || s == StrengthOptional
}

func (s Strength) String() string {
	return string(s)
}

// DetectionMethod records how a relationship was discovered.
type DetectionMethod string

const (
	MethodKeyword   DetectionMethod = "keyword"
	MethodSemantic  DetectionMethod = "semantic"
	MethodPattern   DetectionMethod = "pattern"
	MethodManual    DetectionMethod = "manual"
	MethodInherited DetectionMethod = "inherited"
)

// IsValid reports whether m is a known detection method.
func (m DetectionMethod) IsValid() bool {
	switch m {
	case MethodKeyword, MethodSemantic, MethodPattern, MethodManual, MethodInherited:
		return true
	}
	return false
}

func (m DetectionMethod) String() string {
	return string(m)
}

// methodRank orders detection methods by trustworthiness. Used only to
// break confidence ties when two detections cover the same ordered pair.
func methodRank(m DetectionMethod) int {
	switch m {
	case MethodManual:
		return 5
	case MethodSemantic:
		return 4
	case MethodPattern:
		return 3
	case MethodKeyword:
		return 2
	case MethodInherited:
		return 1
	}
	return 0
}

// Relationship is one detected dependency edge between two work items,
// identified by their tracker keys. Immutable once detected.
type Relationship struct {
	// ID is the engine-internal identifier for this detection.
	ID types.ID `json:"id"`

	// SourceKey is the item whose text produced the detection.
	SourceKey string `json:"source_key"`

	// TargetKey is the item the source refers to.
	TargetKey string `json:"target_key"`

	// Type classifies the relationship.
	Type DependencyType `json:"type"`

	// Strength grades how binding it is.
	Strength Strength `json:"strength"`

	// Confidence is the detection confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Method records how the relationship was discovered.
	Method DetectionMethod `json:"method"`

	// Trigger is the matched text fragment, for audit.
	Trigger string `json:"trigger,omitempty"`

	// DetectedAt is when the analysis run produced this edge.
	DetectedAt time.Time `json:"detected_at"`
}

// Validate checks the edge invariants.
func (r Relationship) Validate() error {
	if r.SourceKey == "" || r.TargetKey == "" {
		return fmt.Errorf("relationship must name both source and target")
	}
	if r.SourceKey == r.TargetKey {
		return fmt.Errorf("relationship %s cannot reference itself", r.SourceKey)
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("unknown dependency type %q", r.Type)
	}
	if !r.Strength.IsValid() {
		return fmt.Errorf("unknown strength %q", r.Strength)
	}
	if !r.Method.IsValid() {
		return fmt.Errorf("unknown detection method %q", r.Method)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %.2f outside [0,1]", r.Confidence)
	}
	return nil
}

// ConstrainsScheduling reports whether this edge imposes an ordering
// constraint on the allocator. Only hard blocks/requires edges do;
// everything else is advisory.
func (r Relationship) ConstrainsScheduling() bool {
	if r.Strength != StrengthHard {
		return false
	}
	return r.Type == TypeBlocks || r.Type == TypeRequires
}

// Direction resolves the edge into scheduling order. It returns the key
// that must finish first, the key that waits, and whether the type has
// an ordering direction at all. Related and conflicts edges do not.
func (r Relationship) Direction() (prerequisite, dependent string, directed bool) {
	switch r.Type {
	case TypeBlocks:
		return r.SourceKey, r.TargetKey, true
	case TypeRequires:
		return r.TargetKey, r.SourceKey, true
	case TypeBlockedBy:
		return r.TargetKey, r.SourceKey, true
	case TypeEnables:
		return r.SourceKey, r.TargetKey, true
	default:
		return "", "", false
	}
}

// pairKey identifies the ordered source/target pair for deduplication.
func (r Relationship) pairKey() string {
	return r.SourceKey + "\x00" + r.TargetKey
}

// identity is a stable per-run identifier used for deterministic
// tie-breaking. The uuid ID is random per run and never used for ordering.
func (r Relationship) identity() string {
	return r.SourceKey + "\x00" + r.TargetKey + "\x00" + string(r.Type)
}
