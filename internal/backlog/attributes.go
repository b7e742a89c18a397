package backlog

import "fmt"

// EnablerType classifies enabler work per the SAFe taxonomy.
type EnablerType string

const (
	EnablerArchitecture   EnablerType = "architecture"
	EnablerInfrastructure EnablerType = "infrastructure"
	EnablerExploration    EnablerType = "exploration"
	EnablerCompliance     EnablerType = "compliance"
)

// ParseEnablerType converts a string into an EnablerType.
func ParseEnablerType(s string) (EnablerType, error) {
	switch EnablerType(s) {
	case EnablerArchitecture, EnablerInfrastructure, EnablerExploration, EnablerCompliance:
		return EnablerType(s), nil
	default:
		return "", fmt.Errorf("unknown enabler type %q", s)
	}
}

// EpicAttributes is the extension record for epics.
type EpicAttributes struct {
	// BusinessOutcome is the measurable outcome the epic targets.
	BusinessOutcome string `json:"business_outcome,omitempty" yaml:"business_outcome"`

	// PortfolioTheme links the epic to a strategic theme.
	PortfolioTheme string `json:"portfolio_theme,omitempty" yaml:"portfolio_theme"`
}

// FeatureAttributes is the extension record for features.
type FeatureAttributes struct {
	// Benefit is the benefit-hypothesis statement.
	Benefit string `json:"benefit,omitempty" yaml:"benefit"`

	// AcceptanceThreshold describes when the feature counts as done
	// beyond its stories, e.g. "99.9% uptime over 30 days".
	AcceptanceThreshold string `json:"acceptance_threshold,omitempty" yaml:"acceptance_threshold"`
}

// StoryAttributes is the extension record for stories.
type StoryAttributes struct {
	// Persona is the user persona in the story statement.
	Persona string `json:"persona,omitempty" yaml:"persona"`

	// BusinessValue is an optional tracker-supplied 0-100 value signal
	// used to seed WSJF raw scores when the caller has no better source.
	BusinessValue int `json:"business_value,omitempty" yaml:"business_value"`
}

// EnablerAttributes is the extension record for enablers.
type EnablerAttributes struct {
	// Type classifies the enabler work.
	Type EnablerType `json:"type" yaml:"type"`
}

// Attributes is the typed per-kind extension record on a work item.
// Exactly the field matching the item's kind may be set; the others must
// be nil. This replaces an open key/value bag so metadata stays type-safe.
type Attributes struct {
	Epic    *EpicAttributes    `json:"epic,omitempty" yaml:"epic"`
	Feature *FeatureAttributes `json:"feature,omitempty" yaml:"feature"`
	Story   *StoryAttributes   `json:"story,omitempty" yaml:"story"`
	Enabler *EnablerAttributes `json:"enabler,omitempty" yaml:"enabler"`
}

// IsZero reports whether no extension record is set.
func (a Attributes) IsZero() bool {
	return a.Epic == nil && a.Feature == nil && a.Story == nil && a.Enabler == nil
}

// Validate checks that the populated extension record agrees with the
// item kind. An empty record is always valid; attributes are optional.
func (a Attributes) Validate(kind Kind) error {
	set := map[Kind]bool{
		KindEpic:    a.Epic != nil,
		KindFeature: a.Feature != nil,
		KindStory:   a.Story != nil,
		KindEnabler: a.Enabler != nil,
	}

	for k, present := range set {
		if present && k != kind {
			return fmt.Errorf("%s attributes set on a %s", k, kind)
		}
	}

	if a.Enabler != nil {
		if _, err := ParseEnablerType(string(a.Enabler.Type)); err != nil {
			return err
		}
	}

	return nil
}
