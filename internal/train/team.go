package train

import "fmt"

// ARTTeam represents one delivery team on the Agile Release Train.
// Teams are supplied by the caller together with their historical velocity;
// the engine never mutates them.
type ARTTeam struct {
	// ID is the stable team identifier referenced by work items and capacity entries.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is the human-readable team name.
	Name string `json:"name" yaml:"name"`

	// Members is the team head count.
	Members int `json:"members" yaml:"members" validate:"min=0"`

	// Velocity is the historical points-per-iteration velocity.
	Velocity float64 `json:"velocity" yaml:"velocity" validate:"min=0"`

	// Confidence is the confidence factor (0-1) applied to allocations for this
	// team, derived from how stable the historical velocity has been.
	Confidence float64 `json:"confidence" yaml:"confidence" validate:"min=0,max=1"`
}

// Validate checks the team fields that the engine depends on.
func (t ARTTeam) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team ID cannot be empty")
	}
	if t.Velocity < 0 {
		return fmt.Errorf("team %q has negative velocity %.1f", t.ID, t.Velocity)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("team %q confidence %.2f outside [0,1]", t.ID, t.Confidence)
	}
	return nil
}

// TeamIndex provides lookup of teams by ID.
type TeamIndex map[string]ARTTeam

// NewTeamIndex builds a TeamIndex from a team list.
// Duplicate IDs are an error because capacity entries reference teams by ID.
func NewTeamIndex(teams []ARTTeam) (TeamIndex, error) {
	idx := make(TeamIndex, len(teams))
	for _, t := range teams {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, exists := idx[t.ID]; exists {
			return nil, fmt.Errorf("duplicate team ID %q", t.ID)
		}
		idx[t.ID] = t
	}
	return idx, nil
}
