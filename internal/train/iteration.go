package train

import (
	"fmt"
	"time"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// TeamCapacity is one team's capacity entry within a single iteration.
type TeamCapacity struct {
	// TeamID references an ARTTeam by ID.
	TeamID string `json:"team_id" yaml:"team"`

	// Total is the raw capacity in points for the iteration.
	Total float64 `json:"total" yaml:"total"`

	// Available is the capacity remaining after planned absences and
	// ceremonies. Defaults to Total when the caller does not supply it.
	// The allocator applies the configured buffer fraction on top of this.
	Available float64 `json:"available" yaml:"available"`

	// TeamSize is the number of team members available this iteration.
	TeamSize int `json:"team_size" yaml:"team_size"`

	// Velocity is the historical velocity used to sanity-check Total.
	Velocity float64 `json:"velocity" yaml:"velocity"`

	// Confidence is the confidence factor (0-1) for this capacity figure.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Iteration is a fixed time-box within the Program Increment.
// Iterations are derived from the PI calendar by the caller and are
// read-only inputs to the allocator.
type Iteration struct {
	// ID is the unique identifier for this iteration.
	ID types.ID `json:"id"`

	// Name is the human-readable iteration name, e.g. "Iteration 2026.1.3".
	Name string `json:"name" yaml:"name"`

	// Start is the first day of the time-box.
	Start time.Time `json:"start" yaml:"start"`

	// End is the last day of the time-box.
	End time.Time `json:"end" yaml:"end"`

	// Capacities holds one entry per participating team.
	Capacities []TeamCapacity `json:"capacities" yaml:"capacities"`
}

// Duration returns the length of the time-box.
func (it Iteration) Duration() time.Duration {
	return it.End.Sub(it.Start)
}

// Capacity returns the capacity entry for the given team, if present.
func (it Iteration) Capacity(teamID string) (TeamCapacity, bool) {
	for _, c := range it.Capacities {
		if c.TeamID == teamID {
			return c, true
		}
	}
	return TeamCapacity{}, false
}

// Validate checks the iteration invariants the allocator depends on:
// a non-empty name, End after Start, and non-negative capacity figures
// with Available never exceeding Total.
func (it Iteration) Validate() error {
	if it.Name == "" {
		return fmt.Errorf("iteration name cannot be empty")
	}
	if !it.End.After(it.Start) {
		return fmt.Errorf("iteration %q end %s is not after start %s",
			it.Name, it.End.Format("2006-01-02"), it.Start.Format("2006-01-02"))
	}
	for _, c := range it.Capacities {
		if c.TeamID == "" {
			return fmt.Errorf("iteration %q has a capacity entry without a team", it.Name)
		}
		if c.Total < 0 {
			return fmt.Errorf("iteration %q team %q has negative capacity", it.Name, c.TeamID)
		}
		if c.Available > c.Total {
			return fmt.Errorf("iteration %q team %q available %.1f exceeds total %.1f",
				it.Name, c.TeamID, c.Available, c.Total)
		}
	}
	return nil
}

// NormalizeCapacities returns a copy of the iteration with Available
// defaulted to Total wherever the caller left it unset. The receiver
// is never modified.
func (it Iteration) NormalizeCapacities() Iteration {
	out := it
	out.Capacities = make([]TeamCapacity, len(it.Capacities))
	copy(out.Capacities, it.Capacities)
	for i := range out.Capacities {
		if out.Capacities[i].Available == 0 && out.Capacities[i].Total > 0 {
			out.Capacities[i].Available = out.Capacities[i].Total
		}
	}
	return out
}
