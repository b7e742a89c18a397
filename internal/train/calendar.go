package train

import (
	"fmt"
	"time"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// CalendarConfig describes how to derive iteration time-boxes from a
// Program Increment start date.
type CalendarConfig struct {
	// PIName is the Program Increment label used to name iterations,
	// e.g. "PI-2026.1" yields "PI-2026.1 Iteration 1".
	PIName string

	// Start is the first day of the first iteration.
	Start time.Time

	// Iterations is the number of time-boxes to generate.
	Iterations int

	// Length is the length of each time-box (typically two weeks).
	Length time.Duration

	// DefaultCapacity is the per-team total capacity in points applied to
	// every generated iteration. Callers with real capacity data should
	// overwrite the generated entries before planning.
	DefaultCapacity float64
}

// BuildIterations generates the iteration list for a Program Increment.
// This is a caller-side convenience: the engine itself treats whatever
// iterations it is handed as authoritative and never regenerates them.
func BuildIterations(cfg CalendarConfig, teams []ARTTeam) ([]Iteration, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iteration count must be positive, got %d", cfg.Iterations)
	}
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("iteration length must be positive, got %s", cfg.Length)
	}
	if cfg.Start.IsZero() {
		return nil, fmt.Errorf("PI start date is required")
	}

	iterations := make([]Iteration, 0, cfg.Iterations)
	start := cfg.Start
	for i := 0; i < cfg.Iterations; i++ {
		end := start.Add(cfg.Length)

		capacities := make([]TeamCapacity, 0, len(teams))
		for _, team := range teams {
			total := cfg.DefaultCapacity
			if total == 0 {
				total = team.Velocity
			}
			capacities = append(capacities, TeamCapacity{
				TeamID:     team.ID,
				Total:      total,
				Available:  total,
				TeamSize:   team.Members,
				Velocity:   team.Velocity,
				Confidence: team.Confidence,
			})
		}

		name := fmt.Sprintf("Iteration %d", i+1)
		if cfg.PIName != "" {
			name = fmt.Sprintf("%s %s", cfg.PIName, name)
		}

		iterations = append(iterations, Iteration{
			ID:         types.NewID(),
			Name:       name,
			Start:      start,
			End:        end,
			Capacities: capacities,
		})

		start = end
	}

	return iterations, nil
}
