package allocate

import (
	"github.com/ByBren-LLC/bigroom/internal/train"
)

// capacityTolerance absorbs float drift when comparing points against
// remaining capacity.
const capacityTolerance = 1e-9

type slot struct {
	iteration int
	team      string
}

// Ledger tracks capacity consumption per (iteration, team) slot. The
// usable figure per slot is the available capacity with the buffer
// held back, further capped by the maximum-utilization share of the
// raw total; charges only ever reduce what remains.
type Ledger struct {
	usable    map[slot]float64
	used      map[slot]float64
	available map[string]float64
	teams     []string
	slots     int
}

// NewLedger prices every capacity entry of the given iterations under
// the configured buffer and utilization cap. Iterations must already
// have normalized capacities.
func NewLedger(iterations []train.Iteration, cfg Config) *Ledger {
	l := &Ledger{
		usable:    make(map[slot]float64),
		used:      make(map[slot]float64),
		available: make(map[string]float64),
		slots:     len(iterations),
	}

	seen := make(map[string]bool)
	for k, it := range iterations {
		for _, c := range it.Capacities {
			l.usable[slot{iteration: k, team: c.TeamID}] = UsableCapacity(c, cfg)
			l.available[c.TeamID] += c.Available
			if !seen[c.TeamID] {
				seen[c.TeamID] = true
				l.teams = append(l.teams, c.TeamID)
			}
		}
	}
	return l
}

// UsableCapacity prices one capacity entry under the configured
// buffer and utilization cap: available capacity with the buffer held
// back, never more than the utilization share of the raw total.
func UsableCapacity(c train.TeamCapacity, cfg Config) float64 {
	usable := c.Available * (1 - cfg.BufferFraction)
	if lim := cfg.MaxUtilization * c.Total; lim < usable {
		usable = lim
	}
	return usable
}

// Usable returns the slot's capped capacity.
func (l *Ledger) Usable(iteration int, team string) float64 {
	return l.usable[slot{iteration: iteration, team: team}]
}

// Remaining returns the slot's capacity left to charge.
func (l *Ledger) Remaining(iteration int, team string) float64 {
	s := slot{iteration: iteration, team: team}
	return l.usable[s] - l.used[s]
}

// Fits reports whether the slot can absorb the given points.
func (l *Ledger) Fits(iteration int, team string, points int) bool {
	return float64(points) <= l.Remaining(iteration, team)+capacityTolerance
}

// Charge consumes points from the slot.
func (l *Ledger) Charge(iteration int, team string, points int) {
	s := slot{iteration: iteration, team: team}
	l.used[s] += float64(points)
}

// MaxUsable returns the largest single-slot capacity any of the given
// teams offers in any iteration, before charges. An item above this
// cannot fit anywhere even into an empty plan.
func (l *Ledger) MaxUsable(teams []string) float64 {
	best := 0.0
	for _, team := range teams {
		for k := 0; k < l.slots; k++ {
			if u := l.Usable(k, team); u > best {
				best = u
			}
		}
	}
	return best
}

// Utilization returns, per team, charged points over raw available
// capacity across the whole horizon.
func (l *Ledger) Utilization() map[string]float64 {
	out := make(map[string]float64, len(l.teams))
	for _, team := range l.teams {
		avail := l.available[team]
		if avail <= 0 {
			out[team] = 0
			continue
		}
		total := 0.0
		for k := 0; k < l.slots; k++ {
			total += l.used[slot{iteration: k, team: team}]
		}
		out[team] = total / avail
	}
	return out
}
