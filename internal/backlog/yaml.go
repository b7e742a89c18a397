// Package backlog defines the work-item model the planning engine consumes
// and a YAML document format for supplying a full planning scenario
// (items, iterations, teams) from a file.
//
// The engine itself is handed in-memory snapshots; the YAML loader exists
// for the CLI and for hosts that stage planning scenarios as documents.
//
// # Document Structure Example
//
//	name: PI-2026.1 backlog
//	items:
//	  - key: WTFB-100
//	    kind: feature
//	    title: Member checkout
//	  - key: WTFB-101
//	    kind: story
//	    parent: WTFB-100
//	    title: Checkout form validation
//	    points: 5
//	    team: platform
//	    acceptance_criteria:
//	      - Rejects expired cards
//	      - Requires billing address
//	iterations:
//	  - name: Iteration 1
//	    start: 2026-01-05
//	    end: 2026-01-16
//	    capacities:
//	      - team: platform
//	        total: 25
//	        confidence: 0.8
//	teams:
//	  - id: platform
//	    name: Platform
//	    members: 5
//	    velocity: 23
//	    confidence: 0.8
//
// # Date Format
//
// Iteration start/end accept "2006-01-02" dates or full RFC 3339 timestamps.
package backlog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ByBren-LLC/bigroom/internal/train"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Document is a fully parsed planning scenario.
type Document struct {
	Name        string
	Description string
	Items       []WorkItem
	Iterations  []train.Iteration
	Teams       []train.ARTTeam
}

// yamlDocument is the raw top-level structure of a backlog YAML file.
type yamlDocument struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Items       []yamlItem      `yaml:"items"`
	Iterations  []yamlIteration `yaml:"iterations"`
	Teams       []train.ARTTeam `yaml:"teams"`
}

// yamlItem is a raw work item entry. It exists so the document format can
// stay stable while the WorkItem struct evolves.
type yamlItem struct {
	Key                string     `yaml:"key"`
	Kind               string     `yaml:"kind"`
	Title              string     `yaml:"title"`
	Description        string     `yaml:"description"`
	Points             int        `yaml:"points"`
	AcceptanceCriteria []string   `yaml:"acceptance_criteria"`
	Parent             string     `yaml:"parent"`
	Team               string     `yaml:"team"`
	Labels             []string   `yaml:"labels"`
	Attributes         Attributes `yaml:"attributes"`
}

// yamlIteration is a raw iteration entry with string dates.
type yamlIteration struct {
	Name       string         `yaml:"name"`
	Start      yamlDate       `yaml:"start"`
	End        yamlDate       `yaml:"end"`
	Capacities []yamlCapacity `yaml:"capacities"`
}

type yamlCapacity struct {
	Team       string  `yaml:"team"`
	Total      float64 `yaml:"total"`
	Available  float64 `yaml:"available"`
	TeamSize   int     `yaml:"team_size"`
	Velocity   float64 `yaml:"velocity"`
	Confidence float64 `yaml:"confidence"`
}

// yamlDate accepts either a plain date ("2026-01-05") or RFC 3339.
type yamlDate struct {
	time.Time
}

// UnmarshalYAML implements custom YAML unmarshaling for the two accepted
// date layouts.
func (d *yamlDate) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return fmt.Errorf("date cannot be empty")
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	d.Time = t
	return nil
}

// Load reads and parses a backlog document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapFatalError(types.BACKLOG_PARSE_FAILED,
			fmt.Sprintf("failed to read backlog file %s", path), err)
	}
	return Parse(data)
}

// Parse parses a backlog document from raw YAML bytes and validates it.
// Engine-internal IDs are assigned here; the document format never
// carries them.
func Parse(data []byte) (*Document, error) {
	var raw yamlDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.WrapFatalError(types.BACKLOG_PARSE_FAILED,
			"failed to parse backlog YAML", err)
	}

	doc := &Document{
		Name:        raw.Name,
		Description: raw.Description,
		Teams:       raw.Teams,
	}

	doc.Items = make([]WorkItem, 0, len(raw.Items))
	for i, ri := range raw.Items {
		kind, err := ParseKind(ri.Kind)
		if err != nil {
			return nil, types.WrapFatalError(types.BACKLOG_INVALID,
				fmt.Sprintf("items[%d] (%s)", i, ri.Key), err)
		}
		item := WorkItem{
			ID:                 types.NewID(),
			Key:                ri.Key,
			Kind:               kind,
			Title:              ri.Title,
			Description:        ri.Description,
			Points:             ri.Points,
			AcceptanceCriteria: ri.AcceptanceCriteria,
			Parent:             ri.Parent,
			Team:               ri.Team,
			Labels:             ri.Labels,
			Attributes:         ri.Attributes,
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, item)
	}

	doc.Iterations = make([]train.Iteration, 0, len(raw.Iterations))
	for i, ri := range raw.Iterations {
		it := train.Iteration{
			ID:    types.NewID(),
			Name:  ri.Name,
			Start: ri.Start.Time,
			End:   ri.End.Time,
		}
		for _, rc := range ri.Capacities {
			it.Capacities = append(it.Capacities, train.TeamCapacity{
				TeamID:     rc.Team,
				Total:      rc.Total,
				Available:  rc.Available,
				TeamSize:   rc.TeamSize,
				Velocity:   rc.Velocity,
				Confidence: rc.Confidence,
			})
		}
		it = it.NormalizeCapacities()
		if err := it.Validate(); err != nil {
			return nil, types.WrapFatalError(types.BACKLOG_INVALID,
				fmt.Sprintf("iterations[%d]", i), err)
		}
		doc.Iterations = append(doc.Iterations, it)
	}

	if _, err := train.NewTeamIndex(doc.Teams); err != nil {
		return nil, types.WrapFatalError(types.BACKLOG_INVALID, "teams", err)
	}

	if err := doc.validateReferences(); err != nil {
		return nil, err
	}

	return doc, nil
}

// validateReferences cross-checks team references from items and capacity
// entries against the declared team list.
func (d *Document) validateReferences() error {
	teams := make(map[string]bool, len(d.Teams))
	for _, t := range d.Teams {
		teams[t.ID] = true
	}

	// No declared teams means the document is items-only; team references
	// are then resolved by the caller supplying teams separately.
	if len(teams) == 0 {
		return nil
	}

	for _, item := range d.Items {
		if item.Team != "" && !teams[item.Team] {
			return types.NewFatalError(types.BACKLOG_INVALID,
				fmt.Sprintf("work item %s references undeclared team %q", item.Key, item.Team)).
				WithItem(item.Key)
		}
	}
	for _, it := range d.Iterations {
		for _, c := range it.Capacities {
			if !teams[c.TeamID] {
				return types.NewFatalError(types.BACKLOG_INVALID,
					fmt.Sprintf("iteration %q capacity references undeclared team %q", it.Name, c.TeamID))
			}
		}
	}
	return nil
}
