package wsjf

import (
	"strings"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
)

// urgencyCues mark time-critical work in titles, descriptions,
// criteria, or labels.
var urgencyCues = []string{
	"deadline", "due", "expires", "launch", "milestone", "time-sensitive", "urgent",
}

// riskCues mark work that pays down operational or security risk.
var riskCues = []string{
	"debt", "flaky", "incident", "outage", "risk", "security", "stability",
}

// DeriveRawScores builds heuristic raw scores from what the backlog
// item itself carries, for callers with no scoring source of their
// own. A tracker-supplied business value wins over the neutral
// default; urgency and risk come from cue words; complexity and
// uncertainty band off the estimate and the acceptance criteria
// count. The result is deterministic for a given item.
func DeriveRawScores(item backlog.WorkItem, dependencyCount int) RawScores {
	return RawScores{
		BusinessValue: []ComponentScore{
			{Name: "stated value", Value: statedValue(item), Weight: 0.7},
			{Name: "acceptance breadth", Value: capAt(15*float64(len(item.AcceptanceCriteria)), 100), Weight: 0.3},
		},
		TimeCriticality: []ComponentScore{
			{Name: "urgency cues", Value: cueValue(item, urgencyCues, 85, 35), Weight: 0.6},
			{Name: "compliance mandate", Value: complianceValue(item), Weight: 0.4},
		},
		RiskReduction: []ComponentScore{
			{Name: "risk cues", Value: cueValue(item, riskCues, 80, 30), Weight: 0.6},
			{Name: "enabler leverage", Value: enablerValue(item), Weight: 0.4},
		},
		JobSize: JobSizeInputs{
			Points:          item.Points,
			Complexity:      complexityBand(item.Points),
			Uncertainty:     uncertaintyBand(len(item.AcceptanceCriteria)),
			DependencyCount: dependencyCount,
		},
	}
}

// statedValue reads the tracker-supplied business value when present,
// clamped to 0-100, and defaults to a neutral 50 otherwise.
func statedValue(item backlog.WorkItem) float64 {
	if item.Attributes.Story != nil && item.Attributes.Story.BusinessValue > 0 {
		return capAt(float64(item.Attributes.Story.BusinessValue), 100)
	}
	return 50
}

// cueValue returns hit when any cue word appears in the item's text
// or labels, miss otherwise.
func cueValue(item backlog.WorkItem, cues []string, hit, miss float64) float64 {
	text := strings.ToLower(item.SearchText() + "\n" + strings.Join(item.Labels, "\n"))
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return hit
		}
	}
	return miss
}

func complianceValue(item backlog.WorkItem) float64 {
	if item.Attributes.Enabler != nil && item.Attributes.Enabler.Type == backlog.EnablerCompliance {
		return 90
	}
	for _, label := range item.Labels {
		if strings.EqualFold(label, "compliance") {
			return 90
		}
	}
	return 35
}

/// enablerValue favors enablers: architecture and infrastructure work
// buys down future delivery risk even without risk cue words.
func enablerValue(item backlog.WorkItem) float64 {
	if item.Kind == backlog.KindEnabler {
		return 75
	}
	return 35
}

// complexityBand maps the estimate onto the 1-5 complexity band.
func complexityBand(points int) int {
	switch {
	case points >= 13:
		return 5
	case points >= 8:
		return 4
	case points >= 5:
		return 3
	case points >= 3:
		return 2
	default:
		return 1
	}
}

// uncertaintyBand maps acceptance-criteria coverage onto the 1-5
// uncertainty band; fewer criteria means a fuzzier scope.
func uncertaintyBand(criteria int) int {
	switch {
	case criteria == 0:
		return 5
	case criteria == 1:
		return 4
	case criteria == 2:
		return 3
	case criteria <= 4:
		return 2
	default:
		return 1
	}
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
