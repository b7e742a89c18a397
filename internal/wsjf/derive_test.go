package wsjf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

func TestDeriveRawScores(t *testing.T) {
	item := backlog.WorkItem{
		ID:          types.NewID(),
		Key:         "ST-10",
		Kind:        backlog.KindStory,
		Title:       "Order export for finance",
		Description: "Finance pulls a daily export of settled orders.",
		Points:      5,
		AcceptanceCriteria: []string{
			"Exports cover the previous day",
			"Exports include refund lines",
			"Exports download as CSV",
		},
	}

	raw := DeriveRawScores(item, 2)

	require.Len(t, raw.BusinessValue, 2)
	assert.InDelta(t, 50, raw.BusinessValue[0].Value, 0.001)
	assert.InDelta(t, 45, raw.BusinessValue[1].Value, 0.001)

	require.Len(t, raw.TimeCriticality, 2)
	assert.InDelta(t, 35, raw.TimeCriticality[0].Value, 0.001)
	assert.InDelta(t, 35, raw.TimeCriticality[1].Value, 0.001)

	require.Len(t, raw.RiskReduction, 2)
	assert.InDelta(t, 30, raw.RiskReduction[0].Value, 0.001)
	assert.InDelta(t, 35, raw.RiskReduction[1].Value, 0.001)

	assert.Equal(t, JobSizeInputs{Points: 5, Complexity: 3, Uncertainty: 2, DependencyCount: 2}, raw.JobSize)
}

func TestDeriveStatedBusinessValue(t *testing.T) {
	item := backlog.WorkItem{
		Key:  "ST-11",
		Kind: backlog.KindStory,
		Attributes: backlog.Attributes{
			Story: &backlog.StoryAttributes{BusinessValue: 70},
		},
	}
	assert.InDelta(t, 70, statedValue(item), 0.001)

	item.Attributes.Story.BusinessValue = 150
	assert.InDelta(t, 100, statedValue(item), 0.001, "stated value clamps at 100")

	item.Attributes.Story.BusinessValue = 0
	assert.InDelta(t, 50, statedValue(item), 0.001, "unset stated value stays neutral")
}

func TestDeriveUrgencyAndRiskCues(t *testing.T) {
	urgent := backlog.WorkItem{
		Key:   "ST-12",
		Kind:  backlog.KindStory,
		Title: "Ship tax tables before the filing deadline",
	}
	assert.InDelta(t, 85, cueValue(urgent, urgencyCues, 85, 35), 0.001)

	labelled := backlog.WorkItem{
		Key:    "ST-13",
		Kind:   backlog.KindStory,
		Title:  "Rework retry queue",
		Labels: []string{"urgent-fix"},
	}
	assert.InDelta(t, 85, cueValue(labelled, urgencyCues, 85, 35), 0.001)

	risky := backlog.WorkItem{
		Key:         "EN-2",
		Kind:        backlog.KindEnabler,
		Title:       "Rotate signing keys",
		Description: "Reduces the security exposure of long-lived keys.",
	}
	assert.InDelta(t, 80, cueValue(risky, riskCues, 80, 30), 0.001)

	calm := backlog.WorkItem{
		Key:   "ST-14",
		Kind:  backlog.KindStory,
		Title: "Rename the settings tab",
	}
	assert.InDelta(t, 35, cueValue(calm, urgencyCues, 85, 35), 0.001)
	assert.InDelta(t, 30, cueValue(calm, riskCues, 80, 30), 0.001)
}

func TestDeriveComplianceAndEnablerValues(t *testing.T) {
	enabler := backlog.WorkItem{
		Key:  "EN-5",
		Kind: backlog.KindEnabler,
		Attributes: backlog.Attributes{
			Enabler: &backlog.EnablerAttributes{Type: backlog.EnablerCompliance},
		},
	}
	assert.InDelta(t, 90, complianceValue(enabler), 0.001)
	assert.InDelta(t, 75, enablerValue(enabler), 0.001)

	labelled := backlog.WorkItem{
		Key:    "ST-15",
		Kind:   backlog.KindStory,
		Labels: []string{"Compliance"},
	}
	assert.InDelta(t, 90, complianceValue(labelled), 0.001)
	assert.InDelta(t, 35, enablerValue(labelled), 0.001)

	plain := backlog.WorkItem{Key: "ST-16", Kind: backlog.KindStory}
	assert.InDelta(t, 35, complianceValue(plain), 0.001)
}

func TestDeriveBands(t *testing.T) {
	complexity := map[int]int{0: 1, 1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 7: 3, 8: 4, 12: 4, 13: 5, 21: 5}
	for points, want := range complexity {
		assert.Equal(t, want, complexityBand(points), "points %d", points)
	}

	uncertainty := map[int]int{0: 5, 1: 4, 2: 3, 3: 2, 4: 2, 5: 1, 9: 1}
	for criteria, want := range uncertainty {
		assert.Equal(t, want, uncertaintyBand(criteria), "criteria %d", criteria)
	}
}
