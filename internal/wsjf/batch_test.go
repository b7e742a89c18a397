package wsjf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

func unitSize(points int) JobSizeInputs {
	return JobSizeInputs{Points: points, Complexity: 1, Uncertainty: 1}
}

func TestScoreBatch(t *testing.T) {
	c := NewCalculator(DefaultThresholds(), nil)

	items := []backlog.WorkItem{
		scoreItem("ST-2", 5),
		scoreItem("ST-1", 5),
		scoreItem("ST-4", 3),
		scoreItem("ST-3", 4),
	}
	raw := map[string]RawScores{
		"ST-1": {BusinessValue: singleValue(100), JobSize: unitSize(5)},
		"ST-2": {BusinessValue: singleValue(50), JobSize: unitSize(5)},
		"ST-3": {BusinessValue: singleValue(20), JobSize: unitSize(4)},
		"ST-4": {BusinessValue: singleValue(50), JobSize: unitSize(0)},
	}

	batch, err := c.ScoreBatch(context.Background(), items, raw)
	require.NoError(t, err)
	require.Len(t, batch.Scored, 3)
	require.Len(t, batch.Errors, 1)
	assert.True(t, batch.Failed())

	// Output is ordered by key regardless of input order.
	assert.Equal(t, "ST-1", batch.Scored[0].Key)
	assert.Equal(t, "ST-2", batch.Scored[1].Key)
	assert.Equal(t, "ST-3", batch.Scored[2].Key)

	assert.InDelta(t, 20, batch.Scored[0].WSJF, 0.001)
	assert.InDelta(t, 10, batch.Scored[1].WSJF, 0.001)
	assert.InDelta(t, 5, batch.Scored[2].WSJF, 0.001)
	assert.InDelta(t, 20, batch.MaxWSJF(), 0.001)

	// The batch maximum pins priority 100.
	assert.InDelta(t, 100, batch.Scored[0].Priority, 0.001)
	assert.InDelta(t, 50, batch.Scored[1].Priority, 0.001)
	assert.InDelta(t, 25, batch.Scored[2].Priority, 0.001)

	assert.Equal(t, TierUrgent, batch.Scored[0].Tier)
	assert.Equal(t, TierHigh, batch.Scored[1].Tier)
	assert.Equal(t, TierMedium, batch.Scored[2].Tier)

	assert.Equal(t, types.INVALID_JOB_SIZE, batch.Errors[0].Code)
	assert.Equal(t, "ST-4", batch.Errors[0].ItemKey)
}

func TestScoreBatchDerivesMissingScores(t *testing.T) {
	c := NewCalculator(DefaultThresholds(), nil)

	item := scoreItem("ST-20", 5)
	item.AcceptanceCriteria = []string{
		"Totals include tax",
		"Totals include shipping",
	}

	batch, err := c.ScoreBatch(context.Background(), []backlog.WorkItem{item}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Scored, 1)
	assert.Empty(t, batch.Errors)
	assert.Greater(t, batch.Scored[0].WSJF, 0.0)
	assert.InDelta(t, 100, batch.Scored[0].Priority, 0.001)
}

func TestScoreBatchDeterministic(t *testing.T) {
	c := NewCalculator(DefaultThresholds(), nil)

	items := []backlog.WorkItem{
		scoreItem("ST-1", 5),
		scoreItem("ST-2", 8),
		scoreItem("ST-3", 3),
	}
	reversed := []backlog.WorkItem{items[2], items[1], items[0]}

	first, err := c.ScoreBatch(context.Background(), items, nil)
	require.NoError(t, err)
	second, err := c.ScoreBatch(context.Background(), reversed, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Scored, second.Scored)
}

func TestScoreBatchFatalConfig(t *testing.T) {
	c := NewCalculator(Thresholds{Urgent: 5, High: 8, Medium: 3}, nil)

	_, err := c.ScoreBatch(context.Background(), []backlog.WorkItem{scoreItem("ST-1", 5)}, nil)
	require.Error(t, err)

	var engErr *types.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.True(t, engErr.Fatal)
}

func TestScoreBatchEmpty(t *testing.T) {
	c := NewCalculator(DefaultThresholds(), nil)

	batch, err := c.ScoreBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Scored)
	assert.False(t, batch.Failed())
}

func TestScoreBatchCancelled(t *testing.T) {
	c := NewCalculator(DefaultThresholds(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ScoreBatch(ctx, []backlog.WorkItem{scoreItem("ST-1", 5)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
