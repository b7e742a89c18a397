package planner_test

import (
	"context"
	"fmt"
	"time"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/planner"
	"github.com/ByBren-LLC/bigroom/internal/train"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

func ExampleEngine_PlanART() {
	items := []backlog.WorkItem{
		{
			ID: types.NewID(), Key: "ST-1", Kind: backlog.KindStory,
			Title: "Persist cart between sessions", Points: 3, Team: "platform",
			AcceptanceCriteria: []string{
				"Given a signed-in user, the cart survives a new session",
				"Anonymous carts merge on sign-in",
			},
		},
		{
			ID: types.NewID(), Key: "ST-2", Kind: backlog.KindStory,
			Title: "Checkout accepts saved cards", Points: 5, Team: "platform",
			AcceptanceCriteria: []string{
				"Saved cards list on the payment step",
				"Removing a card takes one click",
			},
		},
	}

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	iterations := []train.Iteration{{
		ID: types.NewID(), Name: "I1",
		Start: start, End: start.AddDate(0, 0, 13),
		Capacities: []train.TeamCapacity{
			{TeamID: "platform", Total: 25, Available: 25, Confidence: 0.9},
		},
	}}
	teams := []train.ARTTeam{{ID: "platform", Name: "Platform", Confidence: 0.9}}

	engine := planner.New()
	plan, err := engine.PlanART(context.Background(), items, iterations, teams, nil)
	if err != nil {
		fmt.Println("planning failed:", err)
		return
	}

	fmt.Printf("allocated %d items, %d left over\n",
		plan.Summary.AllocatedCount, plan.Summary.UnallocatedCount)
	fmt.Printf("status: %s\n", plan.Status)
	// Output:
	// allocated 2 items, 0 left over
	// status: final
}
