package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByBren-LLC/bigroom/cmd/bigroom/internal"
	"github.com/ByBren-LLC/bigroom/internal/assess"
	"github.com/ByBren-LLC/bigroom/internal/events"
	"github.com/ByBren-LLC/bigroom/internal/planner"
)

var planCmd = &cobra.Command{
	Use:   "plan <backlog.yaml>",
	Short: "Plan a Program Increment from a backlog document",
	Long: `Plan runs the full pipeline over a planning scenario: dependency
analysis, story decomposition, WSJF scoring, iteration allocation, and
readiness assessment.

The document must declare items, iterations, and teams. The exit code
is 0 for a plan with no critical blockers, 2 when critical readiness
blockers remain, and non-zero for errors.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	doc, err := loadScenario(args[0])
	if err != nil {
		return err
	}

	opts := []planner.Option{planner.WithLogger(appLogger)}

	// In verbose mode stream pipeline events through the logger as
	// they happen, rather than only reporting the final plan.
	if globalFlags.IsVerbose() {
		bus := events.NewBus()
		defer bus.Close()
		ch, cancel := bus.Subscribe(cmd.Context(), events.Filter{}, 256)
		defer cancel()
		go func() {
			for ev := range ch {
				appLogger.Debug("planning event",
					"type", ev.Type, "stage", ev.Stage, "item", ev.ItemKey)
			}
		}()
		opts = append(opts, planner.WithEventBus(bus))
	}

	engine := planner.New(opts...)
	plan, err := engine.PlanART(cmd.Context(), doc.Items, doc.Iterations, doc.Teams, appConfig)
	if err != nil {
		return err
	}

	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if globalFlags.GetOutputFormat() != internal.FormatText {
		if err := formatter.PrintStruct(plan); err != nil {
			return err
		}
	} else if err := renderPlanText(cmd, doc.Name, plan); err != nil {
		return err
	}

	if len(plan.Readiness.CriticalBlockers) > 0 {
		return internal.NewCLIError(internal.ExitNotReady,
			fmt.Sprintf("plan has %d critical readiness blockers", len(plan.Readiness.CriticalBlockers)))
	}
	return nil
}

func renderPlanText(cmd *cobra.Command, name string, plan *planner.ARTPlan) error {
	out := cmd.OutOrStdout()
	formatter := internal.NewTextFormatter(out)

	if name == "" {
		name = "backlog"
	}
	fmt.Fprintf(out, "Plan for %s  (status: %s, risk: %s)\n\n",
		name, plan.Status, plan.Summary.RiskLevel)

	for _, ip := range plan.IterationPlans {
		fmt.Fprintf(out, "%s  (%s to %s, %d points)\n",
			ip.Iteration.Name,
			ip.Iteration.Start.Format("2006-01-02"),
			ip.Iteration.End.Format("2006-01-02"),
			ip.TotalPoints)

		if len(ip.Allocated) == 0 {
			fmt.Fprintln(out, "  (empty)")
			fmt.Fprintln(out)
			continue
		}

		rows := make([][]string, 0, len(ip.Allocated))
		for _, item := range ip.Allocated {
			completes := "yes"
			if !item.Complete {
				completes = "carryover"
			}
			rows = append(rows, []string{
				item.Key,
				item.Team,
				fmt.Sprintf("%d", item.Points),
				completes,
				fmt.Sprintf("%.2f", item.Confidence),
				strings.Join(item.BlockedBy, ","),
			})
		}
		if err := formatter.PrintTable(
			[]string{"key", "team", "points", "completes", "confidence", "blocked by"}, rows); err != nil {
			return err
		}
		if ip.Value != nil && !ip.Value.DeliversValue {
			for _, reason := range ip.Value.Reasons {
				fmt.Fprintf(out, "  value at risk: %s\n", reason)
			}
		}
		fmt.Fprintln(out)
	}

	if len(plan.Unallocated) > 0 {
		fmt.Fprintf(out, "Unallocated (%d items)\n", len(plan.Unallocated))
		rows := make([][]string, 0, len(plan.Unallocated))
		for _, un := range plan.Unallocated {
			rows = append(rows, []string{
				un.Key,
				fmt.Sprintf("%d", un.Points),
				string(un.Reason),
				un.Suggestion,
			})
		}
		if err := formatter.PrintTable([]string{"key", "points", "reason", "suggestion"}, rows); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	renderReadinessText(out, plan.Readiness)

	for _, w := range plan.Warnings {
		fmt.Fprintf(out, "warning [%s] %s %s\n", w.Stage, w.ItemKey, w.Message)
	}

	if plan.Readiness.IsReady {
		return formatter.PrintSuccess(fmt.Sprintf("plan is ready (%.0f%% overall)", plan.Readiness.Overall*100))
	}
	return formatter.PrintError(fmt.Sprintf("plan is not ready (%.0f%% overall)", plan.Readiness.Overall*100))
}

func renderReadinessText(out io.Writer, r *assess.ReadinessResult) {
	fmt.Fprintln(out, "Readiness")
	for _, cat := range assess.Categories() {
		fmt.Fprintf(out, "  %-24s %.2f\n", cat, r.CategoryScores[cat])
	}
	fmt.Fprintf(out, "  %-24s %.2f\n", "overall", r.Overall)

	for _, b := range r.CriticalBlockers {
		fmt.Fprintf(out, "  blocker [%s] %s", b.Category, b.Description)
		if len(b.ItemKeys) > 0 {
			fmt.Fprintf(out, " (%s)", strings.Join(b.ItemKeys, ", "))
		}
		fmt.Fprintln(out)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(out, "  recommend [%s] %s: %s\n", rec.Category, rec.Action, rec.Detail)
	}
	fmt.Fprintln(out)
}
