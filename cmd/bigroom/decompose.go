package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ByBren-LLC/bigroom/cmd/bigroom/internal"
	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/decompose"
	"github.com/ByBren-LLC/bigroom/internal/planner"
)

var decomposeItemKey string

var decomposeCmd = &cobra.Command{
	Use:   "decompose <backlog.yaml>",
	Short: "Split oversized stories into iteration-sized sub-items",
	Long: `Decompose splits every story above the configured point maximum into
sub-items that conserve the parent's points and distribute its
acceptance criteria. Use --item to split one specific story instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecompose,
}

func init() {
	decomposeCmd.Flags().StringVar(&decomposeItemKey, "item", "", "Decompose only the item with this key")
}

func runDecompose(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument(args[0])
	if err != nil {
		return err
	}

	targets := backlog.Oversized(doc.Items, appConfig.Decomposition.MaxPoints)
	if decomposeItemKey != "" {
		targets = nil
		for _, item := range doc.Items {
			if item.Key == decomposeItemKey {
				targets = []backlog.WorkItem{item}
			}
		}
		if len(targets) == 0 {
			return internal.NewCLIError(internal.ExitBacklogError,
				fmt.Sprintf("item %s is not in %s", decomposeItemKey, args[0]))
		}
	}

	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if len(targets) == 0 {
		return formatter.PrintSuccess(fmt.Sprintf("no items above %d points; nothing to decompose",
			appConfig.Decomposition.MaxPoints))
	}

	engine := planner.New(planner.WithLogger(appLogger))
	results := make([]*decompose.Result, 0, len(targets))
	for _, item := range targets {
		result, err := engine.DecomposeStory(cmd.Context(), item, appConfig.Decomposition)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	if globalFlags.GetOutputFormat() != internal.FormatText {
		return formatter.PrintStruct(results)
	}

	out := cmd.OutOrStdout()
	for _, result := range results {
		fmt.Fprintf(out, "%s (%d points) -> %d sub-items\n",
			result.Parent.Key, result.Parent.Points, len(result.SubItems))
		rows := make([][]string, 0, len(result.SubItems))
		for _, sub := range result.SubItems {
			rows = append(rows, []string{
				sub.Key,
				fmt.Sprintf("%d", sub.Points),
				fmt.Sprintf("%d", len(sub.AcceptanceCriteria)),
			})
		}
		if err := formatter.PrintTable([]string{"key", "points", "criteria"}, rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n\n", result.Rationale)
	}
	return nil
}
