package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByBren-LLC/bigroom/cmd/bigroom/internal"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <backlog.yaml>",
	Short: "Detect dependencies across a backlog",
	Long: `Analyze scans every work item's text for dependency cues and prints
the detected relationship graph: edges with their confidence, any
cycles found, and the critical path through the hard constraints.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument(args[0])
	if err != nil {
		return err
	}

	analyzer := depgraph.NewAnalyzer(appConfig.Analysis, appLogger)
	graph, err := analyzer.Analyze(cmd.Context(), doc.Items)
	if err != nil {
		return err
	}

	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if globalFlags.GetOutputFormat() != internal.FormatText {
		return formatter.PrintStruct(graph)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d items, %d edges (%d hard), %d cycles\n\n",
		len(graph.Nodes), graph.Stats.EdgeCount, graph.Stats.HardCount, len(graph.Cycles))

	if len(graph.Edges) > 0 {
		rows := make([][]string, 0, len(graph.Edges))
		for _, e := range graph.Edges {
			rows = append(rows, []string{
				e.SourceKey,
				string(e.Type),
				e.TargetKey,
				string(e.Strength),
				fmt.Sprintf("%.2f", e.Confidence),
				string(e.Method),
			})
		}
		if err := formatter.PrintTable(
			[]string{"source", "type", "target", "strength", "confidence", "method"}, rows); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	for _, c := range graph.Cycles {
		state := "broken"
		if !c.IsBroken() {
			state = "unresolved"
		}
		fmt.Fprintf(out, "cycle (%s, %s): %s\n", c.Severity, state, strings.Join(c.Keys, " -> "))
	}
	if len(graph.CriticalPath) > 0 {
		fmt.Fprintf(out, "critical path: %s\n", strings.Join(graph.CriticalPath, " -> "))
	}
	return nil
}
