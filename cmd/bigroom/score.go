package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ByBren-LLC/bigroom/cmd/bigroom/internal"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
	"github.com/ByBren-LLC/bigroom/internal/planner"
	"github.com/ByBren-LLC/bigroom/internal/wsjf"
)

var scoreCmd = &cobra.Command{
	Use:   "score <backlog.yaml>",
	Short: "Rank a backlog by WSJF",
	Long: `Score computes Weighted Shortest Job First for every schedulable item
and prints the ranking. Score inputs are derived from each item's
stated value, urgency and risk cues, and its dependency fan-in; job
size grows with points, complexity, and coordination overhead.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument(args[0])
	if err != nil {
		return err
	}

	// Dependency counts feed the job-size denominator, so scoring
	// runs a dependency analysis first.
	graph, err := depgraph.NewAnalyzer(appConfig.Analysis, appLogger).Analyze(cmd.Context(), doc.Items)
	if err != nil {
		return err
	}
	prereqs := graph.Prerequisites()

	raw := make(map[string]wsjf.RawScores, len(doc.Items))
	for _, item := range doc.Items {
		raw[item.Key] = wsjf.DeriveRawScores(item, len(prereqs[item.Key]))
	}

	engine := planner.New(planner.WithLogger(appLogger))
	batch, err := engine.ScoreStories(cmd.Context(), doc.Items, raw, appConfig.Scoring.Thresholds)
	if err != nil {
		return err
	}

	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if globalFlags.GetOutputFormat() != internal.FormatText {
		return formatter.PrintStruct(batch)
	}

	ranked := append([]wsjf.ScoredStory(nil), batch.Scored...)
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].WSJF != ranked[b].WSJF {
			return ranked[a].WSJF > ranked[b].WSJF
		}
		return ranked[a].Key < ranked[b].Key
	})

	rows := make([][]string, 0, len(ranked))
	for _, s := range ranked {
		rows = append(rows, []string{
			s.Key,
			fmt.Sprintf("%d", s.Points),
			fmt.Sprintf("%.1f", s.BusinessValue),
			fmt.Sprintf("%.1f", s.TimeCriticality),
			fmt.Sprintf("%.1f", s.RiskReduction),
			fmt.Sprintf("%.1f", s.JobSize),
			fmt.Sprintf("%.2f", s.WSJF),
			string(s.Tier),
		})
	}
	if err := formatter.PrintTable(
		[]string{"key", "points", "value", "urgency", "risk", "job size", "wsjf", "tier"}, rows); err != nil {
		return err
	}

	for _, engErr := range batch.Errors {
		cmd.PrintErrf("skipped %s: %s\n", engErr.ItemKey, engErr.Message)
	}
	return nil
}
