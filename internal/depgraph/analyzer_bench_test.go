package depgraph

import (
	"context"
	"fmt"
	"testing"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
)

// benchBacklog builds n stories where every third item references its
// predecessor, so the pair scan finds a realistic mix of hits and misses.
func benchBacklog(n int) []backlog.WorkItem {
	items := make([]backlog.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		desc := "standalone implementation work with no external coupling"
		if i > 0 && i%3 == 0 {
			desc = fmt.Sprintf("Depends on BENCH-%d for the shared schema migration", i-1)
		}
		items = append(items, backlog.WorkItem{
			Key:         fmt.Sprintf("BENCH-%d", i),
			Kind:        backlog.KindStory,
			Title:       fmt.Sprintf("Story %d", i),
			Description: desc,
			Points:      1 + i%8,
		})
	}
	return items
}

func BenchmarkAnalyze(b *testing.B) {
	for _, n := range []int{25, 100} {
		b.Run(fmt.Sprintf("items_%d", n), func(b *testing.B) {
			items := benchBacklog(n)
			a := NewAnalyzer(DefaultAnalyzerConfig(), nil)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := a.Analyze(ctx, items); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkKeyMentionOffsets(b *testing.B) {
	text := "the checkout flow depends on bench-41 and needs bench-7 while bench-412 stays unrelated"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		keyMentionOffsets(text, "bench-41")
	}
}
