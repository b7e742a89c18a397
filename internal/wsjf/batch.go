package wsjf

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// BatchResult carries the outcome of scoring a set of work items.
// Scored is ordered by item key; Errors holds one entry per item that
// failed, tagged with its key.
type BatchResult struct {
	Scored []ScoredStory        `json:"scored"`
	Errors []*types.EngineError `json:"errors,omitempty"`
}

// Failed reports whether any item in the batch failed to score.
func (b *BatchResult) Failed() bool {
	return len(b.Errors) > 0
}

// MaxWSJF returns the largest WSJF score in the batch, zero when
// nothing scored.
func (b *BatchResult) MaxWSJF() float64 {
	max := 0.0
	for _, s := range b.Scored {
		if s.WSJF > max {
			max = s.WSJF
		}
	}
	return max
}

// ScoreBatch scores every item in parallel. Items missing from raw
// fall back to scores derived from the item itself. One item's
// scoring error never aborts the rest; after scoring, Priority is
// normalized so the batch maximum maps to 100.
func (c *Calculator) ScoreBatch(ctx context.Context, items []backlog.WorkItem, raw map[string]RawScores) (*BatchResult, error) {
	scored := make([]*ScoredStory, len(items))
	failures := make([]*types.EngineError, len(items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i := range items {
		i := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			in, ok := raw[items[i].Key]
			if !ok {
				in = DeriveRawScores(items[i], 0)
			}

			s, err := c.Score(items[i], in)
			if err != nil {
				var engErr *types.EngineError
				if errors.As(err, &engErr) && !engErr.Fatal {
					failures[i] = engErr.WithItem(items[i].Key)
					return nil
				}
				return err
			}
			scored[i] = &s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchResult{}
	for i := range items {
		if scored[i] != nil {
			batch.Scored = append(batch.Scored, *scored[i])
		}
		if failures[i] != nil {
			batch.Errors = append(batch.Errors, failures[i])
		}
	}

	normalizePriority(batch.Scored)
	sort.Slice(batch.Scored, func(a, b int) bool {
		return batch.Scored[a].Key < batch.Scored[b].Key
	})

	c.logger.Debug("scored batch",
		"items", len(items),
		"scored", len(batch.Scored),
		"failed", len(batch.Errors),
		"max_wsjf", batch.MaxWSJF())

	return batch, nil
}

// normalizePriority maps WSJF scores onto 0-100 with the batch
// maximum pinned at 100.
func normalizePriority(scored []ScoredStory) {
	max := 0.0
	for _, s := range scored {
		if s.WSJF > max {
			max = s.WSJF
		}
	}
	if max <= 0 {
		return
	}
	for i := range scored {
		scored[i].Priority = scored[i].WSJF / max * 100
	}
}
