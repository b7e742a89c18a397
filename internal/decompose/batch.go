package decompose

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// BatchResult carries the outcome of decomposing a set of work items.
// Results holds one entry per item that decomposed cleanly; Errors
// holds one entry per item that failed, each tagged with the item key.
type BatchResult struct {
	Results []Result             `json:"results"`
	Errors  []*types.EngineError `json:"errors,omitempty"`
}

// Failed reports whether any item in the batch failed to decompose.
func (b *BatchResult) Failed() bool {
	return len(b.Errors) > 0
}

// DecomposeBatch splits every oversized item in parallel. Per-item
// failures are collected in the result rather than aborting the batch;
// only context cancellation or an unexpected non-engine error stops
// the run early.
func (d *Decomposer) DecomposeBatch(ctx context.Context, items []backlog.WorkItem) (*BatchResult, error) {
	results := make([]*Result, len(items))
	failures := make([]*types.EngineError, len(items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i := range items {
		i := i
		g.Go(func() error {
			res, err := d.Decompose(gCtx, items[i])
			if err != nil {
				var engErr *types.EngineError
				if errors.As(err, &engErr) {
					failures[i] = engErr.WithItem(items[i].Key)
					return nil
				}
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchResult{}
	for i := range items {
		if results[i] != nil {
			batch.Results = append(batch.Results, *results[i])
		}
		if failures[i] != nil {
			batch.Errors = append(batch.Errors, failures[i])
		}
	}

	d.logger.Debug("batch decomposition finished",
		"items", len(items),
		"succeeded", len(batch.Results),
		"failed", len(batch.Errors))

	return batch, nil
}
