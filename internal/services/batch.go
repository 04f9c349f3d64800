package services

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBatchWorkers = 8

// BatchResult summarises one periodic job run.
type BatchResult struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// runBatch applies fn to every id with bounded parallelism. fn reports whether it did
// work. A failing item is logged and counted; it never stops the rest of the batch.
func runBatch(ctx context.Context, job string, ids []int64, workers int, log *zap.Logger, fn func(ctx context.Context, id int64) (bool, error)) (BatchResult, error) {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}

	var processed, skipped, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range ids {
		if gCtx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			done, err := fn(gCtx, id)
			switch {
			case err != nil:
				failed.Add(1)
				log.Error("batch item failed", zap.String("job", job), zap.Int64("id", id), zap.Error(err))
			case done:
				processed.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	return BatchResult{
		Job:       job,
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}, err
}
