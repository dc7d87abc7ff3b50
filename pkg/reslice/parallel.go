package reslice

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor calls fn for every row in [0, rows) using at most workers
// goroutines. Each worker takes a contiguous block of rows, so callers that
// write only their own rows need no locking. Cancellation of ctx is observed
// between rows; the first error stops the remaining blocks.
func ParallelFor(ctx context.Context, workers, rows int, fn func(row int) error) error {
	if rows <= 0 {
		return ctx.Err()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// a few blocks per worker keeps the tail short when rows differ in cost
	blocks := min(rows, workers*4)
	rowsPerBlock := (rows + blocks - 1) / blocks

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < rows; start += rowsPerBlock {
		start := start
		end := min(start+rowsPerBlock, rows)
		g.Go(func() error {
			for row := start; row < end; row++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(row); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
