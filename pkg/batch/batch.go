// Package batch provides a bounded-concurrency driver for applying an
// asynchronous transform across a sequence of inputs.
//
// Inputs are processed in chunks: up to the concurrency limit of calls run
// at once, and a chunk fully settles before the next one starts. Results
// keep input order regardless of per-call completion order, and the first
// failure aborts the whole run.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lberndt/npmharvest/pkg/errors"
)

// Run applies fn to every element of inputs with at most limit calls in
// flight at any instant. Each call may yield several results; the per-input
// result slices are flattened into one slice that preserves input order.
//
// A limit of zero or less runs fully sequentially. An empty input returns
// an empty result without invoking fn. The inputs slice is never modified.
//
// If any call fails, Run returns the first failure wrapped with the index
// of the offending input and discards all results, including those from
// chunks that already completed. Remaining chunks are not started.
func Run[T, R any](ctx context.Context, inputs []T, limit int, fn func(context.Context, T) ([]R, error)) ([]R, error) {
	if limit < 1 {
		limit = 1
	}
	if len(inputs) == 0 {
		return []R{}, nil
	}

	chunked := make([][]R, len(inputs))

	for start := 0; start < len(inputs); start += limit {
		end := min(start+limit, len(inputs))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				out, err := fn(gctx, inputs[i])
				if err != nil {
					return errors.Wrap(errors.ErrCodeBatch, err, "job %d of %d", i+1, len(inputs))
				}
				chunked[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var flat []R
	for _, out := range chunked {
		flat = append(flat, out...)
	}
	if flat == nil {
		flat = []R{}
	}
	return flat, nil
}

// Map is a convenience wrapper around [Run] for transforms that produce
// exactly one result per input.
func Map[T, R any](ctx context.Context, inputs []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	return Run(ctx, inputs, limit, func(ctx context.Context, in T) ([]R, error) {
		out, err := fn(ctx, in)
		if err != nil {
			var zero []R
			return zero, err
		}
		return []R{out}, nil
	})
}
