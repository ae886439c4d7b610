package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the worker count for per-transcript calls.
const DefaultConcurrency = 4

// forEach calls fn for every index in [0, n) with at most limit calls in
// flight. Each call's error lands in its own slot; one failure never stops
// the others. Indexes not yet started when ctx ends get ctx's error.
func forEach(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range n {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
