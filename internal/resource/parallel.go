package resource

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// defaultConcurrency bounds parallel resource creation. The ceiling is
// small on purpose: each flow does its own polling, and the provider
// rate-limits the account as a whole.
const defaultConcurrency = 2

// InParallel invokes create once per parameter set concurrently,
// bounded by limit (or the default ceiling when limit is 0), and
// returns results in input order regardless of completion order.
//
// If a creation fails, the first error is returned after all scheduled
// work has finished, together with the partial results. No rollback is
// attempted; the caller must clean up the siblings that did succeed.
func InParallel[P, R any](ctx context.Context, limit int, create func(context.Context, P) (R, error), params []P) ([]R, error) {
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)

	results := make([]R, len(params))

	for i, p := range params {
		g.Go(func() error {
			r, err := create(ctx, p)
			if err != nil {
				return err
			}

			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

// NInParallel is InParallel for creation functions without parameters:
// it invokes create count times.
func NInParallel[R any](ctx context.Context, limit int, create func(context.Context) (R, error), count int) ([]R, error) {
	params := make([]struct{}, count)

	return InParallel(ctx, limit, func(ctx context.Context, _ struct{}) (R, error) {
		return create(ctx)
	}, params)
}
