// Package pipeline holds the fan-out, failure and run-report helpers shared
// by every stage.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Settle runs task for every index in [0, n) with at most limit running at
// once (limit <= 0 means unbounded). Every task runs to completion: a failing
// task never cancels its siblings. Outcomes are returned in index order so the
// caller can reduce them deterministically.
func Settle[T any](ctx context.Context, limit, n int, task func(ctx context.Context, i int) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], n)

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range n {
		g.Go(func() error {
			v, err := task(ctx, i)
			outcomes[i] = Outcome[T]{Value: v, Err: err}
			return nil // don't abort batch on individual failure
		})
	}
	_ = g.Wait()

	return outcomes
}
