// Package fsgate bounds the number of goroutines blocked in filesystem
// calls at once.
package fsgate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate limits concurrent filesystem operations. A nil Gate, or one
// created with a limit of zero, never blocks.
type Gate struct {
	sem *semaphore.Weighted
}

// New creates a gate admitting at most limit concurrent operations.
// A limit <= 0 disables the bound.
func New(limit int) *Gate {
	if limit <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Do runs fn while holding one slot. It returns ctx.Err() without
// running fn if ctx is done before a slot frees up.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if g == nil || g.sem == nil {
		return fn()
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}
