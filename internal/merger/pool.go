package merger

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how much CPU-heavy document work runs at once across all jobs.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool with n slots, or one per CPU when n <= 0.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n)), size: n}
}

func (p *Pool) Size() int { return p.size }

// Do runs fn once a slot is free. It returns ctx.Err() if ctx ends first.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
