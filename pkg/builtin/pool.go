package builtin

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Scatter after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

type inPoolKey struct{}

// Pool bounds how many builtin tasks run at once across the whole
// process. Waiting acquirers of the semaphore form the task queue; each
// Scatter call is an errgroup whose first failure cancels its siblings.
type Pool struct {
	size   int64
	sem    *semaphore.Weighted
	closed atomic.Bool
}

// NewPool returns a pool running at most workers tasks concurrently.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{size: int64(workers), sem: semaphore.NewWeighted(int64(workers))}
}

// Size is the number of workers.
func (p *Pool) Size() int { return int(p.size) }

// Scatter runs task for every index in [0, n) and waits for all of them.
// Tasks must only write to state owned by their index. The first error
// cancels the context handed to the remaining tasks and is returned.
//
// A Scatter issued from inside a task runs sequentially on the calling
// goroutine, so nested parallel builtins cannot starve the pool.
func (p *Pool) Scatter(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if ctx.Value(inPoolKey{}) != nil {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := task(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	tctx := context.WithValue(gctx, inPoolKey{}, true)
	var stopErr error
	for i := 0; i < n; i++ {
		if err := p.sem.Acquire(gctx, 1); err != nil {
			stopErr = err
			break
		}
		if p.closed.Load() {
			p.sem.Release(1)
			stopErr = ErrPoolClosed
			break
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return task(tctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return stopErr
}

// Close stops the pool from accepting work and waits for running tasks
// to drain. It is safe to call more than once.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.sem.Acquire(context.Background(), p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	return nil
}
