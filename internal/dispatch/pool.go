// Package dispatch runs background work that must outlive the HTTP request
// which scheduled it.
package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Task func(ctx context.Context)

// Pool runs at most a fixed number of tasks at once. Submit never blocks;
// callers decide what to do when every slot is busy.
type Pool struct {
	group errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool{}
	p.group.SetLimit(workers)
	return p
}

// Submit starts task under a context that keeps ctx's values but not its
// cancellation. Returns false when every slot is busy or the pool is shut down.
func (p *Pool) Submit(ctx context.Context, name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	detached := context.WithoutCancel(ctx)
	return p.group.TryGo(func() error {
		runSafe(detached, name, task)
		return nil
	})
}

// Shutdown stops accepting work and waits for running tasks to finish or ctx
// to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runSafe(ctx context.Context, name string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in background task",
				"task", name,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	task(ctx)
}
