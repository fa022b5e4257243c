// Package worker runs blocking calls off the caller's goroutine with a bound
// on how many run at once.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Go after Close.
var ErrClosed = errors.New("worker pool closed")

const maxSize = 128

// Pool limits concurrent tasks.
type Pool struct {
	sem *semaphore.Weighted
	log *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a pool with at least one and at most 128 slots.
func New(size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if size > maxSize {
		size = maxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), log: logger.Named("worker")}
}

// Go runs task on its own goroutine once a slot is free. If ctx is canceled
// before a slot frees up the task is skipped.
func (p *Pool) Go(ctx context.Context, task func(context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.log.Debug("task skipped", zap.Error(err))
			return
		}
		defer p.sem.Release(1)
		task(ctx)
	}()
	return nil
}

// Close stops accepting tasks and waits for the running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
