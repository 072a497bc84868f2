// Package workerpool bounds the number of goroutines running account jobs
// at once.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("worker pool is closed")

// Pool runs submitted jobs on a fixed set of workers. Submit blocks while
// every worker is busy, so a burst of accounts never fans out unbounded.
type Pool struct {
	logger *zap.Logger
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a pool running at most maxWorkers jobs concurrently.
func New(maxWorkers int, logger *zap.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		logger: logger,
		sem:    make(chan struct{}, maxWorkers),
	}
}

// Submit schedules fn. It blocks until a worker is free or ctx ends.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("worker panic recovered", zap.Any("panic", r))
			}
			<-p.sem
			p.wg.Done()
		}()
		fn(ctx)
	}()
	return nil
}

// Wait blocks until every submitted job finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close rejects further submissions and waits for running jobs.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
