package worker

import (
	"context"
	"sync"
)

// Pool runs submitted funcs on at most size goroutines. Submit blocks when
// the pool is saturated so callers apply natural backpressure.
type Pool struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewPool builds a pool with the given concurrency. Size below one is
// clamped to one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Submit runs job on a pool goroutine, blocking until a slot frees up or ctx
// is done. The job receives ctx unchanged.
func (p *Pool) Submit(ctx context.Context, job func(context.Context)) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.slots
			p.wg.Done()
		}()
		job(ctx)
	}()
	return nil
}

// Wait blocks until every accepted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
