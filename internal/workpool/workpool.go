package workpool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Do after Stop has been called.
var ErrStopped = errors.New("workpool: stopped")

// Job is one unit of CPU-bound work.
type Job func()

type task struct {
	run  Job
	done chan struct{}
}

// Pool runs CPU-bound jobs on a fixed set of workers so stage goroutines
// never oversubscribe the host. Do blocks the caller until its job ran,
// which keeps the pipeline's own concurrency semantics intact.
type Pool struct {
	jobs    chan task
	stopped chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// New starts a pool with the given number of workers and queue slots.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	p := &Pool{
		jobs:    make(chan task, queueSize),
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopped:
			return
		case t := <-p.jobs:
			start := time.Now()
			t.run()
			jobDuration.Observe(time.Since(start).Seconds())
			close(t.done)
		}
	}
}

// Do runs job on a pool worker and blocks until it completes. If ctx ends
// first the call returns early; a job already queued may still execute, so
// callers must not touch its captured results after an error.
func (p *Pool) Do(ctx context.Context, job Job) error {
	t := task{run: job, done: make(chan struct{})}
	select {
	case p.jobs <- t:
		jobsTotal.Inc()
	case <-ctx.Done():
		jobsRejectedTotal.Inc()
		return ctx.Err()
	case <-p.stopped:
		return ErrStopped
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		select {
		case <-t.done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop shuts the workers down and waits for in-flight jobs. Queued jobs that
// never started are abandoned.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stopped) })
	p.wg.Wait()
}
