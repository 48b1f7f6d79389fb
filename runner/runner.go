// Package runner executes sync engine sagas off the request path on a
// bounded worker pool. The pool bound caps outbound concurrency against the
// remote store; excess work queues instead of spawning goroutines.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrDraining  = errors.New("task runner is shutting down")
	ErrQueueFull = errors.New("task queue is full")
)

type Task func(ctx context.Context) (interface{}, error)

// Future is the caller's handle on a submitted task. Await it with a
// timeout for interactive flows; ignore it for fire-and-forget.
type Future struct {
	done   chan struct{}
	result interface{}
	err    error
	cancel context.CancelFunc
}

// Await blocks until the task resolves or the timeout passes. The third
// return reports whether the task completed; on timeout the task keeps
// running in the background.
func (f *Future) Await(timeout time.Duration) (interface{}, error, bool) {
	select {
	case <-f.done:
		return f.result, f.err, true
	case <-time.After(timeout):
		return nil, nil, false
	}
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result is only valid after Done is closed.
func (f *Future) Result() (interface{}, error) {
	return f.result, f.err
}

// Cancel signals the task's context. Sagas honor this only before their
// remote-commit step; afterwards they run to completion.
func (f *Future) Cancel() {
	f.cancel()
}

type job struct {
	task   Task
	future *Future
	ctx    context.Context
}

type Runner struct {
	queue chan *job
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts workers goroutines draining a queue of queueSize slots.
func New(workers, queueSize int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	r := &Runner{queue: make(chan *job, queueSize)}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).Msg("Task panicked")
					j.future.err = errors.New("task panicked")
				}
				close(j.future.done)
				j.future.cancel()
			}()
			j.future.result, j.future.err = j.task(j.ctx)
		}()
	}
}

// Submit enqueues a task and returns its future. Fails fast when the queue
// is full or the runner is draining.
func (r *Runner) Submit(task Task) (*Future, error) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Future{done: make(chan struct{}), cancel: cancel}
	j := &job{task: task, future: f, ctx: ctx}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		cancel()
		return nil, ErrDraining
	}
	select {
	case r.queue <- j:
		return f, nil
	default:
		cancel()
		return nil, ErrQueueFull
	}
}

// Shutdown stops accepting new tasks and waits for in-flight ones to
// finish, up to timeout.
func (r *Runner) Shutdown(timeout time.Duration) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("task runner drain timed out")
	}
}
