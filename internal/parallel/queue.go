package parallel

import (
	"context"
	"errors"
)

// ErrExecutorClosed is returned by Submit after Destroy.
var ErrExecutorClosed = errors.New("parallel: executor closed")

// Future is the pending result of a submitted task.
type Future struct {
	task  Task
	value any
	err   error
	done  chan struct{}
}

// Wait blocks until the task finishes or the context is cancelled.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit enqueues a task onto the shared queue, which drains at the
// executor's queue concurrency. The returned future resolves when the task
// completes.
func (e *Executor) Submit(task Task) (*Future, error) {
	f := &Future{task: task, done: make(chan struct{})}
	select {
	case <-e.done:
		return nil, ErrExecutorClosed
	case e.submitCh <- f:
		return f, nil
	}
}

func (e *Executor) drain() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case f := <-e.submitCh:
			f.value, f.err = f.task(context.Background())
			close(f.done)
		}
	}
}

// Destroy stops the queue workers. Futures not yet started never resolve;
// callers should Destroy only at shutdown.
func (e *Executor) Destroy() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}
