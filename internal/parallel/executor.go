// Package parallel provides a bounded-concurrency execution primitive for
// retrieval fan-out and batch operations. It is an internal building block:
// it must never be exposed as an ingress for remote input, and worker
// payloads only ever carry data plus a registered processor id.
package parallel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTimeout indicates a task exceeded the per-task deadline.
	ErrTimeout = errors.New("parallel: task timed out")
	// ErrAborted indicates a task was never started because an earlier task
	// failed with abort-on-error set.
	ErrAborted = errors.New("parallel: aborted")
	// ErrUnknownProcessor indicates a processor id with no registration.
	ErrUnknownProcessor = errors.New("parallel: unknown processor")
)

// Task is a unit of work.
type Task func(ctx context.Context) (any, error)

// Processor transforms one payload. Processors are registered once by id;
// worker execution resolves the id worker-side so no code ever crosses the
// boundary.
type Processor func(ctx context.Context, payload any) (any, error)

// Options control one execution.
type Options struct {
	// Timeout bounds each individual task. Zero means no per-task deadline.
	Timeout time.Duration
	// MaxConcurrent bounds simultaneously running tasks. Zero means 4.
	MaxConcurrent int
	// AbortOnError cancels in-flight work on the first failure and surfaces it.
	AbortOnError bool
	// UseWorkers isolates each payload: it is serialized, handed to a fresh
	// worker goroutine, and deserialized before the processor runs.
	UseWorkers bool
}

const defaultMaxConcurrent = 4

func (o Options) maxConcurrent() int {
	if o.MaxConcurrent <= 0 {
		return defaultMaxConcurrent
	}
	return o.MaxConcurrent
}

// Result is the outcome of a single task, reported in input order.
type Result struct {
	Index int
	Value any
	Err   error
}

// Executor runs tasks under a concurrency bound and drains a shared submit
// queue. Destroy stops the queue worker.
type Executor struct {
	logger *zap.Logger

	regMu      sync.RWMutex
	processors map[string]Processor

	submitCh chan *Future
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewExecutor creates an executor whose shared queue drains at queueWorkers
// concurrency.
func NewExecutor(queueWorkers int, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueWorkers <= 0 {
		queueWorkers = defaultMaxConcurrent
	}

	e := &Executor{
		logger:     logger,
		processors: make(map[string]Processor),
		submitCh:   make(chan *Future, 256),
		done:       make(chan struct{}),
	}
	for i := 0; i < queueWorkers; i++ {
		e.wg.Add(1)
		go e.drain()
	}
	return e
}

// RegisterProcessor adds a processor under a fresh id.
func (e *Executor) RegisterProcessor(id string, p Processor) error {
	if id == "" || p == nil {
		return fmt.Errorf("parallel: invalid processor registration")
	}
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if _, exists := e.processors[id]; exists {
		return fmt.Errorf("parallel: processor %q already registered", id)
	}
	e.processors[id] = p
	return nil
}

func (e *Executor) processor(id string) (Processor, error) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	p, ok := e.processors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcessor, id)
	}
	return p, nil
}

// Execute runs tasks under the concurrency bound and returns results in
// input order. With AbortOnError the first failure cancels in-flight work
// and is returned; tasks not yet started are marked ErrAborted and never run.
// Otherwise every task runs and failed slots carry their error.
func (e *Executor) Execute(ctx context.Context, tasks []Task, opts Options) ([]Result, error) {
	results := make([]Result, len(tasks))
	for i := range results {
		results[i].Index = i
	}
	if len(tasks) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.maxConcurrent())

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i].Err = ErrAborted
				return nil
			}
			value, err := runWithTimeout(gctx, task, opts.Timeout)
			results[i].Value = value
			results[i].Err = err
			if err != nil && opts.AbortOnError {
				return fmt.Errorf("task %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// ExecuteItems runs a registered processor over each item. With UseWorkers
// each payload crosses a serialization boundary into an isolated worker;
// only data and the processor id travel, never code.
func (e *Executor) ExecuteItems(ctx context.Context, items []any, processorID string, opts Options) ([]Result, error) {
	proc, err := e.processor(processorID)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, len(items))
	for i, item := range items {
		item := item
		if opts.UseWorkers {
			tasks[i] = isolatedTask(proc, item)
		} else {
			tasks[i] = func(ctx context.Context) (any, error) {
				return proc(ctx, item)
			}
		}
	}
	return e.Execute(ctx, tasks, opts)
}

// isolatedTask round-trips the payload through JSON so the worker sees a
// detached copy with no shared references.
func isolatedTask(proc Processor, payload any) Task {
	return func(ctx context.Context) (any, error) {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("parallel: serialize payload: %w", err)
		}
		var detached any
		if err := json.Unmarshal(raw, &detached); err != nil {
			return nil, fmt.Errorf("parallel: deserialize payload: %w", err)
		}

		type outcome struct {
			value any
			err   error
		}
		ch := make(chan outcome, 1)
		go func() {
			v, err := proc(ctx, detached)
			ch <- outcome{v, err}
		}()
		select {
		case o := <-ch:
			return o.value, o.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func runWithTimeout(ctx context.Context, task Task, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		return task(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := task(tctx)
		ch <- outcome{v, err}
	}()

	select {
	case o := <-ch:
		if errors.Is(o.err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return o.value, o.err
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, tctx.Err()
	}
}
