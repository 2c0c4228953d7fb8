package whirl

import (
	"context"
	"errors"
	"time"
)

// WorkFunc is one iteration of a stateless worker: a single attempt to
// read from, transform, or feed the shared queues. Returned errors are
// routine flow control (a queue timeout just means "nothing to do right
// now") and do not stop the worker's loop.
type WorkFunc func(ctx context.Context, queues *Registry) error

// FuncWorker is the stateless functional worker variant: it repeatedly
// invokes a user function against the shared registry until a soft-close
// arrives or its context is cancelled. It has a signal queue but no result
// queue; any output must be written into a named shared queue.
//
// The per-call work must be idempotent and context-free. Stateful
// aggregation belongs in a dedicated worker with a result queue, such as
// Collector.
type FuncWorker struct {
	*Unit
	fn WorkFunc
}

// NewFuncWorker builds a stateless worker around fn.
func NewFuncWorker(fn WorkFunc, opts ...UnitOption) *FuncWorker {
	return &FuncWorker{
		Unit: NewUnit(opts...),
		fn:   fn,
	}
}

// Run implements Worker.
func (w *FuncWorker) Run(ctx context.Context, queues *Registry) error {
	for !w.CloseRequested() {
		w.ProcessSignals()

		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// The loop only exits on soft-close or cancellation; per-call
		// failures are the function's own business.
		_ = w.fn(ctx, queues)
	}
	return nil
}

// Collector is the fan-in worker variant: it drains a named source queue
// into a local accumulator until the source runs dry after a soft-close,
// then pushes the accumulator onto its private result queue exactly once
// and terminates.
type Collector[T any] struct {
	*Unit
	source string
	acc    []T
}

// NewCollector builds a collector draining the named source queue.
// A result queue is always present.
func NewCollector[T any](source string, opts ...UnitOption) *Collector[T] {
	opts = append(opts, WithResultQueue(1))
	return &Collector[T]{
		Unit:   NewUnit(opts...),
		source: source,
	}
}

// Run implements Worker. A timed-out Get alone is not a reason to stop:
// producers may just be slow. The collector exits only when a Get times
// out after a soft-close was received, so a "probably empty" poll is
// always double-checked against the shutdown request.
func (c *Collector[T]) Run(ctx context.Context, queues *Registry) error {
	for {
		v, err := queues.Get(c.source)
		switch {
		case err == nil:
			if item, ok := v.(T); ok {
				c.acc = append(c.acc, item)
			}
		case errors.Is(err, ErrQueueTimeout):
			if c.CloseRequested() {
				c.PushResult(c.acc)
				return nil
			}
		default:
			// Source queue was closed underneath us; flush what was
			// gathered so far.
			c.PushResult(c.acc)
			return err
		}

		c.ProcessSignals()
		if err := ctx.Err(); err != nil {
			c.PushResult(c.acc)
			return err
		}
	}
}

// Result waits up to timeout for the collector's final accumulator.
func (c *Collector[T]) Result(timeout time.Duration) ([]T, error) {
	v, err := c.TakeResult(timeout)
	if err != nil {
		return nil, err
	}
	out, _ := v.([]T)
	return out, nil
}
