package whirl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option is a functional option configuring a Controller.
type Option func(*config)

type config struct {
	timeout time.Duration
	logger  *zap.Logger
}

// WithQueueTimeout sets the uniform timeout the registry applies to every
// Put and Get. Defaults to DefaultQueueTimeout.
func WithQueueTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithLogger sets the logger for lifecycle events (queue and worker
// add/start/close). The controller logs at debug level only and never
// logs errors it returns to callers. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// workerRecord ties a worker to its tag, its id and its liveness channel.
// done is closed when the worker's Run returns.
type workerRecord struct {
	worker  Worker
	tag     string
	id      int64
	started atomic.Bool
	done    chan struct{}
}

// Controller supervises a set of workers exchanging data through one
// shared queue registry. It assigns monotonically increasing worker ids,
// starts workers, requests cooperative (soft-close) termination, answers
// liveness queries and forwards queue operations to the registry.
//
// Workers must be registered before any of them is started; registering
// more workers after some have started, or starting a worker twice, is
// undefined and not defended against.
type Controller struct {
	mu      sync.RWMutex
	records []*workerRecord
	nextID  atomic.Int64

	queues *Registry

	ctx      context.Context
	cancel   context.CancelFunc
	g        *errgroup.Group
	shutdown atomic.Bool

	log *zap.Logger
}

// New creates a controller together with its queue registry.
func New(opts ...Option) *Controller {
	cfg := &config{
		timeout: DefaultQueueTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		queues: NewRegistry(cfg.timeout),
		ctx:    ctx,
		cancel: cancel,
		g:      new(errgroup.Group),
		log:    cfg.logger.With(zap.String("controller", uuid.NewString())),
	}
}

// Queues returns the shared registry handle. It lives as long as the
// controller and is the same handle every worker runs against.
func (c *Controller) Queues() *Registry {
	return c.queues
}

// AddWorker registers w under tag and returns its id. Ids start at 1,
// increase strictly and are never reused; tags are free-form grouping
// labels and need not be unique.
func (c *Controller) AddWorker(w Worker, tag string) int64 {
	id := c.nextID.Add(1)
	rec := &workerRecord{
		worker: w,
		tag:    tag,
		id:     id,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()

	c.log.Debug("worker added", zap.String("tag", tag), zap.Int64("id", id))
	return id
}

// StartWorkers launches every matching worker that has not been started
// yet, each in its own goroutine.
func (c *Controller) StartWorkers(sel Selector) {
	if c.shutdown.Load() {
		return
	}

	for _, rec := range c.selectRecords(sel) {
		if !rec.started.CompareAndSwap(false, true) {
			continue
		}

		c.g.Go(func() error {
			defer close(rec.done)
			err := rec.worker.Run(c.ctx, c.queues)
			c.log.Debug("worker terminated", zap.Int64("id", rec.id))
			return err
		})
		c.log.Debug("worker started", zap.String("tag", rec.tag), zap.Int64("id", rec.id))
	}
}

// CloseWorkers delivers one best-effort SoftClose to every matching
// worker. A drop (no signal queue, or a momentarily full one) is final:
// the signal is at-most-once and never retried.
func (c *Controller) CloseWorkers(sel Selector) {
	for _, rec := range c.selectRecords(sel) {
		if rec.worker.Deliver(SoftClose) {
			c.log.Debug("soft close delivered", zap.Int64("id", rec.id))
		} else {
			c.log.Debug("soft close dropped", zap.Int64("id", rec.id))
		}
	}
}

// Alive reports whether at least one matching worker is still running.
// It returns false only once every matching started worker has
// terminated; workers never started count as terminated.
func (c *Controller) Alive(sel Selector) bool {
	for _, rec := range c.selectRecords(sel) {
		if !rec.started.Load() {
			continue
		}
		select {
		case <-rec.done:
		default:
			return true
		}
	}
	return false
}

// Wait blocks until every matching started worker has terminated, or
// until timeout elapses (0 waits forever). It is the blocking complement
// to polling Alive.
func (c *Controller) Wait(sel Selector, timeout time.Duration) error {
	recs := c.selectRecords(sel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, rec := range recs {
			if !rec.started.Load() {
				continue
			}
			<-rec.done
		}
	}()

	return waitUntil(done, timeout)
}

// CleanupWorkers drains the private queues of every matching worker.
// Call it after the workers terminated to release whatever their signal
// and result queues still hold.
func (c *Controller) CleanupWorkers(sel Selector) {
	for _, rec := range c.selectRecords(sel) {
		rec.worker.Cleanup()
	}
}

// Shutdown tears the pipeline down: it soft-closes every worker, waits up
// to timeout (0 waits forever) for the started ones to finish, cancels
// their context and releases every named queue. The first error returned
// by a worker's Run, if any, is reported once all of them finished.
func (c *Controller) Shutdown(timeout time.Duration) error {
	if !c.shutdown.CompareAndSwap(false, true) {
		return errors.New("controller already shut down")
	}

	c.CloseWorkers(All())
	waitErr := c.Wait(All(), timeout)
	c.cancel()
	c.queues.CloseAllQueues()

	if waitErr != nil {
		return waitErr
	}
	return c.g.Wait()
}

func (c *Controller) selectRecords(sel Selector) []*workerRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*workerRecord
	for _, rec := range c.records {
		if sel.matches(rec.worker, rec.tag, rec.id) {
			out = append(out, rec)
		}
	}
	return out
}

// AddQueue delegates to the registry.
func (c *Controller) AddQueue(name string, capacity int) {
	c.queues.AddQueue(name, capacity)
	c.log.Debug("queue added", zap.String("queue", name), zap.Int("capacity", capacity))
}

// CloseQueue delegates to the registry.
func (c *Controller) CloseQueue(name string) {
	c.queues.CloseQueue(name)
	c.log.Debug("queue closed", zap.String("queue", name))
}

// CloseAllQueues delegates to the registry.
func (c *Controller) CloseAllQueues() {
	c.queues.CloseAllQueues()
	c.log.Debug("all queues closed")
}

// QueueSize delegates to the registry.
func (c *Controller) QueueSize(name string) int {
	return c.queues.QueueSize(name)
}

// Put delegates to the registry.
func (c *Controller) Put(name string, value any) error {
	return c.queues.Put(name, value)
}

// Get delegates to the registry.
func (c *Controller) Get(name string) (any, error) {
	return c.queues.Get(name)
}
