package whirl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Signal is the control alphabet carried on a unit's private signal queue.
// It is a dedicated type so control traffic can never collide with
// application payloads travelling through named queues.
type Signal uint8

// SoftClose requests cooperative termination of a worker unit.
const SoftClose Signal = 1

const defaultSignalBuffer = 4

// Worker is one independently scheduled unit of work under a controller.
// Implementations embed *Unit for the signal/result plumbing and provide
// their own Run loop.
type Worker interface {
	// Run is the unit's entry point; the shared registry is handed over
	// here, never stored before the unit runs. Implementations must loop
	// while the soft-close flag is unset and call ProcessSignals at least
	// once per iteration so shutdown latency stays bounded by one
	// iteration's work plus the poll cost.
	Run(ctx context.Context, queues *Registry) error

	// Deliver performs a single non-blocking send on the unit's signal
	// queue. It reports false when the unit has no signal queue or the
	// queue is momentarily full; delivery is best-effort, at-most-once,
	// never retried.
	Deliver(s Signal) bool

	// Cleanup drains the unit's private queues so nothing pins payloads
	// after termination. Safe to call after Run has returned.
	Cleanup()
}

type unitConfig struct {
	signalBuffer int
	resultBuffer int
	noSignals    bool
	limiter      *rate.Limiter
}

// UnitOption is a functional option configuring a worker unit.
type UnitOption func(*unitConfig)

// WithSignalBuffer sets the private signal queue's capacity.
// Defaults to a small buffer when not specified.
func WithSignalBuffer(n int) UnitOption {
	return func(cfg *unitConfig) {
		if n > 0 {
			cfg.signalBuffer = n
		}
	}
}

// WithoutSignalQueue builds a unit with no signal queue. Such a unit can
// never be soft-closed; it terminates on its own or with its context.
func WithoutSignalQueue() UnitOption {
	return func(cfg *unitConfig) {
		cfg.noSignals = true
	}
}

// WithResultQueue equips the unit with a private result queue of the given
// capacity (minimum 1). Units without one must write their output into a
// named shared queue instead.
func WithResultQueue(n int) UnitOption {
	return func(cfg *unitConfig) {
		if n < 1 {
			n = 1
		}
		cfg.resultBuffer = n
	}
}

// WithRateLimit throttles a FuncWorker's loop to perSecond iterations with
// the given burst. Useful when the worker calls out to external services.
func WithRateLimit(perSecond float64, burst int) UnitOption {
	return func(cfg *unitConfig) {
		if perSecond > 0 && burst > 0 {
			cfg.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// Unit is the embeddable base of every worker: an optional private signal
// queue (present by default), an optional private result queue (absent by
// default) and the sticky soft-close flag. The flag is mutated only by the
// unit's own ProcessSignals step, never by the controller directly.
type Unit struct {
	signals chan Signal
	results chan any
	limiter *rate.Limiter
	closing bool
}

// NewUnit builds a unit base according to the given options.
func NewUnit(opts ...UnitOption) *Unit {
	cfg := &unitConfig{signalBuffer: defaultSignalBuffer}
	for _, opt := range opts {
		opt(cfg)
	}

	u := &Unit{limiter: cfg.limiter}
	if !cfg.noSignals {
		u.signals = make(chan Signal, cfg.signalBuffer)
	}
	if cfg.resultBuffer > 0 {
		u.results = make(chan any, cfg.resultBuffer)
	}
	return u
}

// ProcessSignals performs one near-zero-wait poll of the signal queue.
// Observing SoftClose sets the closing flag permanently; it is never
// cleared.
func (u *Unit) ProcessSignals() {
	if u.signals == nil {
		return
	}
	select {
	case s := <-u.signals:
		if s == SoftClose {
			u.closing = true
		}
	default:
	}
}

// CloseRequested reports whether a soft-close was observed by a previous
// ProcessSignals call. Only the unit's own goroutine may call it.
func (u *Unit) CloseRequested() bool {
	return u.closing
}

// Deliver implements Worker.
func (u *Unit) Deliver(s Signal) bool {
	if u.signals == nil {
		return false
	}
	select {
	case u.signals <- s:
		return true
	default:
		return false
	}
}

// PushResult places v on the private result queue without blocking.
// It reports false when the unit has no result queue or it is full.
func (u *Unit) PushResult(v any) bool {
	if u.results == nil {
		return false
	}
	select {
	case u.results <- v:
		return true
	default:
		return false
	}
}

// TakeResult waits up to timeout for a value on the private result queue.
// It fails with ErrQueueNotExists when the unit has no result queue and
// ErrQueueTimeout when nothing arrived in time.
func (u *Unit) TakeResult(timeout time.Duration) (any, error) {
	if u.results == nil {
		return nil, fmt.Errorf("take result: %w", ErrQueueNotExists)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-u.results:
		return v, nil
	case <-timer.C:
		return nil, fmt.Errorf("take result: %w", ErrQueueTimeout)
	}
}

// Cleanup implements Worker: it drains both private queues.
func (u *Unit) Cleanup() {
	if u.signals != nil {
		for drained := false; !drained; {
			select {
			case <-u.signals:
			default:
				drained = true
			}
		}
	}
	if u.results != nil {
		for drained := false; !drained; {
			select {
			case <-u.results:
			default:
				drained = true
			}
		}
	}
}
