package whirl

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultQueueTimeout is the put/get timeout applied when none is configured.
const DefaultQueueTimeout = time.Second

// Registry owns the named queues a pipeline communicates through, plus one
// uniform timeout applied to every Put and Get issued through it. It is
// created by the controller and shared (never copied) by every worker.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	queues  map[string]*ring[any]
	timeout time.Duration
}

// NewRegistry creates an empty registry. A timeout <= 0 falls back to
// DefaultQueueTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultQueueTimeout
	}
	return &Registry{
		queues:  make(map[string]*ring[any]),
		timeout: timeout,
	}
}

// Timeout returns the uniform put/get timeout.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// AddQueue creates the queue name if absent; adding an existing name is a
// no-op, never an error. Capacity 0 creates an effectively unbounded queue.
func (r *Registry) AddQueue(name string, capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.queues[name]; ok {
		return
	}
	r.queues[name] = newRing[any](capacity)
}

// CloseQueue releases the named queue and discards its pending items.
// Closing an unknown name is a no-op. Further Put/Get against the name
// fail with ErrQueueNotExists.
func (r *Registry) CloseQueue(name string) {
	r.mu.Lock()
	q, ok := r.queues[name]
	if ok {
		delete(r.queues, name)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	q.close()
	for {
		if _, ok := q.tryGet(); !ok {
			return
		}
	}
}

// CloseAllQueues releases every queue in the registry.
func (r *Registry) CloseAllQueues() {
	r.mu.RLock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.CloseQueue(name)
	}
}

// QueueSize returns the current depth of the named queue, or 0 for an
// unknown name. The value is racy by nature: it is a polling heuristic
// for drain loops, never a correctness gate.
func (r *Registry) QueueSize(name string) int {
	q, ok := r.lookup(name)
	if !ok {
		return 0
	}
	return q.len()
}

// Put enqueues value on the named queue, waiting up to the registry
// timeout for capacity. It fails with ErrQueueNotExists for an
// unregistered name and ErrQueueTimeout if the queue stayed full.
func (r *Registry) Put(name string, value any) error {
	q, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("put %q: %w", name, ErrQueueNotExists)
	}

	if err := q.put(value, r.timeout); err != nil {
		if errors.Is(err, errQueueClosed) {
			return fmt.Errorf("put %q: %w", name, ErrQueueNotExists)
		}
		return fmt.Errorf("put %q: %w", name, err)
	}
	return nil
}

// Get dequeues one item from the named queue, waiting up to the registry
// timeout. It fails with ErrQueueNotExists for an unregistered name and
// ErrQueueTimeout if the queue stayed empty.
func (r *Registry) Get(name string) (any, error) {
	q, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("get %q: %w", name, ErrQueueNotExists)
	}

	value, err := q.get(r.timeout)
	if err != nil {
		if errors.Is(err, errQueueClosed) {
			return nil, fmt.Errorf("get %q: %w", name, ErrQueueNotExists)
		}
		return nil, fmt.Errorf("get %q: %w", name, err)
	}
	return value, nil
}

func (r *Registry) lookup(name string) (*ring[any], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}
