package whirl

import "errors"

var (
	// ErrQueueNotExists reports an operation against a queue name that was
	// never registered (or was already closed). This is a configuration or
	// logic bug in the caller, never a transient condition.
	ErrQueueNotExists = errors.New("queue does not exist")

	// ErrQueueTimeout reports that a queue stayed full (on put) or empty
	// (on get) for the whole registry timeout window. Producers and
	// consumers are expected to catch it and retry, switch queues, or
	// terminate; it is routine flow control, not a fault.
	ErrQueueTimeout = errors.New("queue operation timed out")

	// ErrWaitTimeout reports that Wait or Shutdown gave up before every
	// selected worker terminated.
	ErrWaitTimeout = errors.New("timeout reached while waiting for workers")
)

// errQueueClosed marks operations on a ring that was already released.
// The registry translates it to ErrQueueNotExists before it reaches callers.
var errQueueClosed = errors.New("queue is closed")
