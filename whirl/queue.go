package whirl

import (
	"runtime"
	"sync/atomic"
	"time"
)

const (
	// Cache line size for padding to prevent false sharing
	cacheLinePadding = 128
	// Ring capacity used when a queue is created unbounded
	defaultRingCapacity = 65536
	// Maximum spin attempts before parking on a notification channel
	maxSpinAttempts = 10
)

// ringSlot represents a single slot in the ring buffer
type ringSlot[T any] struct {
	// Sequence number for synchronization
	sequence uint64
	// The actual data
	value T
	// Padding to prevent false sharing between slots
	_ [cacheLinePadding - 16]byte
}

// ring is a lock-free multi-producer multi-consumer queue with timed
// blocking on both ends. Producers park on spaceC when a bounded ring is
// full; consumers park on notifyC when it is empty. Both are buffered
// wake-up hints and are never closed; closeC is closed exactly once.
type ring[T any] struct {
	slots []ringSlot[T]
	// Capacity mask (ring size - 1) for fast modulo
	mask uint64

	// Head and tail positions with padding to prevent false sharing
	_    [cacheLinePadding]byte
	head uint64
	_    [cacheLinePadding - 8]byte
	tail uint64
	_    [cacheLinePadding - 8]byte

	closed atomic.Bool

	// Wakes one parked consumer after an enqueue
	notifyC chan struct{}
	// Wakes one parked producer after a dequeue
	spaceC chan struct{}
	// Closed on shutdown
	closeC chan struct{}

	bounded bool
	// Logical capacity; the ring itself is rounded up to a power of two,
	// the full check enforces this exact value
	capacity int
}

// newRing creates a queue with the given logical capacity.
// Capacity <= 0 creates an unbounded queue with the default ring size.
func newRing[T any](capacity int) *ring[T] {
	bounded := capacity > 0
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}

	size := nextPowerOfTwo(capacity)
	slots := make([]ringSlot[T], size)
	for i := range slots {
		slots[i].sequence = uint64(i)
	}

	return &ring[T]{
		slots:    slots,
		mask:     uint64(size - 1),
		bounded:  bounded,
		capacity: capacity,
		notifyC:  make(chan struct{}, 1),
		spaceC:   make(chan struct{}, 1),
		closeC:   make(chan struct{}),
	}
}

// put enqueues value, waiting up to timeout for space on a full ring.
// Returns ErrQueueTimeout if the ring stayed full for the whole window,
// errQueueClosed once the ring is released.
func (q *ring[T]) put(value T, timeout time.Duration) error {
	var timer *time.Timer
	spin := 0

	for {
		if q.closed.Load() {
			return errQueueClosed
		}

		head, tail, slot, diff := q.load(false)
		if diff < 0 || (q.bounded && tail-head >= uint64(q.capacity)) {
			if timer == nil {
				timer = time.NewTimer(timeout)
				defer timer.Stop()
			}
			select {
			case <-q.spaceC:
			case <-q.closeC:
				return errQueueClosed
			case <-timer.C:
				return ErrQueueTimeout
			}
			continue
		}

		if diff == 0 {
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				slot.value = value
				atomic.StoreUint64(&slot.sequence, tail+1)
				wake(q.notifyC)
				return nil
			}
			continue
		}

		spin++
		if spin > maxSpinAttempts {
			runtime.Gosched()
			spin = 0
		}
	}
}

// get dequeues one item, waiting up to timeout for a producer.
// Returns ErrQueueTimeout if the ring stayed empty for the whole window,
// errQueueClosed once the ring is released.
func (q *ring[T]) get(timeout time.Duration) (T, error) {
	var zero T
	var timer *time.Timer
	spin := 0

	for {
		if q.drained() {
			return zero, errQueueClosed
		}

		head, _, slot, diff := q.load(true)
		if diff == 0 {
			if value, ok := q.take(head, slot); ok {
				return value, nil
			}
			continue
		}

		spin++
		if spin < maxSpinAttempts {
			runtime.Gosched()
			continue
		}

		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-q.notifyC:
			spin = 0
		case <-q.closeC:
			return zero, errQueueClosed
		case <-timer.C:
			return zero, ErrQueueTimeout
		}
	}
}

// tryGet attempts one dequeue without blocking. It keeps working on a
// closed ring so pending items can be drained during release.
func (q *ring[T]) tryGet() (T, bool) {
	var zero T

	head, _, slot, diff := q.load(true)
	if diff == 0 {
		return q.take(head, slot)
	}

	return zero, false
}

func (q *ring[T]) take(head uint64, slot *ringSlot[T]) (T, bool) {
	var zero T
	if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
		value := slot.value
		slot.value = zero
		// Release the slot to producers
		// if head is N, next sequence should be N + ring size
		atomic.StoreUint64(&slot.sequence, head+q.mask+1)
		wake(q.spaceC)
		return value, true
	}
	return zero, false
}

// drained checks if the queue is closed and empty
func (q *ring[T]) drained() bool {
	if q.closed.Load() {
		head := atomic.LoadUint64(&q.head)
		tail := atomic.LoadUint64(&q.tail)
		if head >= tail {
			return true
		}
	}
	return false
}

// load atomically loads head and tail positions and the corresponding slot
// Also computes the difference between slot sequence and expected sequence
func (q *ring[T]) load(ishead bool) (head uint64, tail uint64, slot *ringSlot[T], diff int64) {
	head = atomic.LoadUint64(&q.head)
	tail = atomic.LoadUint64(&q.tail)

	pos := tail
	if ishead {
		pos = head
	}

	index := pos & q.mask
	slot = &q.slots[index]
	seq := atomic.LoadUint64(&slot.sequence)

	if ishead {
		diff = int64(seq) - int64(head+1)
	} else {
		diff = int64(seq) - int64(tail)
	}

	return
}

// len returns the approximate number of items in the queue.
// The value is advisory only: it is never synchronized with concurrent
// put/get and must not be used for correctness decisions.
func (q *ring[T]) len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)

	if tail > head {
		return int(tail - head)
	}
	return 0
}

// close marks the queue as closed; no new items can be enqueued after.
func (q *ring[T]) close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.closeC)
	}
}

// wake delivers one non-blocking wake-up hint.
func wake(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
