package whirl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceGen pushes a fixed set of values into a named queue and terminates.
type sliceGen struct {
	*Unit
	dest string
	vals []int
}

func newSliceGen(dest string, vals ...int) *sliceGen {
	return &sliceGen{Unit: NewUnit(), dest: dest, vals: vals}
}

func (g *sliceGen) Run(ctx context.Context, queues *Registry) error {
	for _, v := range g.vals {
		for {
			err := queues.Put(g.dest, v)
			if err == nil {
				break
			}
			if !errors.Is(err, ErrQueueTimeout) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}

func noopWork(ctx context.Context, queues *Registry) error {
	time.Sleep(time.Millisecond)
	return nil
}

func TestAddWorkerAssignsMonotonicIDs(t *testing.T) {
	c := New()

	assert.Equal(t, int64(1), c.AddWorker(NewFuncWorker(noopWork), "a"))
	assert.Equal(t, int64(2), c.AddWorker(NewFuncWorker(noopWork), "a"))
	assert.Equal(t, int64(3), c.AddWorker(NewFuncWorker(noopWork), "b"))
}

func TestSelectorGranularities(t *testing.T) {
	w := NewFuncWorker(noopWork)

	assert.True(t, All().matches(w, "x", 1))

	assert.True(t, ByID(2, 3).matches(w, "x", 3))
	assert.False(t, ByID(2).matches(w, "x", 1))

	assert.True(t, ByTag("gen").matches(w, "gen", 9))
	assert.False(t, ByTag("gen").matches(w, "proc", 9))

	even := Where(func(w Worker, tag string, id int64) bool { return id%2 == 0 })
	assert.True(t, even.matches(w, "", 4))
	assert.False(t, even.matches(w, "", 5))

	assert.False(t, Selector{}.matches(w, "", 1))
}

func TestGeneratorLivenessAndDrain(t *testing.T) {
	c := New(WithQueueTimeout(200 * time.Millisecond))
	c.AddQueue("testq", 0)
	c.AddWorker(newSliceGen("testq", 1, 2, 3, 4, 5), "gen")

	c.StartWorkers(ByTag("gen"))

	deadline := time.Now().Add(5 * time.Second)
	for c.Alive(ByTag("gen")) {
		require.False(t, time.Now().After(deadline), "generator did not terminate")
		time.Sleep(2 * time.Millisecond)
	}

	var drained int
	for {
		_, err := c.Get("testq")
		if err != nil {
			require.ErrorIs(t, err, ErrQueueTimeout)
			break
		}
		drained++
	}
	assert.Equal(t, 5, drained)

	require.NoError(t, c.Shutdown(time.Second))
}

func TestSoftCloseTerminatesLongRunner(t *testing.T) {
	c := New(WithQueueTimeout(50 * time.Millisecond))
	id := c.AddWorker(NewFuncWorker(func(ctx context.Context, q *Registry) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}), "loop")

	c.StartWorkers(ByID(id))
	assert.True(t, c.Alive(ByID(id)))

	c.CloseWorkers(ByID(id))
	require.NoError(t, c.Wait(ByID(id), 2*time.Second))
	assert.False(t, c.Alive(ByID(id)))
}

func TestAliveBeforeStartIsFalse(t *testing.T) {
	c := New()
	c.AddWorker(NewFuncWorker(noopWork), "idle")
	assert.False(t, c.Alive(All()))
}

func TestStartWorkersByTagStartsOnlyMatching(t *testing.T) {
	c := New(WithQueueTimeout(20 * time.Millisecond))
	idA := c.AddWorker(NewFuncWorker(noopWork), "a")
	idB := c.AddWorker(NewFuncWorker(noopWork), "b")

	c.StartWorkers(ByTag("a"))
	assert.True(t, c.Alive(ByID(idA)))
	assert.False(t, c.Alive(ByID(idB)))

	c.CloseWorkers(All())
	require.NoError(t, c.Wait(All(), 2*time.Second))
	assert.False(t, c.Alive(All()))
}

func TestWaitTimesOutOnDeafWorker(t *testing.T) {
	c := New(WithQueueTimeout(20 * time.Millisecond))
	id := c.AddWorker(NewFuncWorker(noopWork, WithoutSignalQueue()), "deaf")

	c.StartWorkers(All())
	require.ErrorIs(t, c.Wait(ByID(id), 50*time.Millisecond), ErrWaitTimeout)

	// Soft close cannot reach a worker without a signal queue; the bounded
	// wait expires and context cancellation finishes the job.
	require.ErrorIs(t, c.Shutdown(50*time.Millisecond), ErrWaitTimeout)
	require.NoError(t, c.Wait(ByID(id), 2*time.Second))
}

func TestShutdownIdempotent(t *testing.T) {
	c := New()
	require.NoError(t, c.Shutdown(100*time.Millisecond))
	require.Error(t, c.Shutdown(100*time.Millisecond))
}

func TestCleanupWorkersDrainsSignalQueues(t *testing.T) {
	c := New()
	w := NewFuncWorker(noopWork)
	c.AddWorker(w, "x")

	require.True(t, w.Deliver(SoftClose))
	c.CleanupWorkers(All())

	w.ProcessSignals()
	assert.False(t, w.CloseRequested())
}

func TestControllerQueueDelegation(t *testing.T) {
	c := New(WithQueueTimeout(50 * time.Millisecond))
	c.AddQueue("q", 0)

	require.NoError(t, c.Put("q", "v"))
	assert.Equal(t, 1, c.QueueSize("q"))

	v, err := c.Get("q")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	c.CloseQueue("q")
	require.ErrorIs(t, c.Put("q", "v"), ErrQueueNotExists)

	assert.Same(t, c.Queues(), c.Queues())
}
