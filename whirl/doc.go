// Package whirl provides a small, controllable worker pool for data
// processing pipelines with non-linear topologies: fan-out generators,
// transform stages, fan-in collectors and feedback loops.
//
// Workers exchange data exclusively through a registry of named,
// capacity-bounded FIFO queues shared by every worker and the controller.
// A single Controller registers workers, starts them, requests graceful
// (soft-close) termination and checks liveness, individually, by group
// tag, or by arbitrary selection criteria.
//
// # Basic Usage
//
//	c := whirl.New(whirl.WithQueueTimeout(time.Second))
//	c.AddQueue("jobs", 0)
//	c.AddQueue("results", 0)
//
//	id := c.AddWorker(whirl.NewFuncWorker(func(ctx context.Context, q *whirl.Registry) error {
//	    v, err := q.Get("jobs")
//	    if err != nil {
//	        return err // timeouts are routine, the worker just tries again
//	    }
//	    return q.Put("results", transform(v))
//	}), "proc")
//
//	c.StartWorkers(whirl.All())
//	// ... feed "jobs", drain "results" ...
//	c.CloseWorkers(whirl.ByID(id))
//	_ = c.Wait(whirl.All(), 5*time.Second)
//	_ = c.Shutdown(5 * time.Second)
//
// # Queues
//
// Named queues are multi-producer/multi-consumer and safe for concurrent
// use. Every Put and Get issued through the registry waits up to one
// uniform, registry-wide timeout; ErrQueueTimeout is the universal
// "try again / switch strategy" signal, never a hard fault. A capacity of
// zero creates an effectively unbounded queue.
//
// # Soft Close
//
// Termination is cooperative. The controller delivers a SoftClose signal
// on a worker's private signal queue with a single non-blocking send;
// if the queue is momentarily full the signal is silently dropped.
// Workers poll their signal queue once per loop iteration via
// ProcessSignals, so shutdown latency is bounded by one iteration's work
// plus the poll cost. Signal queues carry only Signal values, so control
// traffic can never collide with application payloads.
//
// # Selection
//
// Start, close, liveness, wait and cleanup operations all take a Selector:
// All, ByID, ByTag, or Where for a general predicate over
// (worker, tag, id).
//
// The package is designed to be small and idiomatic for Go 1.18+ (generics).
package whirl
