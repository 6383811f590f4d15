// Package pipeline contains the streaming pipeline: the bounded queues that
// connect processing stages, the workers that move frames between them, and
// the supervisor that watches worker health.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// GetStatus reports why Get returned.
type GetStatus int

const (
	// GetOK means an item was dequeued.
	GetOK GetStatus = iota
	// GetTimeout means the queue stayed empty for the whole wait.
	GetTimeout
	// GetClosed means the queue is closed and fully drained.
	GetClosed
)

func (s GetStatus) String() string {
	switch s {
	case GetOK:
		return "ok"
	case GetTimeout:
		return "timeout"
	case GetClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Queue is a fixed-capacity FIFO connecting two pipeline stages.
//
// The pipeline prefers freshness over completeness: when a consumer falls
// behind, Put gives up after its timeout and the newest item is dropped and
// counted, rather than stalling the producing stage. Get distinguishes an
// empty wait from a closed queue so consumers can exit cleanly on shutdown.
type Queue[T any] struct {
	name string

	ch   chan T
	done chan struct{}

	closeOnce sync.Once

	enqueued atomic.Uint64
	dequeued atomic.Uint64
	dropped  atomic.Uint64
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name: name,
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Name returns the queue name used in logs and metrics.
func (q *Queue[T]) Name() string {
	return q.name
}

// Put enqueues item, waiting up to timeout for free space. It returns false
// when the queue stayed full past the timeout (the item is discarded and
// counted as dropped) or when the queue is closed.
func (q *Queue[T]) Put(item T, timeout time.Duration) bool {
	if q.tryPut(item) {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.done:
		return false
	case q.ch <- item:
		q.enqueued.Add(1)
		return true
	case <-timer.C:
		q.dropped.Add(1)
		return false
	}
}

// TryPut enqueues item only if space is immediately available. A full queue
// is not counted as a drop; callers use this on paths where losing an item
// is routine rather than a sign of congestion.
func (q *Queue[T]) TryPut(item T) bool {
	return q.tryPut(item)
}

// PutNowait enqueues item only if space is immediately available. Unlike
// TryPut, an item lost to a full queue counts as dropped.
func (q *Queue[T]) PutNowait(item T) bool {
	if q.tryPut(item) {
		return true
	}
	select {
	case <-q.done:
	default:
		q.dropped.Add(1)
	}
	return false
}

func (q *Queue[T]) tryPut(item T) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.ch <- item:
		q.enqueued.Add(1)
		return true
	default:
		return false
	}
}

// Get dequeues the next item, waiting up to timeout. The status tells the
// caller whether it got an item, gave up waiting, or should exit because the
// queue is closed and drained. Items enqueued before Close are still
// delivered.
func (q *Queue[T]) Get(timeout time.Duration) (T, GetStatus) {
	// Drain buffered items before reporting closure.
	select {
	case item := <-q.ch:
		q.dequeued.Add(1)
		return item, GetOK
	default:
	}

	select {
	case <-q.done:
		var zero T
		return zero, GetClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.ch:
		q.dequeued.Add(1)
		return item, GetOK
	case <-q.done:
		// One more non-blocking read: an item may have landed between the
		// drain check above and the close signal.
		select {
		case item := <-q.ch:
			q.dequeued.Add(1)
			return item, GetOK
		default:
			var zero T
			return zero, GetClosed
		}
	case <-timer.C:
		var zero T
		return zero, GetTimeout
	}
}

// Clear drains all buffered items and returns how many were removed.
// Concurrent Put and Get calls complete normally; operations after Clear
// observe an empty queue.
func (q *Queue[T]) Clear() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Close marks the queue closed. Safe to call more than once. Producers get
// false from Put; consumers drain any buffered items and then see GetClosed.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// IsClosed reports whether Close has been called.
func (q *Queue[T]) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Dropped returns how many items were discarded by Put timeouts.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Stats returns a point-in-time snapshot of queue counters.
func (q *Queue[T]) Stats() QueueStats {
	return QueueStats{
		Name:     q.name,
		Len:      len(q.ch),
		Cap:      cap(q.ch),
		Enqueued: q.enqueued.Load(),
		Dequeued: q.dequeued.Load(),
		Dropped:  q.dropped.Load(),
	}
}

// QueueStats holds counters for one queue.
type QueueStats struct {
	Name     string `json:"name"`
	Len      int    `json:"len"`
	Cap      int    `json:"cap"`
	Enqueued uint64 `json:"enqueued"`
	Dequeued uint64 `json:"dequeued"`
	Dropped  uint64 `json:"dropped"`
}
