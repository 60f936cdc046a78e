// Package queue provides a capacity-bounded, single-consumer,
// multi-producer FIFO used as the service actor's event bus (spec §4.1).
//
// Unlike a buffered Go channel, BoundedQueue never drops a value once
// accepted: a full queue suspends the producer instead of blocking the
// channel send inside a select with a default case. Cancellation of a
// waiting producer or consumer removes it cleanly without reserving or
// losing a slot, which a bare channel cannot express without races.
package queue

import (
	"container/list"
	"context"
	"sync"
)

// BoundedQueue is a FIFO with a fixed capacity. The zero value is not
// usable; construct with New.
//
// Safe for concurrent use by many producers and one or more consumers,
// though spec §4.1 describes a single-consumer usage: all waiters are
// woken in FIFO order relative to other waiters of the same kind.
type BoundedQueue[T any] struct {
	mu       sync.Mutex
	capacity int
	items    *list.List // buffered values not yet handed to a waiting consumer
	readers  *list.List // *readWaiter[T], parked Dequeue calls
	writers  *list.List // *writeWaiter, parked Enqueue calls
	finished bool
}

// readWaiter is a parked Dequeue call's handoff slot.
type readWaiter[T any] struct {
	ch        chan T
	done      chan struct{} // closed when woken without a direct handoff
	delivered bool
}

// writeWaiter is a parked Enqueue call waiting for buffer space.
type writeWaiter struct {
	done chan struct{}
}

// New creates a BoundedQueue with the given capacity. Panics if capacity < 1.
func New[T any](capacity int) *BoundedQueue[T] {
	if capacity < 1 {
		panic("queue: capacity must be >= 1")
	}

	return &BoundedQueue[T]{
		capacity: capacity,
		items:    list.New(),
		readers:  list.New(),
		writers:  list.New(),
	}
}

// Enqueue appends value to the queue.
//
// If the queue has already been finished, Enqueue silently drops the value
// (spec §4.1: "if finished, silently drops"). If a consumer is already
// parked in Dequeue, the value is handed off directly without touching the
// internal buffer. Otherwise, if the buffer is below capacity, the value is
// appended; if at capacity, Enqueue suspends until space frees up, the
// queue finishes, or ctx is canceled.
func (q *BoundedQueue[T]) Enqueue(ctx context.Context, value T) error {
	for {
		q.mu.Lock()

		if q.finished {
			q.mu.Unlock()
			return nil
		}

		// Hand off directly to a parked reader if one exists.
		if front := q.readers.Front(); front != nil {
			w := q.readers.Remove(front).(*readWaiter[T])
			w.delivered = true
			q.mu.Unlock()
			w.ch <- value

			return nil
		}

		if q.items.Len() < q.capacity {
			q.items.PushBack(value)
			q.mu.Unlock()

			return nil
		}

		// At capacity: park as a writer until a slot frees up.
		w := &writeWaiter{done: make(chan struct{})}
		elem := q.writers.PushBack(w)
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			q.mu.Lock()
			// The element may have already been removed by Finish/wake;
			// list.List.Remove on an element not in the list would corrupt
			// state, so check membership via a cheap linear scan guard.
			if elemStillQueued(q.writers, elem) {
				q.writers.Remove(elem)
				q.mu.Unlock()

				return ctx.Err()
			}
			q.mu.Unlock()
			// Already woken; loop around to retry the push.
		case <-w.done:
			// Woken: a slot may have freed up, or the queue finished. Retry.
		}
	}
}

// elemStillQueued reports whether elem is still linked into l. Used to
// distinguish "canceled before being woken" from "woken, racing with our
// own cancellation" without a second piece of state per waiter.
func elemStillQueued(l *list.List, elem *list.Element) bool {
	for e := l.Front(); e != nil; e = e.Next() {
		if e == elem {
			return true
		}
	}

	return false
}

// Dequeue returns the head of the queue, or ok=false if the queue is
// finished and drained. If the queue is empty but not finished, Dequeue
// suspends until a value is available, the queue finishes, or ctx is
// canceled.
func (q *BoundedQueue[T]) Dequeue(ctx context.Context) (value T, ok bool, err error) {
	q.mu.Lock()

	if front := q.items.Front(); front != nil {
		v := q.items.Remove(front).(T)
		q.wakeOneWriterLocked()
		q.mu.Unlock()

		return v, true, nil
	}

	if q.finished {
		q.mu.Unlock()
		var zero T

		return zero, false, nil
	}

	w := &readWaiter[T]{ch: make(chan T, 1), done: make(chan struct{})}
	elem := q.readers.PushBack(w)
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.mu.Lock()
		if !w.delivered && elemStillQueued(q.readers, elem) {
			q.readers.Remove(elem)
			q.mu.Unlock()
			var zero T

			return zero, false, ctx.Err()
		}
		q.mu.Unlock()
	case v := <-w.ch:
		// A concurrent Enqueue handed the value off directly.
		return v, true, nil
	case <-w.done:
		// Finished with no delivery (Finish closed done directly).
	}

	if w.delivered {
		return <-w.ch, true, nil
	}

	var zero T

	return zero, false, nil
}

// Finish marks the queue terminal: wakes all waiting consumers with
// ok=false and all waiting producers (who then observe finished on retry).
// Idempotent.
func (q *BoundedQueue[T]) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.finished {
		return
	}

	q.finished = true

	for e := q.readers.Front(); e != nil; e = e.Next() {
		close(e.Value.(*readWaiter[T]).done)
	}
	q.readers.Init()

	for e := q.writers.Front(); e != nil; e = e.Next() {
		close(e.Value.(*writeWaiter).done)
	}
	q.writers.Init()
}

// wakeOneWriterLocked wakes the longest-waiting parked producer, if any,
// so it can retry pushing into the slot just freed by a Dequeue. Must be
// called with q.mu held.
func (q *BoundedQueue[T]) wakeOneWriterLocked() {
	front := q.writers.Front()
	if front == nil {
		return
	}

	w := q.writers.Remove(front).(*writeWaiter)
	close(w.done)
}

// Len reports the number of buffered (not yet delivered) values. Intended
// for diagnostics/tests, not for flow control.
func (q *BoundedQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Len()
}
