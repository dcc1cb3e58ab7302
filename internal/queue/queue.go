// Package queue provides an unbounded FIFO safe for any number of
// producers and consumers.
package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded first-in first-out queue. Push never blocks, Pop
// blocks until an item is available. The zero value is not usable, use New.
type Queue[T any] struct {
	mx    sync.Mutex
	items []T
	head  int
	ready chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends item to the tail of the queue.
func (q *Queue[T]) Push(item T) {
	q.mx.Lock()
	q.items = append(q.items, item)
	q.mx.Unlock()
	q.notify()
}

// Pop removes and returns the oldest item, waiting for one if the queue is
// empty.
func (q *Queue[T]) Pop() T {
	item, _ := q.PopContext(context.Background())
	return item
}

// PopContext is Pop which gives up once ctx is done. An item already in
// the queue is always returned in preference to ctx.Err().
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	for {
		if item, ok := q.tryPop(); ok {
			return item, nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return len(q.items) - q.head
}

func (q *Queue[T]) tryPop() (T, bool) {
	var zero T
	q.mx.Lock()
	if q.head == len(q.items) {
		q.mx.Unlock()
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	more := q.head < len(q.items)
	q.mx.Unlock()

	// pass the wake up on to the next waiting consumer
	if more {
		q.notify()
	}
	return item, true
}

func (q *Queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
