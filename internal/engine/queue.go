package engine

import (
	"sync"
)

// Queue is a FIFO of pending work items. An item leaves the queue exactly
// once, through Dequeue, Clear or Drain. Safe for concurrent use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewQueue creates a queue holding items in order
func NewQueue[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	q.items = append(q.items, items...)
	return q
}

// Enqueue appends items to the back of the queue
func (q *Queue[T]) Enqueue(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Dequeue removes and returns the front item
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Size returns the number of queued items
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued item and returns how many were dropped
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Drain removes and returns every queued item in order
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// mailbox is the unbounded inbox of an actor. Senders never block; the
// owning goroutine waits on ready and then drains. Messages from one sender
// are received in send order.
type mailbox[T any] struct {
	queue  *Queue[T]
	notify chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{
		queue:  NewQueue[T](),
		notify: make(chan struct{}, 1),
	}
}

func (m *mailbox[T]) send(msg T) {
	m.queue.Enqueue(msg)
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) ready() <-chan struct{} {
	return m.notify
}

func (m *mailbox[T]) drain() []T {
	return m.queue.Drain()
}
