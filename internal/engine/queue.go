package engine

import "sync"

// eventQueue is a thread-safe unbounded FIFO queue.
//
// Effects enqueue their results from their own goroutines while the Run loop
// dequeues, so the queue never blocks producers. A one-slot signal channel
// lets the loop wait with select alongside context cancellation.
type eventQueue[E any] struct {
	mu     sync.Mutex
	events []E
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue[E any]() *eventQueue[E] {
	return &eventQueue[E]{
		events: make([]E, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Returns false if the queue is closed.
func (q *eventQueue[E]) Enqueue(e E) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the single buffered slot coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front element without blocking.
// Returns false if the queue is empty or closed.
func (q *eventQueue[E]) TryDequeue() (E, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero E
	if q.closed || len(q.events) == 0 {
		return zero, false
	}

	e := q.events[0]
	// Clear the slot so the backing array does not pin the event.
	q.events[0] = zero

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available. The
// channel is closed when the queue is closed.
func (q *eventQueue[E]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue[E]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further events and drops any still queued. Safe to call more
// than once.
func (q *eventQueue[E]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.events = nil
	close(q.signal)
}
