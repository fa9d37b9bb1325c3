// Package eventloop provides the callback queue that serializes all state mutation onto the
// render goroutine. Network readers, loaders and watchers Post closures; the render loop
// Drains them once per frame, so no component ever observes another mid-mutation.
package eventloop

import "sync"

// Dispatcher accepts callbacks to run on the loop goroutine.
type Dispatcher interface {
	Post(fn func())
}

// Queue is a FIFO of pending callbacks. Post is safe from any goroutine;
// Drain must only be called from the loop goroutine.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	spare   []func()
	closed  bool
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Post schedules fn for the next Drain. Posting to a closed queue drops fn.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, fn)
}

// Drain runs every callback posted before the call, in order, and returns how many ran.
// Callbacks posted while draining run on the next Drain.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = q.spare[:0]
	q.mu.Unlock()

	for i, fn := range batch {
		fn()
		batch[i] = nil
	}

	q.mu.Lock()
	q.spare = batch[:0]
	q.mu.Unlock()
	return len(batch)
}

// Len returns the number of callbacks waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close drops pending callbacks and rejects further posts.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
}
