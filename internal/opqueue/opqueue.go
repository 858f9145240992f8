// Package opqueue serializes operations in the order they were issued.
package opqueue

import (
	"context"
	"sync"
)

// Queue runs submitted functions one at a time, strictly in submission order.
// The zero value is ready to use.
type Queue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Do blocks until every previously submitted function has returned, runs fn,
// and returns once fn has returned. Submission order is the order in which
// callers acquire the queue's internal lock, so two calls made sequentially by
// one goroutine always run in that order.
func (q *Queue) Do(fn func()) {
	prev, done := q.enqueue()
	if prev != nil {
		<-prev
	}
	defer close(done)
	fn()
}

// DoContext is like Do but gives up waiting for its turn when ctx is done.
// Once fn has started it always runs to completion. A caller that gives up
// still holds its place, so later callers keep their order.
func (q *Queue) DoContext(ctx context.Context, fn func()) error {
	prev, done := q.enqueue()
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Release our slot only after our predecessor finishes.
			go func() {
				<-prev
				close(done)
			}()
			return ctx.Err()
		}
	}
	defer close(done)
	fn()
	return nil
}

func (q *Queue) enqueue() (prev, done chan struct{}) {
	done = make(chan struct{})
	q.mu.Lock()
	prev = q.tail
	q.tail = done
	q.mu.Unlock()
	return prev, done
}
