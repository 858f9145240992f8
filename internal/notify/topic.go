// Package notify provides typed, in-process publish/subscribe topics.
//
// A Topic delivers every published value to every current subscriber, one
// value at a time and in publish order. Values carry a monotonic sequence
// number; a value older than one already delivered is dropped, so observers
// never move backwards.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Versioned is implemented by every value published on a Topic.
type Versioned interface {
	Seq() uint64
}

type subscription[T Versioned] struct {
	fn     func(T)
	active atomic.Bool
}

// Topic fans values of type T out to subscribers.
type Topic[T Versioned] struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	subs      []*subscription[T]
	pending   []T
	draining  bool
	delivered bool
	lastSeq   uint64
}

// NewTopic creates a topic. name only appears in logs.
func NewTopic[T Versioned](name string, logger *slog.Logger) *Topic[T] {
	return &Topic[T]{
		name:   name,
		logger: logger.With(slog.String("topic", name)),
	}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is idempotent. fn is never called concurrently with itself or with
// any other subscriber of the same topic. A subscriber removed while a value
// is being fanned out does not receive it.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	sub := &subscription[T]{fn: fn}
	sub.active.Store(true)

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			t.mu.Lock()
			t.subs = slices.DeleteFunc(t.subs, func(s *subscription[T]) bool { return s == sub })
			t.mu.Unlock()
		})
	}
}

// Publish queues v for delivery. If no delivery is in progress the calling
// goroutine delivers v, and anything queued meanwhile, before returning.
// Otherwise v is left for the goroutine already delivering, which includes the
// case of a subscriber publishing from inside its callback.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	t.pending = append(t.pending, v)
	if t.draining {
		t.mu.Unlock()
		return
	}
	t.draining = true

	for len(t.pending) > 0 {
		next := t.pending[0]
		var zero T
		t.pending[0] = zero
		t.pending = t.pending[1:]

		if t.delivered && next.Seq() <= t.lastSeq {
			t.logger.Debug("dropping stale value",
				slog.Uint64("seq", next.Seq()),
				slog.Uint64("last_seq", t.lastSeq),
			)
			continue
		}
		t.delivered = true
		t.lastSeq = next.Seq()

		subs := slices.Clone(t.subs)
		t.mu.Unlock()
		for _, s := range subs {
			if s.active.Load() {
				t.deliver(s, next)
			}
		}
		t.mu.Lock()
	}

	t.pending = nil
	t.draining = false
	t.mu.Unlock()
}

func (t *Topic[T]) deliver(s *subscription[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error("subscriber panicked",
				slog.Any("panic", rec),
				slog.Uint64("seq", v.Seq()),
			)
		}
	}()
	s.fn(v)
}
