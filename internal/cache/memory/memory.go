// Package memory is an in-process cache backend. Instances that share a Store
// and a Hub behave like several storefront tabs in one browser.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/utafrali/storefront/internal/cache"
)

// Store is a map-backed cache.Backend.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Hub is an in-process cache.Signal. Publish never blocks: each subscriber
// has its own unbounded mailbox drained by its own goroutine.
type Hub struct {
	mu   sync.Mutex
	subs map[*mailbox]struct{}
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[*mailbox]struct{})}
}

type mailbox struct {
	mu     sync.Mutex
	queue  []cache.Change
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func (m *mailbox) push(c cache.Change) {
	m.mu.Lock()
	m.queue = append(m.queue, c)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []cache.Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

func (h *Hub) Publish(_ context.Context, c cache.Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for m := range h.subs {
		m.push(c)
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, fn func(cache.Change)) (func(), error) {
	m := &mailbox{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[m] = struct{}{}
	h.mu.Unlock()

	stop := func() {
		m.once.Do(func() {
			h.mu.Lock()
			delete(h.subs, m)
			h.mu.Unlock()
			close(m.closed)
		})
	}

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.closed:
				return
			case <-m.wake:
				for _, c := range m.drain() {
					select {
					case <-m.closed:
						return
					default:
					}
					fn(c)
				}
			}
		}
	}()

	return stop, nil
}
