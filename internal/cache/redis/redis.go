// Package redis is a cache backend on Redis. Changes are announced over a
// Redis Pub/Sub channel so every instance sharing the namespace sees them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/cache"
)

// Backend stores cache values as plain Redis strings under "<namespace>:<key>".
// Values never expire; they are removed by explicit clears only.
type Backend struct {
	client redis.UniversalClient
	prefix string
}

// NewBackend creates a backend scoped to namespace.
func NewBackend(client redis.UniversalClient, namespace string) *Backend {
	return &Backend{client: client, prefix: namespace + ":"}
}

func (b *Backend) key(k string) string {
	return b.prefix + k
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(k)
	}
	if err := b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Signal publishes cache.Change messages as JSON on "<namespace>:changes".
type Signal struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewSignal creates a signal scoped to namespace.
func NewSignal(client redis.UniversalClient, namespace string, logger *slog.Logger) *Signal {
	return &Signal{
		client:  client,
		channel: namespace + ":changes",
		logger:  logger,
	}
}

// Channel is the Pub/Sub channel name.
func (s *Signal) Channel() string {
	return s.channel
}

func (s *Signal) Publish(ctx context.Context, c cache.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("publish change on %s: %w", s.channel, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed, then delivers changes
// to fn from a single goroutine until ctx is done or stop is called.
func (s *Signal) Subscribe(ctx context.Context, fn func(cache.Change)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(subCtx, s.channel)

	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", s.channel, err)
	}

	s.logger.Info("subscribed to cache changes", slog.String("channel", s.channel))

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					s.logger.Warn("cache change channel closed", slog.String("channel", s.channel))
					return
				}

				var change cache.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Error("ignoring malformed cache change",
						slog.String("payload", msg.Payload),
						slog.String("error", err.Error()),
					)
					continue
				}
				s.dispatch(fn, change)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *Signal) dispatch(fn func(cache.Change), c cache.Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in cache change callback",
				slog.Any("panic", r),
				slog.String("key", c.Key),
			)
		}
	}()
	fn(c)
}
