// Package cache is the durable key-value mirror of session, cart and wishlist
// state. Every failure degrades to a cache miss; nothing here is fatal.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Keys of the persisted state.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyCart     = "cart"
	KeyWishlist = "wishlist"
)

// SessionKeys are every key that belongs to a signed-in user.
var SessionKeys = []string{KeyToken, KeyUser, KeyCart, KeyWishlist}

// ErrNotFound is returned by a Backend for an absent key.
var ErrNotFound = errors.New("cache: key not found")

// Backend stores raw values.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Change announces that key was written or cleared by the instance Origin.
type Change struct {
	Key    string    `json:"key"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Signal carries Change notifications between instances sharing a backend.
type Signal interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe registers fn and returns once the subscription is live. fn is
	// called sequentially from one goroutine until ctx is done or stop is called.
	Subscribe(ctx context.Context, fn func(Change)) (stop func(), err error)
}

// Cache reads and writes JSON values and announces changes.
type Cache struct {
	backend Backend
	signal  Signal
	origin  string
	logger  *slog.Logger
}

// New creates a Cache with a fresh origin ID.
func New(backend Backend, signal Signal, logger *slog.Logger) *Cache {
	return &Cache{
		backend: backend,
		signal:  signal,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin identifies this instance in Change notifications.
func (c *Cache) Origin() string {
	return c.origin
}

// Read decodes the value at key into dst. It reports false on a miss, on a
// backend error and on malformed data; the latter two are logged.
func (c *Cache) Read(ctx context.Context, key string, dst any) bool {
	raw, err := c.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", apperrors.Storage("read "+key, err).Error()),
		)
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.WarnContext(ctx, "ignoring malformed cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Write stores v at key as JSON and announces the change. Writing a value
// identical to the stored one is a no-op and announces nothing, which keeps
// instances that mirror each other from echoing changes back and forth.
func (c *Cache) Write(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.ErrorContext(ctx, "cache value not encodable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	if current, err := c.backend.Get(ctx, key); err == nil && bytes.Equal(current, data) {
		return
	}

	if err := c.backend.Set(ctx, key, data); err != nil {
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", apperrors.Storage("write "+key, err).Error()),
		)
		return
	}
	c.announce(ctx, key)
}

// Clear removes keys and announces each removal.
func (c *Cache) Clear(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "cache clear failed",
			slog.Any("keys", keys),
			slog.String("error", apperrors.Storage("clear", err).Error()),
		)
		return
	}
	for _, key := range keys {
		c.announce(ctx, key)
	}
}

// Watch calls fn for every change made by another instance. It returns once
// the subscription is live; the returned stop function ends it.
func (c *Cache) Watch(ctx context.Context, fn func(Change)) (stop func(), err error) {
	return c.signal.Subscribe(ctx, func(ch Change) {
		if ch.Origin == c.origin {
			return
		}
		fn(ch)
	})
}

func (c *Cache) announce(ctx context.Context, key string) {
	err := c.signal.Publish(ctx, Change{Key: key, Origin: c.origin, At: time.Now().UTC()})
	if err != nil {
		c.logger.WarnContext(ctx, "cache change not announced",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
