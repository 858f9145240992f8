package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/cache"
)

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Get(ctx, "cart")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, s.Set(ctx, "cart", []byte(`{"items":[]}`)))
	got, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(got))

	require.NoError(t, s.Delete(ctx, "cart", "missing"))
	_, err = s.Get(ctx, "cart")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestHub_DeliversInOrderAndStops(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	var mu sync.Mutex
	var got []string
	stop, err := hub.Subscribe(ctx, func(c cache.Change) {
		mu.Lock()
		got = append(got, c.Key)
		mu.Unlock()
	})
	require.NoError(t, err)

	for _, k := range []string{"token", "user", "cart", "wishlist"} {
		require.NoError(t, hub.Publish(ctx, cache.Change{Key: k}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"token", "user", "cart", "wishlist"}, got)
	mu.Unlock()

	stop()
	stop()
	require.NoError(t, hub.Publish(ctx, cache.Change{Key: "late"}))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 4)
}

func TestHub_PublishFromCallbackDoesNotDeadlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()

	done := make(chan struct{})
	_, err := hub.Subscribe(ctx, func(c cache.Change) {
		if c.Key == "first" {
			_ = hub.Publish(ctx, cache.Change{Key: "second"})
			return
		}
		close(done)
	})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, cache.Change{Key: "first"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish from inside a callback deadlocked")
	}
}
