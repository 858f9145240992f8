package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/pkg/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestBackend_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	b := NewBackend(client, "storefront")

	_, err := b.Get(ctx, "token")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, b.Set(ctx, "token", []byte(`"tok"`)))
	got, err := b.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, `"tok"`, string(got))

	stored, err := mr.Get("storefront:token")
	require.NoError(t, err)
	assert.Equal(t, `"tok"`, stored)
	assert.Zero(t, mr.TTL("storefront:token"), "cache entries must not expire")

	require.NoError(t, b.Delete(ctx, "token", "cart"))
	assert.False(t, mr.Exists("storefront:token"))
}

func TestBackend_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	alice := NewBackend(client, "alice")
	bob := NewBackend(client, "bob")

	require.NoError(t, alice.Set(ctx, "cart", []byte(`{}`)))
	_, err := bob.Get(ctx, "cart")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestBackend_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	b := NewBackend(client, "storefront")
	mr.Close()

	_, err := b.Get(ctx, "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrNotFound)
}

func TestSignal_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	sig := NewSignal(client, "storefront", logger.Nop())
	assert.Equal(t, "storefront:changes", sig.Channel())

	var mu sync.Mutex
	var got []cache.Change
	stop, err := sig.Subscribe(ctx, func(c cache.Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, sig.Publish(ctx, cache.Change{Key: "cart", Origin: "tab-b"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "cart", got[0].Key)
	assert.Equal(t, "tab-b", got[0].Origin)
}

func TestCache_AcrossInstancesOverRedis(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)

	newInstance := func() *cache.Cache {
		return cache.New(NewBackend(client, "storefront"), NewSignal(client, "storefront", logger.Nop()), logger.Nop())
	}
	tabA, tabB := newInstance(), newInstance()

	var mu sync.Mutex
	var keys []string
	stop, err := tabA.Watch(ctx, func(c cache.Change) {
		mu.Lock()
		keys = append(keys, c.Key)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	tabB.Write(ctx, cache.KeyToken, "tok")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) == 1 && keys[0] == cache.KeyToken
	}, 2*time.Second, 10*time.Millisecond)

	var token string
	require.True(t, tabA.Read(ctx, cache.KeyToken, &token))
	assert.Equal(t, "tok", token)
}
