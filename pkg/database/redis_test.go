package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
}

func TestNewRedisClient_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, RedisChecker(client)(context.Background()))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestRedisChecker_ReportsOutage(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr(), DialTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	assert.Error(t, RedisChecker(client)(context.Background()))
}
