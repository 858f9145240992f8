package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration

	// SlowThreshold enables slow command logging to Logger when positive.
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

// DefaultRedisConfig returns sensible defaults for Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		Password:    "",
		DB:          0,
		DialTimeout: 5 * time.Second,
	}
}

// NewRedisClient creates a new Redis client with command tracing and verifies
// the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	client.AddHook(NewTracingHook(cfg.SlowThreshold, cfg.Logger))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// RedisChecker returns a readiness probe for client.
func RedisChecker(client redis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
