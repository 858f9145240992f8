package database

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats redis.PoolStats

func (f fixedStats) PoolStats() *redis.PoolStats {
	s := redis.PoolStats(f)
	return &s
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(fixedStats{}, "test-service")

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var all []string
	for d := range ch {
		all = append(all, d.String())
	}
	require.Len(t, all, 6)

	joined := strings.Join(all, "\n")
	for _, want := range []string{
		`"redis_pool_hits_total"`,
		`"redis_pool_misses_total"`,
		`"redis_pool_timeouts_total"`,
		`"redis_pool_total_connections"`,
		`"redis_pool_idle_connections"`,
		`"redis_pool_stale_connections_total"`,
	} {
		assert.Contains(t, joined, want)
	}
}

func TestPoolStatsCollector_Collect(t *testing.T) {
	c := NewPoolStatsCollector(fixedStats{Hits: 7, Misses: 2, TotalConns: 3, IdleConns: 1}, "storefront")

	assert.Equal(t, 6, testutil.CollectAndCount(c))
}

func TestRegisterPoolMetrics_LiveClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, client, "storefront"))
	// A second client for the same service keeps the first registration.
	require.NoError(t, RegisterPoolMetrics(reg, client, "storefront"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() == "redis_pool_total_connections" {
			total = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.GreaterOrEqual(t, total, float64(1))
}
