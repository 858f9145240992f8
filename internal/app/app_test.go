package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/remote/mock"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/logger"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

var creds = domain.Credentials{Email: "mona@example.com", Password: "Secret123"}

func testConfig(srv *mock.Server, backend, redisAddr string) *config.Config {
	return &config.Config{
		Environment:        "test",
		LogLevel:           "error",
		HTTPPort:           8080,
		CORSAllowedOrigins: []string{"*"},
		APIBaseURL:         srv.BaseURL(),
		APITimeout:         5 * time.Second,
		CacheBackend:       backend,
		CacheNamespace:     "storefront-test",
		RedisAddr:          redisAddr,
		CheckoutReturnURL:  "http://localhost:8080/allorders",
		EventHeartbeat:     time.Second,
		OTELSampleRate:     1.0,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewApp(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

// pair starts two instances sharing one redis, as two tabs share storage.
func pair(t *testing.T) (*mock.Server, *miniredis.Miniredis, *App, *App) {
	t.Helper()
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	srv.SeedUser("Mona Adel", "mona@example.com", "Secret123")
	mr := miniredis.RunT(t)

	cfg := testConfig(srv, config.CacheRedis, mr.Addr())
	return srv, mr, newTestApp(t, cfg), newTestApp(t, cfg)
}

func TestApp_LoginReachesOtherInstance(t *testing.T) {
	_, _, a1, a2 := pair(t)

	_, err := a1.session.Login(context.Background(), creds)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return a2.session.Current().Authenticated() }, waitFor, tick)
	assert.Equal(t, a1.session.Token(), a2.session.Token())
	assert.Equal(t, a1.session.Current().UserID(), a2.session.Current().UserID())

	a1.session.Logout(context.Background())

	require.Eventually(t, func() bool {
		return a2.session.Current().State == domain.StateAnonymous
	}, waitFor, tick)
	assert.Empty(t, a2.cart.Current().Items)
}

func TestApp_CartChangeReconcilesOtherInstance(t *testing.T) {
	srv, _, a1, a2 := pair(t)
	productID := srv.Products()[0].ID

	_, err := a1.session.Login(context.Background(), creds)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a2.session.Current().Authenticated() }, waitFor, tick)

	_, err = a1.cart.AddItem(context.Background(), productID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		line, ok := a2.cart.Current().Line(productID)
		return ok && line.Quantity == 1
	}, waitFor, tick)
}

func TestApp_UnauthorizedLogsOutEveryInstanceOnce(t *testing.T) {
	srv, mr, a1, a2 := pair(t)

	_, err := a1.session.Login(context.Background(), creds)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a2.session.Current().Authenticated() }, waitFor, tick)

	token := a1.session.Token()
	srv.Revoke(token)

	_, err = a1.cart.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	sess := a1.session.Current()
	assert.Equal(t, domain.StateAnonymous, sess.State)
	assert.Equal(t, domain.ReasonExpired, sess.Reason)
	assert.False(t, mr.Exists("storefront-test:token"))

	require.Eventually(t, func() bool {
		return a2.session.Current().State == domain.StateAnonymous
	}, waitFor, tick)

	// A late 401 for the same token changes nothing.
	assert.False(t, a1.session.HandleUnauthorized(context.Background(), token))
	assert.False(t, a2.session.HandleUnauthorized(context.Background(), token))
}

func TestApp_SwitchingAccountsDropsPreviousCollections(t *testing.T) {
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	srv.SeedUser("Mona Adel", "mona@example.com", "Secret123")
	srv.SeedUser("Omar Farid", "omar@example.com", "Secret456")
	a := newTestApp(t, testConfig(srv, config.CacheMemory, ""))
	ctx := context.Background()

	_, err := a.session.Login(ctx, creds)
	require.NoError(t, err)
	product := srv.Products()[0]
	_, err = a.cart.AddItem(ctx, product.ID)
	require.NoError(t, err)
	_, err = a.wishlist.Add(ctx, product.ID)
	require.NoError(t, err)

	// Hold every collection fetch so nothing for the new account lands.
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	srv.SetHook(func(method, route string) {
		if method == http.MethodGet && (route == "/cart" || route == "/wishlist") {
			<-release
		}
	})

	_, err = a.session.Login(ctx, domain.Credentials{Email: "omar@example.com", Password: "Secret456"})
	require.NoError(t, err)

	assert.Empty(t, a.cart.Current().Items)
	assert.False(t, a.wishlist.IsFavorited(product.ID))
	var cached domain.Cart
	assert.False(t, a.cache.Read(ctx, cache.KeyCart, &cached))
	var entries []domain.WishlistEntry
	assert.False(t, a.cache.Read(ctx, cache.KeyWishlist, &entries))
}

func TestApp_RestoresPersistedSession(t *testing.T) {
	srv, mr, a1, _ := pair(t)

	_, err := a1.session.Login(context.Background(), creds)
	require.NoError(t, err)

	a3 := newTestApp(t, testConfig(srv, config.CacheRedis, mr.Addr()))

	sess := a3.session.Current()
	assert.True(t, sess.Authenticated())
	assert.Equal(t, a1.session.Token(), sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, "Mona Adel", sess.User.Name)
}

// syncBuffer lets background goroutines log while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) records(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		out = append(out, rec)
	}
	return out
}

func TestApp_LogsCarryInstanceID(t *testing.T) {
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	srv.SeedUser("Mona Adel", "mona@example.com", "Secret123")

	var buf syncBuffer
	a, err := NewApp(testConfig(srv, config.CacheMemory, ""), logger.NewWithWriter("storefront", "info", &buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	_, err = a.session.Login(context.Background(), creds)
	require.NoError(t, err)

	var found bool
	for _, rec := range buf.records(t) {
		if rec["msg"] == "logged in" {
			found = true
			assert.Equal(t, a.cache.Origin(), rec["instance"])
			assert.Equal(t, "session", rec["component"])
		}
	}
	assert.True(t, found, "login is logged")
}

func TestApp_MemoryBackendReadiness(t *testing.T) {
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	a := newTestApp(t, testConfig(srv, config.CacheMemory, ""))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, health.StatusUp, body.Status)
	assert.Contains(t, body.Checks, "storefront-api")
	assert.NotContains(t, body.Checks, "cache")
}

func TestApp_KafkaOutageOnlyDegrades(t *testing.T) {
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	broker := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(srv, config.CacheMemory, "")
	cfg.KafkaBrokers = []string{broker}
	cfg.ActivityBuffer = 4
	a := newTestApp(t, cfg)
	require.NotNil(t, a.activity)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, health.StatusDegraded, body.Status)
	require.Contains(t, body.Checks, "kafka")
	assert.Equal(t, health.StatusDown, body.Checks["kafka"].Status)
	assert.False(t, body.Checks["kafka"].Critical)
}

func TestApp_RedisUnreachable(t *testing.T) {
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewApp(testConfig(srv, config.CacheRedis, addr), logger.Nop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}
