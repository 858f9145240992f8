package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/activity"
	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/internal/cache/memory"
	rediscache "github.com/utafrali/storefront/internal/cache/redis"
	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/checkout"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/remote"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/wishlist"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/kafka"
	pkglogger "github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rdb        *redis.Client
	cache      *cache.Cache
	breaker    *httpclient.CircuitBreakerClient
	session    *session.Store
	cart       *cart.Synchronizer
	wishlist   *wishlist.Synchronizer
	httpServer *http.Server

	producer *kafka.Producer
	activity *activity.Stream

	tracerShutdown func(context.Context) error

	// ctx outlives requests; background refreshes and the change watcher run
	// on it until Shutdown.
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopWatch func()
	stopSess  func()

	// lastToken is only touched from session callbacks, which never run
	// concurrently.
	lastToken string
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	healthHandler := health.NewHandler()

	// Local cache.
	var (
		backend cache.Backend
		signal  cache.Signal
	)
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPass
		rcfg.DB = cfg.RedisDB
		rcfg.SlowThreshold = 50 * time.Millisecond
		rcfg.Logger = pkglogger.Component(logger, "redis")

		rdb, err := database.NewRedisClient(ctx, rcfg)
		if err != nil {
			a.cancel()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		a.rdb = rdb
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, rdb, "storefront"); err != nil {
			logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
		}
		backend = rediscache.NewBackend(rdb, cfg.CacheNamespace)
		signal = rediscache.NewSignal(rdb, cfg.CacheNamespace, pkglogger.Component(logger, "cache"))
		healthHandler.RegisterCritical("cache", database.RedisChecker(rdb))
	default:
		backend = memory.NewStore()
		signal = memory.NewHub()
		logger.Info("using in-process cache")
	}
	a.cache = cache.New(backend, signal, pkglogger.Component(logger, "cache"))
	logger = logger.With(slog.String("instance", a.cache.Origin()))
	a.logger = logger

	// Storefront API client.
	hc := httpclient.New(httpclient.Config{
		Timeout:           cfg.APITimeout,
		MaxRetries:        cfg.APIMaxRetries,
		RetryWaitMin:      200 * time.Millisecond,
		RetryWaitMax:      2 * time.Second,
		MaxConnsPerHost:   32,
		RequestsPerSecond: cfg.APIRPS,
		Burst:             cfg.APIBurst,
	})
	a.breaker = httpclient.NewCircuitBreakerClient(hc, httpclient.DefaultCircuitBreakerConfig("storefront-api"), logger).
		WithFallback(func(context.Context, error) (*http.Response, error) {
			return nil, apperrors.ServiceUnavailable("the store is temporarily unavailable, try again shortly")
		})
	client := remote.New(cfg.APIBaseURL, a.breaker, pkglogger.Component(logger, "remote"))
	healthHandler.RegisterNonCritical("storefront-api", a.upstreamChecker)

	// Build the dependency graph.
	a.session = session.NewStore(client, a.cache, pkglogger.Component(logger, "session"))
	a.cart = cart.NewSynchronizer(client, a.session, a.cache, pkglogger.Component(logger, "cart"))
	a.wishlist = wishlist.NewSynchronizer(client, a.session, a.cache, pkglogger.Component(logger, "wishlist"))
	catalogService := catalog.NewService(client, a.session, pkglogger.Component(logger, "catalog"))
	checkoutService := checkout.NewService(client, a.cart, a.session, cfg.CheckoutReturnURL, pkglogger.Component(logger, "checkout"))

	// Pick up where the last run left off.
	restored := a.session.Restore(ctx)
	if restored.Authenticated() {
		a.cart.Restore(ctx)
		a.wishlist.Restore(ctx)
		logger.Info("session restored", slog.String("user_id", restored.UserID()))
	}
	a.lastToken = restored.Token
	a.stopSess = a.session.Subscribe(a.onSession)
	if restored.Authenticated() {
		a.background(a.refreshCollections)
	}

	stop, err := a.cache.Watch(a.ctx, a.onCacheChange)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("watch cache changes: %w", err)
	}
	a.stopWatch = stop

	// Shopper activity events.
	var recorder activity.Recorder = activity.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), pkglogger.Component(logger, "kafka"))
		a.activity = activity.NewStream(a.producer, cfg.ActivityBuffer, 5*time.Second, pkglogger.Component(logger, "activity"))
		recorder = a.activity
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("publishing activity events", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(handler.Services{
		Session:  a.session,
		Cart:     a.cart,
		Wishlist: a.wishlist,
		Catalog:  catalogService,
		Checkout: checkoutService,
		Activity: recorder,
	}, healthHandler, handler.RouterConfig{
		CORS:      corsCfg,
		Heartbeat: cfg.EventHeartbeat,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Handler returns the HTTP handler serving the BFF.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Change watcher and background refreshes
// 3. Activity events and the Kafka producer
// 4. Tracer (flush pending spans)
// 5. Redis client
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.close()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) close() []error {
	var errs []error

	a.cancel()
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.stopSess != nil {
		a.stopSess()
	}
	a.wg.Wait()

	if a.activity != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := a.activity.Close(flushCtx); err != nil {
			a.logger.Error("activity flush error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errs
}

// onSession keeps the collections in step with the identity. They are
// dropped on logout and when one credential replaces another, and fetched
// for every new credential.
func (a *App) onSession(s domain.Session) {
	switch s.State {
	case domain.StateAnonymous:
		a.lastToken = ""
		a.cart.Reset()
		a.wishlist.Reset()
	case domain.StateAuthenticated:
		if s.Token == a.lastToken {
			return
		}
		if a.lastToken != "" {
			a.logger.Info("credential replaced, dropping collections", slog.String("user_id", s.UserID()))
			a.cart.Reset()
			a.wishlist.Reset()
			a.cache.Clear(a.ctx, cache.KeyCart, cache.KeyWishlist)
		}
		a.lastToken = s.Token
		a.background(a.refreshCollections)
	}
}

// onCacheChange reconciles with a change another instance made.
func (a *App) onCacheChange(ch cache.Change) {
	metrics.CacheChanges.WithLabelValues(ch.Key).Inc()
	a.logger.Debug("cache changed by another instance",
		slog.String("key", ch.Key),
		slog.String("origin", ch.Origin),
	)

	switch ch.Key {
	case cache.KeyToken, cache.KeyUser:
		a.session.Reload(a.ctx)
	case cache.KeyCart:
		if a.session.Current().Authenticated() {
			a.background(func(ctx context.Context) {
				if _, err := a.cart.Refresh(ctx); err != nil {
					a.logger.WarnContext(ctx, "cart reconcile failed", slog.String("error", err.Error()))
				}
			})
		}
	case cache.KeyWishlist:
		if a.session.Current().Authenticated() {
			a.background(func(ctx context.Context) {
				if _, err := a.wishlist.Refresh(ctx); err != nil {
					a.logger.WarnContext(ctx, "wishlist reconcile failed", slog.String("error", err.Error()))
				}
			})
		}
	}
}

func (a *App) refreshCollections(ctx context.Context) {
	if _, err := a.cart.Refresh(ctx); err != nil {
		a.logger.WarnContext(ctx, "cart refresh failed", slog.String("error", err.Error()))
	}
	if _, err := a.wishlist.Refresh(ctx); err != nil {
		a.logger.WarnContext(ctx, "wishlist refresh failed", slog.String("error", err.Error()))
	}
}

func (a *App) background(fn func(ctx context.Context)) {
	if a.ctx.Err() != nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
}

func (a *App) upstreamChecker(context.Context) error {
	if a.breaker.State() == gobreaker.StateOpen {
		return errors.New("storefront API circuit is open")
	}
	return nil
}
