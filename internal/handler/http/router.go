package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/activity"
	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/checkout"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/wishlist"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const serviceName = "storefront"

// Services are the stores and services exposed over HTTP.
type Services struct {
	Session  *session.Store
	Cart     *cart.Synchronizer
	Wishlist *wishlist.Synchronizer
	Catalog  *catalog.Service
	Checkout *checkout.Service
	// Activity receives shopper actions. Nil discards them.
	Activity activity.Recorder
}

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	Heartbeat      time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 25 * time.Second
	}

	if svc.Activity == nil {
		svc.Activity = activity.Nop{}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger, func(*http.Request) string {
		return svc.Session.Current().UserID()
	}))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	sessionHandler := NewSessionHandler(svc.Session, svc.Activity, logger)
	cartHandler := NewCartHandler(svc.Cart, svc.Activity, logger)
	wishlistHandler := NewWishlistHandler(svc.Wishlist, svc.Activity, logger)
	catalogHandler := NewCatalogHandler(svc.Catalog, logger)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, svc.Activity, logger)
	eventsHandler := NewEventsHandler(svc, cfg.Heartbeat, logger)

	authenticated := func() bool { return svc.Session.Current().Authenticated() }

	r.Route("/api", func(r chi.Router) {
		// The event stream is long-lived and must not be compressed or timed out.
		r.With(middleware.NoStore).Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(cfg.RequestTimeout))

			r.Route("/session", func(r chi.Router) {
				r.Use(middleware.NoStore)
				r.Get("/", sessionHandler.Get)
				r.Post("/login", sessionHandler.Login)
				r.Post("/register", sessionHandler.Register)
				r.Post("/forgot-password", sessionHandler.ForgotPassword)
				r.Post("/logout", sessionHandler.Logout)
			})

			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/products/{id}", catalogHandler.GetProduct)
			r.Get("/categories", catalogHandler.ListCategories)
			r.Get("/brands", catalogHandler.ListBrands)
			r.Get("/brands/{id}", catalogHandler.GetBrand)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore)
				r.Use(middleware.RequireSession(authenticated))

				r.Get("/cart", cartHandler.Get)
				r.Delete("/cart", cartHandler.Clear)
				r.Post("/cart/items", cartHandler.AddItem)
				r.Put("/cart/items/{productId}", cartHandler.SetQuantity)
				r.Delete("/cart/items/{productId}", cartHandler.RemoveItem)

				r.Get("/wishlist", wishlistHandler.Get)
				r.Post("/wishlist/{productId}/toggle", wishlistHandler.Toggle)

				r.Post("/checkout", checkoutHandler.Checkout)
				r.Get("/orders", checkoutHandler.ListOrders)
			})
		})
	})

	return r
}
