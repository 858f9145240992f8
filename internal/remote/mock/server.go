// Package mock is an in-memory stand-in for the storefront REST API. It
// speaks the same wire format, including its quirks: mutation responses that
// carry bare product IDs, 404 for a user without a cart, and the raw "token"
// header on cart, wishlist and order routes.
package mock

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
)

const (
	tokenSecret = "storefront-mock-secret"
	apiPrefix   = "/api/v1"
)

// Hook runs before a request is handled. Tests use it to block or observe
// requests. route is the chi pattern below the API root, e.g.
// "/cart/{productId}".
type Hook func(method, route string)

type account struct {
	user         domain.User
	passwordHash []byte
	phone        string
}

type line struct {
	id        string
	productID string
	count     int
}

type cart struct {
	id    string
	lines []line
}

type failure struct {
	status  int
	message string
}

// Server is a fake storefront API listening on a local port.
type Server struct {
	*httptest.Server

	issuer *auth.Issuer

	mu         sync.Mutex
	accounts   map[string]*account // by email
	products   []domain.Product
	categories []domain.Category
	brands     []domain.Brand
	carts      map[string]*cart    // by user ID
	wishlists  map[string][]string // by user ID
	orders     map[string][]domain.Order
	revoked    map[string]bool
	failures   map[string][]failure // by "METHOD route"
	calls      map[string]int
	hook       Hook
}

// NewServer starts a fake API seeded with a small catalog. Close it when done.
func NewServer() *Server {
	s := &Server{
		issuer:    auth.NewIssuer(tokenSecret, 0),
		accounts:  make(map[string]*account),
		carts:     make(map[string]*cart),
		wishlists: make(map[string][]string),
		orders:    make(map[string][]domain.Order),
		revoked:   make(map[string]bool),
		failures:  make(map[string][]failure),
		calls:     make(map[string]int),
	}
	s.seedCatalog()
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the API root to hand to remote.New.
func (s *Server) BaseURL() string {
	return s.URL + apiPrefix
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Post("/auth/signin", s.signIn)
		r.Post("/auth/signup", s.signUp)
		r.Post("/auth/forgotPasswords", s.forgotPassword)

		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Get("/categories", s.listCategories)
		r.Get("/brands", s.listBrands)
		r.Get("/brands/{id}", s.getBrand)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/cart", s.getCart)
			r.Post("/cart", s.addToCart)
			r.Delete("/cart", s.clearCart)
			r.Put("/cart/{productId}", s.updateCartItem)
			r.Delete("/cart/{productId}", s.removeCartItem)

			r.Get("/wishlist", s.getWishlist)
			r.Post("/wishlist", s.addToWishlist)
			r.Delete("/wishlist/{productId}", s.removeFromWishlist)

			r.Post("/orders/checkout-session/{cartId}", s.checkoutSession)
			r.Get("/orders/user/{userId}", s.listOrders)
		})
	})
	return r
}

// SetHook installs h, replacing any previous hook. Pass nil to remove it.
func (s *Server) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// FailNext makes the next request to method and route answer with status and
// the API's error body. Calls queue up.
func (s *Server) FailNext(method, route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + route
	s.failures[key] = append(s.failures[key], failure{status: status, message: message})
}

// Calls returns how many requests reached method and route.
func (s *Server) Calls(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+route]
}

// TotalCalls returns how many requests the server received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// instrument counts the request, runs the hook and serves queued failures.
// The route is resolved up front so hooks and failures see the pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.Routes != nil {
			if pattern := rctx.Routes.Find(chi.NewRouteContext(), r.Method, r.URL.Path); pattern != "" {
				route = pattern
			}
		}
		route = strings.TrimPrefix(route, apiPrefix)
		key := r.Method + " " + route

		s.mu.Lock()
		s.calls[key]++
		hook := s.hook
		var fail *failure
		if queued := s.failures[key]; len(queued) > 0 {
			fail = &queued[0]
			s.failures[key] = queued[1:]
		}
		s.mu.Unlock()

		if hook != nil {
			hook(r.Method, route)
		}
		if fail != nil {
			writeFail(w, fail.status, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newID returns a 24-character hex ID like the API's document IDs.
func newID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"statusMsg": "fail", "message": message})
}

func writeValidation(w http.ResponseWriter, param, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"message": "fail",
		"errors":  map[string]string{"param": param, "msg": msg, "location": "body"},
	})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
