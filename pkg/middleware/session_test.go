package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireSession_Anonymous_Returns401(t *testing.T) {
	called := false
	handler := RequireSession(func() bool { return false })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "UNAUTHENTICATED")
	assert.False(t, called)
}

func TestRequireSession_Authenticated_PassesThrough(t *testing.T) {
	handler := RequireSession(func() bool { return true })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestNoStore(t *testing.T) {
	handler := NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wishlist", nil))

	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}
