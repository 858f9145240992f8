package middleware

import (
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// AuthenticatedFunc reports whether the BFF currently holds a session.
type AuthenticatedFunc func() bool

// RequireSession rejects requests with 401 while the BFF is anonymous so
// per-user endpoints never reach the upstream without a token.
func RequireSession(authenticated AuthenticatedFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authenticated() {
				err := apperrors.Unauthenticated("log in to continue")
				httputil.WriteJSON(w, err.Status, httputil.Response{
					Error: &httputil.ErrorResponse{Code: err.Code, Message: err.Message},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks responses as uncacheable. Session-bound data such as the cart
// must never be served from a shared cache.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
