package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists the origins allowed to call the BFF. "*" allows
	// any origin.
	AllowedOrigins []string

	// AllowedMethods defaults to GET, POST, PUT, DELETE, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders defaults to Accept, Content-Type, X-Correlation-ID,
	// Last-Event-ID.
	AllowedHeaders []string

	// ExposedHeaders is the list of headers the browser may read.
	ExposedHeaders []string

	// MaxAge is how long (in seconds) preflight results can be cached.
	// Defaults to 3600 if 0.
	MaxAge int

	// AllowCredentials lets the browser send cookies. With a wildcard origin
	// the request origin is echoed, since browsers reject "*" on credentialed
	// responses.
	AllowCredentials bool
}

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Accept", "Content-Type", "X-Correlation-ID", "Last-Event-ID"}
)

// DefaultCORSConfig returns a permissive configuration for local development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         3600,
	}
}

// CORS returns middleware that answers preflight requests and sets the
// Access-Control headers on every response to an allowed origin.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaultCORSMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaultCORSHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	anyOrigin := false
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			anyOrigin = true
		}
		originSet[o] = struct{}{}
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	// allowOrigin returns the Access-Control-Allow-Origin value for origin,
	// or "" when it is not allowed.
	allowOrigin := func(origin string) string {
		switch {
		case anyOrigin && cfg.AllowCredentials:
			return origin
		case anyOrigin:
			return "*"
		case origin == "":
			return ""
		}
		if _, ok := originSet[origin]; ok {
			return origin
		}
		return ""
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			allowed := allowOrigin(origin)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
