package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	up   Checker = func(context.Context) error { return nil }
	down Checker = func(context.Context) error { return errors.New("connection refused") }
)

func probe(t *testing.T, hf http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	hf.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Timestamp.IsZero())
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("cache", down)

	code, resp := probe(t, h.LivenessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name        string
		critical    map[string]Checker
		nonCritical map[string]Checker
		wantCode    int
		wantStatus  Status
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name:        "all up",
			critical:    map[string]Checker{"cache": up},
			nonCritical: map[string]Checker{"storefront-api": up, "kafka": up},
			wantCode:    http.StatusOK,
			wantStatus:  StatusUp,
		},
		{
			name:        "non-critical down degrades",
			critical:    map[string]Checker{"cache": up},
			nonCritical: map[string]Checker{"storefront-api": down},
			wantCode:    http.StatusOK,
			wantStatus:  StatusDegraded,
		},
		{
			name:        "several non-critical down",
			nonCritical: map[string]Checker{"storefront-api": down, "kafka": down},
			wantCode:    http.StatusOK,
			wantStatus:  StatusDegraded,
		},
		{
			name:       "critical down",
			critical:   map[string]Checker{"cache": down},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDown,
		},
		{
			name:        "critical down wins over degraded",
			critical:    map[string]Checker{"cache": down},
			nonCritical: map[string]Checker{"kafka": down},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			for name, c := range tt.critical {
				h.RegisterCritical(name, c)
			}
			for name, c := range tt.nonCritical {
				h.RegisterNonCritical(name, c)
			}

			code, resp := probe(t, h.ReadinessHandler())

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.Len(t, resp.Checks, len(tt.critical)+len(tt.nonCritical))
			for name := range tt.critical {
				assert.True(t, resp.Checks[name].Critical, name)
			}
			for name := range tt.nonCritical {
				assert.False(t, resp.Checks[name].Critical, name)
			}
		})
	}
}

func TestReadinessHandler_ReportsError(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("storefront-api", down)
	h.RegisterCritical("cache", up)

	_, resp := probe(t, h.ReadinessHandler())

	assert.Equal(t, StatusDown, resp.Checks["storefront-api"].Status)
	assert.Equal(t, "connection refused", resp.Checks["storefront-api"].Error)
	assert.Empty(t, resp.Checks["cache"].Error)
	assert.NotEmpty(t, resp.Checks["cache"].Latency)
}

func TestReadinessHandler_RegisterReplaces(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("cache", down)
	h.RegisterNonCritical("cache", down)

	code, resp := probe(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 1)
}

func TestReadinessHandler_ChecksRunConcurrently(t *testing.T) {
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := NewHandler()
	h.RegisterCritical("a", slow)
	h.RegisterCritical("b", slow)
	h.RegisterCritical("c", slow)

	start := time.Now()
	code, _ := probe(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestReadinessHandler_Timeout(t *testing.T) {
	h := NewHandler(WithTimeout(20 * time.Millisecond))
	h.RegisterCritical("cache", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	code, resp := probe(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["cache"].Error)
}
