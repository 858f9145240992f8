package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig tunes the breaker in front of one upstream.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string
	// MaxRequests is how many probes a half-open breaker lets through.
	MaxRequests uint32
	// Interval clears the closed-state counts. Zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been counted.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig opens after half of at least five calls fail
// and probes again after thirty seconds.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

func (cfg CircuitBreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cfg.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
}

// FallbackFunc answers in place of an open breaker. err is ErrCircuitOpen or
// ErrTooManyRequests.
type FallbackFunc func(ctx context.Context, err error) (*http.Response, error)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTooManyRequests is returned when a half-open breaker is already probing.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Calls refused by an open or probing circuit breaker",
		},
		[]string{"name", "fallback"},
	)
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// CircuitBreakerClient guards a Client with a breaker. Transport errors and
// 5xx answers count as failures; a 5xx is turned into an AppError before the
// caller sees it. 4xx answers, 401 included, pass through untouched.
type CircuitBreakerClient struct {
	client   *Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	logger   *slog.Logger
	fallback FallbackFunc
	name     string
}

// NewCircuitBreakerClient wraps client.
func NewCircuitBreakerClient(client *Client, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &CircuitBreakerClient{
		client: client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: cfg.readyToTrip,
			// A caller that gave up says nothing about the upstream.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				breakerState.WithLabelValues(name).Set(stateValue(to))
			},
		}),
		logger: logger,
		name:   cfg.Name,
	}
}

// WithFallback returns a copy that answers rejected calls with fn.
func (c *CircuitBreakerClient) WithFallback(fn FallbackFunc) *CircuitBreakerClient {
	cpy := *c
	cpy.fallback = fn
	return &cpy
}

// Do sends req through the breaker.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, ParseResponseError(resp, c.name)
		}
		return resp, nil
	})
	if err == nil {
		return resp, nil
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		breakerRejections.WithLabelValues(c.name, fmt.Sprint(c.fallback != nil)).Inc()
		if c.fallback != nil {
			c.logger.WarnContext(ctx, "circuit breaker rejected call, using fallback",
				slog.String("breaker", c.name),
				slog.String("url", req.URL.Path),
			)
			return c.fallback(ctx, err)
		}
	}
	return nil, err
}

// Send builds a request with an optional JSON body and sends it through the
// breaker. The body is replayable so idempotent retries can resend it.
func (c *CircuitBreakerClient) Send(ctx context.Context, method, url string, body []byte, header http.Header) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.Do(ctx, req)
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
