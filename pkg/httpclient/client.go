package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"
)

// Config tunes the outbound HTTP client.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int

	// RequestsPerSecond throttles outgoing requests. 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns defaults for a client talking to one upstream.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
		Burst:           1,
	}
}

// Client sends requests with retries, throttling and trace propagation.
// Only idempotent methods are retried; a POST is sent at most once.
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
}

// New builds a Client with its own pooled transport.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	c := &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config:     cfg,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return c
}

// Do sends req. Transport errors and 5xx answers other than 501 are retried
// with jittered exponential backoff when the method is idempotent. The last
// answer is returned as is, whatever its status.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	retries := c.config.MaxRetries
	if !isIdempotent(req.Method) {
		retries = 0
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := c.pause(ctx, attempt); err != nil {
				return nil, err
			}
			if err := rewind(req); err != nil {
				return nil, err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for rate limiter: %w", err)
			}
		}

		resp, err := c.httpClient.Do(req)
		last := attempt >= retries
		switch {
		case err != nil:
			if last || !isRetryableError(err) {
				return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
			}
		case retryableStatus(resp.StatusCode) && !last:
			_ = resp.Body.Close()
		default:
			return resp, nil
		}
	}
}

// pause waits out the backoff before the given retry.
func (c *Client) pause(ctx context.Context, attempt int) error {
	wait := min(c.config.RetryWaitMin*time.Duration(1<<uint(attempt-1)), c.config.RetryWaitMax)
	t := time.NewTimer(addJitter(wait))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError && status != http.StatusNotImplemented
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// addJitter spreads d by up to 25% either way.
func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) * 0.25
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

// isRetryableError reports network failures that were not caused by the
// caller's own context.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
