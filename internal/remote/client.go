// Package remote is the typed client of the storefront REST API. It is pure
// transport: it never reads or writes session or cache state, and every
// credential is passed in by the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront-api"

// authScheme is how an endpoint expects the credential.
type authScheme int

const (
	// authNone sends no credential.
	authNone authScheme = iota
	// authOptionalBearer sends "Authorization: Bearer <token>" when a token is
	// available and nothing otherwise.
	authOptionalBearer
	// authTokenHeader sends the raw token in a "token" header and requires one.
	authTokenHeader
)

// Doer sends one HTTP request. *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Send(ctx context.Context, method, url string, body []byte, header http.Header) (*http.Response, error)
}

// Client calls the storefront API.
type Client struct {
	baseURL string
	http    Doer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a client for the API rooted at baseURL, e.g.
// "https://ecommerce.routemisr.com/api/v1".
func New(baseURL string, doer Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger,
		tracer:  tracing.Tracer("github.com/utafrali/storefront/internal/remote"),
	}
}

type call struct {
	method string
	path   string
	route  string
	query  url.Values
	token  string
	auth   authScheme
	in     any
	out    any
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	ctx, span := c.tracer.Start(ctx, "remote "+cl.method+" "+cl.route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("http.route", cl.route),
		),
	)
	defer func() { tracing.End(span, err) }()

	header := http.Header{}
	switch cl.auth {
	case authTokenHeader:
		if cl.token == "" {
			return apperrors.Unauthenticated("log in to continue")
		}
		header.Set("token", cl.token)
	case authOptionalBearer:
		if cl.token != "" {
			header.Set("Authorization", "Bearer "+cl.token)
		}
	}

	var body []byte
	if cl.in != nil {
		body, err = json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", cl.route, err)
		}
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	resp, err := c.http.Send(ctx, cl.method, target, body, header)
	if err != nil {
		c.logger.ErrorContext(ctx, "storefront api call failed",
			slog.String("method", cl.method),
			slog.String("route", cl.route),
			slog.String("error", err.Error()),
		)
		return c.transportError(err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if !httpclient.IsSuccess(resp.StatusCode) {
		err := httpclient.ParseResponseError(resp, serviceName)
		level := slog.LevelWarn
		if httpclient.IsClientError(resp.StatusCode) {
			level = slog.LevelInfo
		}
		c.logger.Log(ctx, level, "storefront api refused call",
			slog.String("method", cl.method),
			slog.String("route", cl.route),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return apperrors.Remote(http.StatusBadGateway, "read "+cl.route+" response: "+err.Error())
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), cl.out); err != nil {
		return apperrors.Remote(http.StatusBadGateway, "decode "+cl.route+" response: "+err.Error())
	}
	return nil
}
