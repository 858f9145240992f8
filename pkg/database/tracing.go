package database

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/storefront/pkg/database"

// TracingHook is a go-redis hook that wraps every command in a client span
// and logs commands slower than a threshold. Command arguments are never
// recorded because cached values include credentials.
type TracingHook struct {
	slowThreshold time.Duration
	logger        *slog.Logger
}

var _ redis.Hook = (*TracingHook)(nil)

// NewTracingHook creates a hook. A zero threshold or nil logger disables slow
// command logging.
func NewTracingHook(slowThreshold time.Duration, logger *slog.Logger) *TracingHook {
	return &TracingHook{slowThreshold: slowThreshold, logger: logger}
}

func (h *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, end := h.start(ctx, "dial", 0)
		conn, err := next(ctx, network, addr)
		end(err)
		return conn, err
	}
}

func (h *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, end := h.start(ctx, strings.ToLower(cmd.Name()), 1)
		err := next(ctx, cmd)
		end(err)
		return err
	}
}

func (h *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, end := h.start(ctx, "pipeline", len(cmds))
		err := next(ctx, cmds)
		end(err)
		return err
	}
}

// start opens a span for operation. The returned function ends it; a missing
// key (redis.Nil) is not an error.
func (h *TracingHook) start(ctx context.Context, operation string, commands int) (context.Context, func(error)) {
	begin := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "redis."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", operation),
			attribute.Int("db.redis.num_cmd", commands),
		),
	)

	return ctx, func(err error) {
		if errors.Is(err, redis.Nil) {
			err = nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if h.slowThreshold <= 0 || h.logger == nil {
			return
		}
		if elapsed := time.Since(begin); elapsed >= h.slowThreshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			h.logger.WarnContext(ctx, "slow redis command", attrs...)
		}
	}
}
