// Package activity records what shoppers do through the storefront and ships
// it to Kafka as events. Recording never blocks a request: events are queued
// and published by a single background worker, and dropped when the queue is
// full.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Domains and actions.
const (
	DomainSession  = "session"
	DomainCart     = "cart"
	DomainWishlist = "wishlist"
	DomainCheckout = "checkout"

	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionRegister    = "register"
	ActionItemAdded   = "item_added"
	ActionItemUpdated = "item_updated"
	ActionItemRemoved = "item_removed"
	ActionCleared     = "cleared"
	ActionToggled     = "toggled"
	ActionStarted     = "started"
)

const source = "storefront"

// Activity is one thing a shopper did.
type Activity struct {
	Domain string
	Action string
	// UserID defaults to the user ID carried by the request context.
	UserID string
	Data   any
}

// EventType is "<domain>.<action>".
func (a Activity) EventType() string {
	return a.Domain + "." + a.Action
}

// Recorder accepts activities.
type Recorder interface {
	Record(ctx context.Context, a Activity)
}

// Nop discards every activity.
type Nop struct{}

func (Nop) Record(context.Context, Activity) {}

// Publisher is the part of kafka.Producer the stream uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

type queued struct {
	ctx   context.Context
	topic string
	event *kafka.Event
}

// Stream is a Recorder that publishes to Kafka.
type Stream struct {
	pub     Publisher
	timeout time.Duration
	logger  *slog.Logger

	queue chan queued
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewStream starts a stream with room for buffer pending events.
func NewStream(pub Publisher, buffer int, timeout time.Duration, logger *slog.Logger) *Stream {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Stream{
		pub:     pub,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan queued, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Record queues a. The request's correlation ID and trace context go with it.
func (s *Stream) Record(ctx context.Context, a Activity) {
	userID := a.UserID
	if userID == "" {
		userID = logger.UserIDFromContext(ctx)
	}

	event, err := kafka.NewEvent(a.EventType(), userID, "user", source, a.Data)
	if err != nil {
		s.logger.ErrorContext(ctx, "activity not recorded",
			slog.String("event_type", a.EventType()),
			slog.String("error", err.Error()),
		)
		metrics.Activities.WithLabelValues(a.EventType(), metrics.ResultError).Inc()
		return
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- queued{ctx: context.WithoutCancel(ctx), topic: kafka.Topic(a.Domain, a.Action), event: event}:
	default:
		metrics.Activities.WithLabelValues(a.EventType(), metrics.ResultDropped).Inc()
		s.logger.WarnContext(ctx, "activity queue full, event dropped",
			slog.String("event_type", a.EventType()),
		)
	}
}

func (s *Stream) run() {
	defer close(s.done)
	for q := range s.queue {
		ctx, cancel := context.WithTimeout(q.ctx, s.timeout)
		err := s.pub.Publish(ctx, q.topic, q.event)
		cancel()

		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultError
		}
		metrics.Activities.WithLabelValues(q.event.EventType, result).Inc()
	}
}

// Close stops accepting activities and waits for queued ones to be published
// or for ctx to end.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
