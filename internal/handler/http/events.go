package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/notify"
)

// Event names on the stream.
const (
	EventSession  = "session"
	EventCart     = "cart"
	EventWishlist = "wishlist"
)

var eventOrder = []string{EventSession, EventCart, EventWishlist}

// EventsHandler streams session, cart and wishlist changes as server-sent
// events so every open page re-renders without polling.
type EventsHandler struct {
	svc       Services
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewEventsHandler creates a new event stream handler.
func NewEventsHandler(svc Services, heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{svc: svc, heartbeat: heartbeat, logger: logger}
}

// eventSink coalesces published values per event name. Subscribers run on the
// publisher's goroutine, so put never blocks; the stream writes only the
// newest value of each kind.
type eventSink struct {
	mu      sync.Mutex
	pending map[string]notify.Versioned
	wake    chan struct{}
}

func newEventSink() *eventSink {
	return &eventSink{
		pending: make(map[string]notify.Versioned, len(eventOrder)),
		wake:    make(chan struct{}, 1),
	}
}

func (s *eventSink) put(name string, v notify.Versioned) {
	s.mu.Lock()
	if cur, ok := s.pending[name]; ok && cur.Seq() > v.Seq() {
		s.mu.Unlock()
		return
	}
	s.pending[name] = v
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *eventSink) take() map[string]notify.Versioned {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = make(map[string]notify.Versioned, len(eventOrder))
	return out
}

// Stream handles GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server's write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	sink := newEventSink()
	unsubscribe := []func(){
		h.svc.Session.Subscribe(func(v domain.Session) { sink.put(EventSession, v) }),
		h.svc.Cart.Subscribe(func(v domain.Cart) { sink.put(EventCart, v) }),
		h.svc.Wishlist.Subscribe(func(v domain.Wishlist) { sink.put(EventWishlist, v) }),
	}
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	metrics.EventSubscribers.Inc()
	defer metrics.EventSubscribers.Dec()

	// Current state first; put keeps whichever of this and a concurrent
	// publish is newer.
	sink.put(EventSession, h.svc.Session.Current())
	sink.put(EventCart, h.svc.Cart.Current())
	sink.put(EventWishlist, h.svc.Wishlist.Current())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), "event stream not flushable", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	sent := make(map[string]uint64, len(eventOrder))
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case <-sink.wake:
			batch := sink.take()
			for _, name := range eventOrder {
				v, ok := batch[name]
				if !ok {
					continue
				}
				if last, seen := sent[name]; seen && v.Seq() < last {
					continue
				}
				sent[name] = v.Seq()
				if err := h.writeEvent(w, name, v); err != nil {
					return
				}
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (h *EventsHandler) writeEvent(w http.ResponseWriter, name string, v notify.Versioned) error {
	var payload any = v
	if c, ok := v.(domain.Cart); ok {
		payload = newCartView(c)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("event not encodable", slog.String("event", name), slog.String("error", err.Error()))
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
