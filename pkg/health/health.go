package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// Status is the state of the process or of one dependency.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Response is the body of both probe endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one checker.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Latency  string `json:"latency"`
	Error    string `json:"error,omitempty"`
}

type registration struct {
	check    Checker
	critical bool
}

// Handler serves the liveness and readiness probes.
//
// A failing critical check makes the process unready (503). A failing
// non-critical check only degrades it: the BFF can still serve cached session
// state while the storefront API or the event broker is unreachable.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]registration
	timeout  time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithTimeout bounds each readiness run. The default is five seconds.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// NewHandler returns a Handler with no checkers.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		checkers: make(map[string]registration),
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterCritical adds a checker whose failure marks the process down.
// Registering a name twice replaces the first checker.
func (h *Handler) RegisterCritical(name string, checker Checker) {
	h.register(name, checker, true)
}

// RegisterNonCritical adds a checker whose failure only degrades the process.
func (h *Handler) RegisterNonCritical(name string, checker Checker) {
	h.register(name, checker, false)
}

func (h *Handler) register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = registration{check: checker, critical: critical}
}

// LivenessHandler answers 200 while the process is running.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler runs every checker concurrently and answers 200 when no
// critical checker failed, 503 otherwise.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		checks := h.run(ctx)
		overall := StatusUp
		for _, c := range checks {
			if c.Status == StatusUp {
				continue
			}
			if c.Critical {
				overall = StatusDown
				break
			}
			overall = StatusDegraded
		}

		status := http.StatusOK
		if overall == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeResponse(w, status, Response{
			Status:    overall,
			Timestamp: time.Now().UTC(),
			Checks:    checks,
		})
	}
}

func (h *Handler) run(ctx context.Context) map[string]CheckResult {
	h.mu.RLock()
	regs := make(map[string]registration, len(h.checkers))
	for name, reg := range h.checkers {
		regs[name] = reg
	}
	h.mu.RUnlock()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(regs))
	)
	for name, reg := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := reg.check(ctx)
			res := CheckResult{
				Status:   StatusUp,
				Critical: reg.critical,
				Latency:  time.Since(start).Round(time.Microsecond).String(),
			}
			if err != nil {
				res.Status = StatusDown
				res.Error = err.Error()
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return checks
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
