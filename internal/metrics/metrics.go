// Package metrics holds the Prometheus collectors of the storefront stores.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
)

var (
	// Mutations counts synchronizer operations by collection, operation and result.
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sync_operations_total",
			Help: "Total number of cart and wishlist operations by outcome",
		},
		[]string{"collection", "op", "result"},
	)

	// MutationDuration observes how long an operation took, queueing included.
	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_sync_operation_duration_seconds",
			Help:    "Duration of cart and wishlist operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "op"},
	)

	// StaleResults counts server answers dropped because the session changed
	// while the call was in flight.
	StaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sync_stale_results_total",
			Help: "Total number of server results discarded after a session change",
		},
		[]string{"collection"},
	)

	// Logins counts login attempts by result.
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_logins_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"result"},
	)

	// Logouts counts session teardowns by reason.
	Logouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_logouts_total",
			Help: "Total number of session teardowns by reason",
		},
		[]string{"reason"},
	)

	// CacheChanges counts change signals received from other instances.
	CacheChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_remote_changes_total",
			Help: "Total number of cache changes announced by other instances",
		},
		[]string{"key"},
	)

	// Activities counts shopper activity events by type and delivery result.
	Activities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_activity_events_total",
			Help: "Total number of shopper activity events by delivery result",
		},
		[]string{"event_type", "result"},
	)

	// EventSubscribers is the number of open event streams.
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_event_subscribers",
			Help: "Number of connected event stream clients",
		},
	)
)

// ObserveOperation records one synchronizer operation.
func ObserveOperation(collection, op string, start time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	Mutations.WithLabelValues(collection, op, result).Inc()
	MutationDuration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}
