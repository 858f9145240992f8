package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results recorded on producer writes.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	// ProducerWrites counts message writes by topic, event type and result.
	ProducerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_writes_total",
			Help: "Kafka message writes by topic, event type and result",
		},
		[]string{"topic", "event_type", "result"},
	)

	// ProducerMessageBytes observes the encoded size of every message handed
	// to the writer, whether or not the write succeeds.
	ProducerMessageBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_message_bytes",
			Help:    "Encoded size of Kafka message values",
			Buckets: prometheus.ExponentialBuckets(128, 2, 8),
		},
		[]string{"topic"},
	)

	// ProducerWriteSeconds observes how long the writer took, split by result
	// so slow failures do not hide inside the success latency.
	ProducerWriteSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_write_seconds",
			Help:    "Duration of Kafka writes in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic", "result"},
	)
)

func observeWrite(topic, eventType string, size int, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	ProducerWrites.WithLabelValues(topic, eventType, result).Inc()
	ProducerMessageBytes.WithLabelValues(topic).Observe(float64(size))
	ProducerWriteSeconds.WithLabelValues(topic, result).Observe(time.Since(start).Seconds())
}
