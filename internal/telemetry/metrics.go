package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ReadingsReceived counts readings accepted per transport
	ReadingsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "centerville",
			Name:      "readings_received_total",
			Help:      "Total number of readings accepted and forwarded, by transport",
		},
		[]string{"transport"},
	)

	// ReadingsSuppressed counts short-range readings suppressed by arbitration
	ReadingsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "centerville",
			Name:      "readings_suppressed_total",
			Help:      "Total number of short-range readings suppressed while long-range was active",
		},
	)

	// ReadingsDropped counts readings lost to decode failures or backpressure
	ReadingsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "centerville",
			Name:      "readings_dropped_total",
			Help:      "Total number of readings dropped",
		},
		[]string{"stage", "reason"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(ReadingsReceived)
		prometheus.DefaultRegisterer.Register(ReadingsSuppressed)
		prometheus.DefaultRegisterer.Register(ReadingsDropped)
	})
}
