// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	calculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zakat_engine",
			Subsystem: "obligation",
			Name:      "calculations_total",
			Help:      "Total number of obligation calculations.",
		},
		[]string{"methodology", "obligated"},
	)

	calculationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "zakat_engine",
			Subsystem: "obligation",
			Name:      "calculation_duration_seconds",
			Help:      "Duration of full obligation calculations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	lifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zakat_engine",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of lifecycle status transitions.",
		},
		[]string{"from", "to"},
	)

	priceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zakat_engine",
			Subsystem: "pricing",
			Name:      "fetches_total",
			Help:      "Total number of price resolutions by source.",
		},
		[]string{"source", "success"},
	)

	rotationRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zakat_engine",
			Subsystem: "rotation",
			Name:      "records_total",
			Help:      "Total records seen by key-rotation sweeps.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		calculations,
		calculationDuration,
		lifecycleTransitions,
		priceFetches,
		rotationRecords,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordCalculation records one obligation calculation.
func RecordCalculation(methodology string, obligated bool, duration time.Duration) {
	result := "false"
	if obligated {
		result = "true"
	}
	calculations.WithLabelValues(methodology, result).Inc()
	if duration > 0 {
		calculationDuration.Observe(duration.Seconds())
	}
}

// RecordTransition records one lifecycle status transition.
func RecordTransition(from, to string) {
	lifecycleTransitions.WithLabelValues(from, to).Inc()
}

// RecordPriceFetch records one price resolution attempt for a source.
func RecordPriceFetch(source string, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	priceFetches.WithLabelValues(source, result).Inc()
}

// RecordRotation records the outcome for one record in a rotation sweep.
func RecordRotation(result string) {
	rotationRecords.WithLabelValues(result).Inc()
}

// RecordRotationCount records one outcome for n records at once.
func RecordRotationCount(result string, n int) {
	rotationRecords.WithLabelValues(result).Add(float64(n))
}
