// Package metrics exposes Prometheus collectors for the extraction service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	matchesTotal         *prometheus.CounterVec
	fetchesTotal         *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	rateLimitWaitSeconds *prometheus.HistogramVec
	circuitOpen          *prometheus.GaugeVec
	recordsEmittedTotal  *prometheus.CounterVec
	dedupRejectedTotal   prometheus.Counter
	activeMatchExtracts  prometheus.Gauge

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		matchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_matches_total",
				Help: "Matches settled, labeled by sport and terminal state.",
			},
			[]string{"sport", "state"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_fetches_total",
				Help: "Fetch attempts, labeled by resource class and outcome.",
			},
			[]string{"class", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extraction_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies by resource class.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"class"},
		)

		rateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extraction_rate_limit_wait_seconds",
				Help:    "Histogram of rate limit wait durations by class.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"class"},
		)

		circuitOpen = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "extraction_circuit_open",
				Help: "1 while a resource class circuit is open.",
			},
			[]string{"class"},
		)

		recordsEmittedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_records_emitted_total",
				Help: "Records accepted into the output dataset, by sport.",
			},
			[]string{"sport"},
		)

		dedupRejectedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "extraction_dedup_rejected_total",
				Help: "Records rejected as duplicates of an admitted key.",
			},
		)

		activeMatchExtracts = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "extraction_active_matches",
				Help: "Matches currently in the Fetching state.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveMatch counts a settled match.
func ObserveMatch(sport, state string) {
	if matchesTotal == nil {
		return
	}
	matchesTotal.WithLabelValues(sport, state).Inc()
}

// ObserveFetch counts one fetch attempt and its latency.
func ObserveFetch(class, outcome string, duration time.Duration) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(class, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(class).Observe(duration.Seconds())
}

// ObserveRateLimitWait records how long a caller was held by the limiter.
func ObserveRateLimitWait(class string, duration time.Duration) {
	if rateLimitWaitSeconds == nil {
		return
	}
	rateLimitWaitSeconds.WithLabelValues(class).Observe(duration.Seconds())
}

// SetCircuitOpen flips the circuit gauge for a class.
func SetCircuitOpen(class string, open bool) {
	if circuitOpen == nil {
		return
	}
	v := 0.0
	if open {
		v = 1.0
	}
	circuitOpen.WithLabelValues(class).Set(v)
}

// ObserveRecordEmitted counts an accepted output record.
func ObserveRecordEmitted(sport string) {
	if recordsEmittedTotal == nil {
		return
	}
	recordsEmittedTotal.WithLabelValues(sport).Inc()
}

// ObserveDedupRejected counts a duplicate rejection.
func ObserveDedupRejected() {
	if dedupRejectedTotal == nil {
		return
	}
	dedupRejectedTotal.Inc()
}

// IncActiveMatches marks a match entering the Fetching state.
func IncActiveMatches() {
	if activeMatchExtracts == nil {
		return
	}
	activeMatchExtracts.Inc()
}

// DecActiveMatches marks a match leaving the Fetching state.
func DecActiveMatches() {
	if activeMatchExtracts == nil {
		return
	}
	activeMatchExtracts.Dec()
}
