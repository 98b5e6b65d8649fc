// Package metrics exposes Prometheus collectors for the monitor service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsDiscoveredTotal *prometheus.CounterVec
	documentsNewTotal        *prometheus.CounterVec
	fetchRetriesTotal        *prometheus.CounterVec
	fetchFailuresTotal       *prometheus.CounterVec
	cycleDurationSeconds     prometheus.Histogram
	alertsDispatchedTotal    *prometheus.CounterVec
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		documentsDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_documents_discovered_total",
				Help: "Total documents extracted from source pages, labeled by source.",
			},
			[]string{"source"},
		)

		documentsNewTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_documents_new_total",
				Help: "Total documents that survived deduplication, labeled by source.",
			},
			[]string{"source"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_fetch_retries_total",
				Help: "Total fetch retry attempts, labeled by host.",
			},
			[]string{"host"},
		)

		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_fetch_failures_total",
				Help: "Total fetches that failed after all attempts, labeled by host.",
			},
			[]string{"host"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monitor_cycle_duration_seconds",
				Help:    "Histogram of full monitoring cycle durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		alertsDispatchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_alerts_dispatched_total",
				Help: "Total alerts delivered, labeled by tier.",
			},
			[]string{"tier"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscovered records documents extracted from one source check.
func ObserveDiscovered(source string, found, fresh int) {
	documentsDiscoveredTotal.WithLabelValues(source).Add(float64(found))
	documentsNewTotal.WithLabelValues(source).Add(float64(fresh))
}

// ObserveFetchRetry increments the retry counter for a host.
func ObserveFetchRetry(host string) {
	fetchRetriesTotal.WithLabelValues(host).Inc()
}

// ObserveFetchFailure increments the failure counter for a host.
func ObserveFetchFailure(host string) {
	fetchFailuresTotal.WithLabelValues(host).Inc()
}

// ObserveCycle records the duration of one monitoring cycle.
func ObserveCycle(duration time.Duration) {
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveAlertDispatched increments the dispatched counter for a tier.
func ObserveAlertDispatched(tier string) {
	alertsDispatchedTotal.WithLabelValues(tier).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
