// Package metrics exposes Prometheus collectors for the ingestion
// service.
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
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchCostUnitsTotal        *prometheus.CounterVec
	chaptersScrapedTotal       *prometheus.CounterVec
	extractionItemsTotal       *prometheus.CounterVec
	jobTransitionsTotal        *prometheus.CounterVec
	jobStageDurationSeconds    *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecrawler_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)

		fetchCostUnitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecrawler_fetch_cost_units_total",
				Help: "Total metered fetch cost units consumed, labeled by tier.",
			},
			[]string{"tier"},
		)

		chaptersScrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecrawler_chapters_scraped_total",
				Help: "Total chapters scraped, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		extractionItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecrawler_extraction_items_total",
				Help: "Total extracted items, labeled by topic and confidence.",
			},
			[]string{"topic", "confidence"},
		)

		jobTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecrawler_job_transitions_total",
				Help: "Total extraction job status transitions, labeled by target status.",
			},
			[]string{"status"},
		)

		jobStageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codecrawler_job_stage_duration_seconds",
				Help:    "Histogram of per-stage pipeline durations, labeled by stage.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
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

// ObserveFetch increments the fetch counters for one attempt.
func ObserveFetch(tier string, outcome string, costUnits int) {
	fetchAttemptsTotal.WithLabelValues(tier, outcome).Inc()
	if costUnits > 0 {
		fetchCostUnitsTotal.WithLabelValues(tier).Add(float64(costUnits))
	}
}

// ObserveChapter increments the chapter counter for one extraction.
func ObserveChapter(provider string, outcome string) {
	chaptersScrapedTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveItems adds extracted items for a topic and confidence tier.
func ObserveItems(topic string, confidence string, count int) {
	if count > 0 {
		extractionItemsTotal.WithLabelValues(topic, confidence).Add(float64(count))
	}
}

// ObserveTransition increments the job transition counter.
func ObserveTransition(status string) {
	jobTransitionsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long one pipeline stage took.
func ObserveStage(stage string, duration time.Duration) {
	jobStageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
