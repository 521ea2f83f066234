// Package metrics exposes Prometheus collectors for the article hub.
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
	webhookEventsTotal         *prometheus.CounterVec
	articlesSavedTotal         *prometheus.CounterVec
	repliesTotal               *prometheus.CounterVec
	backupRunsTotal            *prometheus.CounterVec
	backupDurationSeconds      prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		webhookEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articlehub_webhook_events_total",
				Help: "Total webhook events processed, labeled by classification.",
			},
			[]string{"kind"},
		)

		articlesSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articlehub_articles_saved_total",
				Help: "Total article save attempts, labeled by result.",
			},
			[]string{"result"},
		)

		repliesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articlehub_replies_total",
				Help: "Total replies produced, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		backupRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articlehub_backup_runs_total",
				Help: "Total snapshot attempts, labeled by status.",
			},
			[]string{"status"},
		)

		backupDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "articlehub_backup_duration_seconds",
				Help:    "Histogram of snapshot write durations.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articlehub_http_requests_total",
				Help: "Total HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "articlehub_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEvent counts one classified webhook event.
func ObserveEvent(kind string) {
	Init()
	webhookEventsTotal.WithLabelValues(kind).Inc()
}

// ObserveSave counts one article save attempt ("saved", "duplicate", "error").
func ObserveSave(result string) {
	Init()
	articlesSavedTotal.WithLabelValues(result).Inc()
}

// ObserveReply counts one produced reply by outcome.
func ObserveReply(outcome string) {
	Init()
	repliesTotal.WithLabelValues(outcome).Inc()
}

// ObserveBackup records one snapshot attempt.
func ObserveBackup(ok bool, duration time.Duration) {
	Init()
	status := "ok"
	if !ok {
		status = "error"
	}
	backupRunsTotal.WithLabelValues(status).Inc()
	backupDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest records one handled HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
