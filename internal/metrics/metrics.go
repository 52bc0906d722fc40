// Package metrics exposes Prometheus collectors for the postshelf service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeHTTPError   = "http_error"
	OutcomeNetworkFail = "network_error"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamRequestsTotal      *prometheus.CounterVec
	upstreamDurationSeconds    *prometheus.HistogramVec
	recordMutationsTotal       *prometheus.CounterVec
	activeRenders              prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)

		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postshelf_upstream_requests_total",
				Help: "Total number of upstream calls, labeled by service and outcome.",
			},
			[]string{"service", "outcome"},
		)

		upstreamDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "postshelf_upstream_duration_seconds",
				Help:    "Histogram of upstream call latencies, labeled by service.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"service"},
		)

		recordMutationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postshelf_record_mutations_total",
				Help: "Total number of record store mutations, labeled by operation.",
			},
			[]string{"op"},
		)

		activeRenders = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "postshelf_active_renders",
				Help: "Number of render attempts currently in flight.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveUpstream records one upstream call. Status zero means the call never
// produced a response.
func ObserveUpstream(service string, status int, duration time.Duration) {
	Init()
	upstreamRequestsTotal.WithLabelValues(service, UpstreamOutcome(status)).Inc()
	upstreamDurationSeconds.WithLabelValues(service).Observe(duration.Seconds())
}

// UpstreamOutcome maps an upstream status code onto an outcome label.
func UpstreamOutcome(status int) string {
	switch {
	case status == 0:
		return OutcomeNetworkFail
	case status >= 200 && status < 300:
		return OutcomeSuccess
	default:
		return OutcomeHTTPError
	}
}

// ObserveRecordMutation counts a create, update or delete.
func ObserveRecordMutation(op string) {
	Init()
	recordMutationsTotal.WithLabelValues(op).Inc()
}

// IncActiveRenders increments the in-flight render gauge.
func IncActiveRenders() {
	Init()
	activeRenders.Inc()
}

// DecActiveRenders decrements the in-flight render gauge.
func DecActiveRenders() {
	Init()
	activeRenders.Dec()
}
