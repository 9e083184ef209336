// Package observability collects Prometheus metrics for the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus registry and application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sweepsTotal     prometheus.Counter
	sweepDuration   prometheus.Histogram
	accountsChecked prometheus.Gauge
	conflictsOpen   prometheus.Gauge
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	sweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_sweeps_total",
		Help: "Completed consistency sweeps.",
	})
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gatehouse_sweep_duration_seconds",
		Help:    "Wall-clock duration of consistency sweeps.",
		Buckets: prometheus.DefBuckets,
	})
	accountsChecked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_sweep_accounts_checked",
		Help: "Accounts examined by the most recent sweep.",
	})
	conflictsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_sweep_conflicts_found",
		Help: "Partition conflicts found by the most recent sweep.",
	})
	registry.MustRegister(requests, duration, sweeps, sweepDuration, accountsChecked, conflictsOpen)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		sweepsTotal:     sweeps,
		sweepDuration:   sweepDuration,
		accountsChecked: accountsChecked,
		conflictsOpen:   conflictsOpen,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSweep records the outcome of a consistency sweep.
func (m *Metrics) ObserveSweep(accountsChecked, conflictsFound int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
	m.sweepDuration.Observe(elapsed.Seconds())
	m.accountsChecked.Set(float64(accountsChecked))
	m.conflictsOpen.Set(float64(conflictsFound))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
