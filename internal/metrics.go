package internal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"project-tracker-api/internal/models"
)

// Metrics provides Prometheus metrics for HTTP requests and the project
// workflow. It implements workflow.Recorder.
type Metrics struct {
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec

	projectsCreated *prometheus.CounterVec
	statusUpdates   *prometheus.CounterVec
	statusModified  prometheus.Counter
	notifyFailures  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		reqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		reqLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		projectsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projects_created_total",
				Help: "Projects created, by project type",
			},
			[]string{"type"},
		),
		statusUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_status_updates_total",
				Help: "Status update operations, by mode (single or bulk)",
			},
			[]string{"mode"},
		),
		statusModified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "project_status_modified_total",
			Help: "Projects whose status was actually changed",
		}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "project_notifications_failed_total",
			Help: "New-project notifications that could not be delivered",
		}),
		registry: registry,
	}

	registry.MustRegister(m.reqTotal, m.reqLatency, m.projectsCreated,
		m.statusUpdates, m.statusModified, m.notifyFailures)
	return m
}

func (m *Metrics) ProjectCreated(t models.ProjectType) {
	m.projectsCreated.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) StatusUpdated(mode string, modified int) {
	m.statusUpdates.WithLabelValues(mode).Inc()
	m.statusModified.Add(float64(modified))
}

// NotificationFailed counts a dropped or failed notification.
func (m *Metrics) NotificationFailed() {
	m.notifyFailures.Inc()
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Label by route pattern so ids don't explode cardinality.
			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil {
				if pattern := chiCtx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			status := strconv.Itoa(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code for metrics and logging
type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}
