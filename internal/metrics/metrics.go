// Package metrics provides Prometheus instrumentation for Darius Projects.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Auth
	loginAttemptsTotal *prometheus.CounterVec
	tokensIssuedTotal  prometheus.Counter
	tokenRejectedTotal *prometheus.CounterVec
	permissionDenials  *prometheus.CounterVec

	// Projects
	assignmentsTotal       *prometheus.CounterVec
	statusTransitionsTotal *prometheus.CounterVec

	// Notifications
	notificationsEnqueued *prometheus.CounterVec
	notificationsSent     *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "darius",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		loginAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),

		tokensIssuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Access tokens issued.",
		}),

		tokenRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "auth",
			Name:      "tokens_rejected_total",
			Help:      "Access tokens rejected by reason.",
		}, []string{"reason"}),

		permissionDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "auth",
			Name:      "permission_denials_total",
			Help:      "Requests denied by the permission engine.",
		}, []string{"permission"}),

		assignmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "projects",
			Name:      "assignments_total",
			Help:      "Project assignment operations by outcome.",
		}, []string{"operation", "outcome"}),

		statusTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "projects",
			Name:      "status_transitions_total",
			Help:      "Project status transitions.",
		}, []string{"from", "to"}),

		notificationsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "notify",
			Name:      "enqueued_total",
			Help:      "Notification tasks enqueued by kind.",
		}, []string{"kind"}),

		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darius",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"kind", "outcome"}),
	}
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records a completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLoginAttempt records a login attempt outcome ("success" or "failure").
func (m *Metrics) RecordLoginAttempt(outcome string) {
	m.loginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenIssued increments the issued token counter.
func (m *Metrics) RecordTokenIssued() {
	m.tokensIssuedTotal.Inc()
}

// RecordTokenRejected records a rejected token by reason ("expired", "invalid").
func (m *Metrics) RecordTokenRejected(reason string) {
	m.tokenRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordPermissionDenial records a permission engine denial.
func (m *Metrics) RecordPermissionDenial(permission string) {
	m.permissionDenials.WithLabelValues(permission).Inc()
}

// RecordAssignment records an assignment operation outcome.
func (m *Metrics) RecordAssignment(operation, outcome string) {
	m.assignmentsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordStatusTransition records a project status transition.
func (m *Metrics) RecordStatusTransition(from, to string) {
	m.statusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordNotificationEnqueued records an enqueued notification task.
func (m *Metrics) RecordNotificationEnqueued(kind string) {
	m.notificationsEnqueued.WithLabelValues(kind).Inc()
}

// RecordNotificationSent records a notification delivery outcome.
func (m *Metrics) RecordNotificationSent(kind, outcome string) {
	m.notificationsSent.WithLabelValues(kind, outcome).Inc()
}
