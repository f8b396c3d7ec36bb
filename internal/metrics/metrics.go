// Package metrics holds the Prometheus collectors for the API server.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "peer_support"

// Metrics groups every collector.  A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	Registrations      *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	MessagesCreated    prometheus.Counter
	ResponsesCreated   *prometheus.CounterVec
	ResponseConflicts  prometheus.Counter
	AuthFailures       *prometheus.CounterVec
	ContentStoreErrors *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Accounts created by role",
		}, []string{"role"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_status_transitions_total",
			Help:      "User status changes by target status",
		}, []string{"status"}),
		MessagesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_created_total",
			Help:      "Messages posted by clients",
		}),
		ResponsesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_created_total",
			Help:      "Responses attached by responder role",
		}, []string{"role"}),
		ResponseConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_conflicts_total",
			Help:      "Response attempts rejected because the message already had one",
		}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Failed logins and token checks by reason",
		}, []string{"reason"}),
		ContentStoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_store_errors_total",
			Help:      "Content store failures by operation",
		}, []string{"op"}),
	}
}

func (m *Metrics) Registered(role string) {
	if m != nil {
		m.Registrations.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) StatusChanged(status string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) MessageCreated() {
	if m != nil {
		m.MessagesCreated.Inc()
	}
}

func (m *Metrics) ResponseCreated(role string) {
	if m != nil {
		m.ResponsesCreated.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) ResponseConflict() {
	if m != nil {
		m.ResponseConflicts.Inc()
	}
}

func (m *Metrics) AuthFailed(reason string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ContentStoreFailed(op string) {
	if m != nil {
		m.ContentStoreErrors.WithLabelValues(op).Inc()
	}
}

// Middleware records request count, latency and in-flight gauge.  The
// route template is used as the path label to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
