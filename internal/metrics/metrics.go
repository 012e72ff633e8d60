// Package metrics exposes verification and HTTP metrics through Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives measurements from the verifier and the HTTP layer.
type Recorder interface {
	// RecordVerification counts one finished Verify call
	RecordVerification(outcome string, duration time.Duration)
	// SessionOpened and SessionReleased bracket every directory session
	SessionOpened()
	SessionReleased()
	// RecordHTTPRequest counts one served HTTP request
	RecordHTTPRequest(method, route, status string, duration time.Duration)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	VerificationsTotal   *prometheus.CounterVec
	VerificationDuration *prometheus.HistogramVec
	SessionsOpen         prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns Prometheus-backed metrics registered on the default registry
// when enabled, NoopMetrics otherwise. Registration happens only once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldapauth_verifications_total",
				Help: "Total number of credential verifications by outcome",
			},
			[]string{"outcome"},
		),
		VerificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ldapauth_verification_duration_seconds",
				Help:    "Time spent on the full bind-search-bind exchange",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		SessionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ldapauth_directory_sessions_open",
				Help: "Directory sessions currently open",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldapauth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ldapauth_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RecordVerification records a finished verification
func (m *Metrics) RecordVerification(outcome string, duration time.Duration) {
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
	m.VerificationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SessionOpened increments the open session gauge
func (m *Metrics) SessionOpened() {
	m.SessionsOpen.Inc()
}

// SessionReleased decrements the open session gauge
func (m *Metrics) SessionReleased() {
	m.SessionsOpen.Dec()
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
