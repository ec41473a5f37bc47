// Package metrics defines the Prometheus instrumentation for the syslog
// listener: message counters per protocol, session gauges and dispatch
// latency histograms.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the syslog listener.
type Metrics struct {
	// Message metrics, labelled by protocol ("tcp" or "udp")
	MessagesReceived   *prometheus.CounterVec
	MessagesDispatched *prometheus.CounterVec
	ParseErrors        *prometheus.CounterVec
	OversizedMessages  *prometheus.CounterVec

	// TCP session metrics
	ActiveSessions   prometheus.Gauge
	SessionsAccepted prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Callback dispatch metrics
	DispatchDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics and registers them on reg. Tests use an
// isolated registry to allow multiple instances per process.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "syslog_messages_received_total",
			Help: "Total number of framed messages and datagrams received",
		}, []string{"protocol"}),
		MessagesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "syslog_messages_dispatched_total",
			Help: "Total number of decoded messages handed to the callback",
		}, []string{"protocol"}),
		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "syslog_parse_errors_total",
			Help: "Total number of messages discarded due to grammar mismatch",
		}, []string{"protocol"}),
		OversizedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "syslog_oversized_messages_total",
			Help: "Total number of size-limit violations",
		}, []string{"protocol"}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "syslog_active_tcp_sessions",
			Help: "Current number of open TCP sessions",
		}),
		SessionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "syslog_tcp_sessions_accepted_total",
			Help: "Total number of accepted TCP connections",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "syslog_tcp_session_duration_seconds",
			Help:    "Lifetime of TCP sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~45 minutes
		}),

		DispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "syslog_dispatch_duration_seconds",
			Help:    "Time spent in the user callback per message",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
		}, []string{"protocol"}),
	}
}

// RecordMessageReceived increments the received counter for a protocol.
func (m *Metrics) RecordMessageReceived(protocol string) {
	m.MessagesReceived.WithLabelValues(protocol).Inc()
}

// RecordMessageDispatched records a successful dispatch and its duration.
func (m *Metrics) RecordMessageDispatched(protocol string, durationSeconds float64) {
	m.MessagesDispatched.WithLabelValues(protocol).Inc()
	m.DispatchDuration.WithLabelValues(protocol).Observe(durationSeconds)
}

// RecordParseError increments the parse error counter for a protocol.
func (m *Metrics) RecordParseError(protocol string) {
	m.ParseErrors.WithLabelValues(protocol).Inc()
}

// RecordOversizedMessage increments the size-violation counter for a protocol.
func (m *Metrics) RecordOversizedMessage(protocol string) {
	m.OversizedMessages.WithLabelValues(protocol).Inc()
}

// RecordSessionOpened tracks an accepted TCP connection.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsAccepted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionClosed tracks a finished TCP session and its lifetime.
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}
