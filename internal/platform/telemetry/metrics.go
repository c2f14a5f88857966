package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway collectors. All recording methods are safe to
// call on a nil *Metrics, which lets components run without telemetry.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	tokenExchanges        *prometheus.CounterVec
	tokenExchangeDuration prometheus.Histogram
	outboundRetries       prometheus.Counter

	downstreamRequests *prometheus.CounterVec
	downstreamDuration *prometheus.HistogramVec

	auditEvents        *prometheus.CounterVec
	auditWriteFailures *prometheus.CounterVec
}

// NewMetrics registers the gateway collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Inbound HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_http_requests_in_flight",
			Help: "Inbound HTTP requests currently being served.",
		}),
		tokenExchanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_token_exchanges_total",
			Help: "Client credential token exchanges by result.",
		}, []string{"result"}),
		tokenExchangeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_token_exchange_duration_seconds",
			Help:    "Latency of client credential token exchanges.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		outboundRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "gateway_outbound_auth_retries_total",
			Help: "Outbound requests retried after a 401 with a refreshed token.",
		}),
		downstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_downstream_requests_total",
			Help: "Downstream API calls by service, operation and result.",
		}, []string{"service", "operation", "result"}),
		downstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_downstream_request_duration_seconds",
			Help:    "Downstream API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		auditEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_audit_events_total",
			Help: "Audit events completed by outcome.",
		}, []string{"outcome"}),
		auditWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_audit_write_failures_total",
			Help: "Audit events that could not be persisted, by store.",
		}, []string{"store"}),
	}
}

// TokenExchange records one exchange attempt.
func (m *Metrics) TokenExchange(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(result).Inc()
	m.tokenExchangeDuration.Observe(d.Seconds())
}

// OutboundRetry records a 401-triggered retry.
func (m *Metrics) OutboundRetry() {
	if m == nil {
		return
	}
	m.outboundRetries.Inc()
}

// Downstream records one downstream call.
func (m *Metrics) Downstream(service, operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.downstreamRequests.WithLabelValues(service, operation, result).Inc()
	m.downstreamDuration.WithLabelValues(service, operation).Observe(d.Seconds())
}

// AuditRecorded counts a completed audit event.
func (m *Metrics) AuditRecorded(outcome string) {
	if m == nil {
		return
	}
	m.auditEvents.WithLabelValues(outcome).Inc()
}

// AuditWriteFailed counts an audit event a store rejected.
func (m *Metrics) AuditWriteFailed(store string) {
	if m == nil {
		return
	}
	m.auditWriteFailures.WithLabelValues(store).Inc()
}
