// Package metrics exposes Prometheus collectors for the HTTP layer, the
// database wrapper, the billing orchestrators and the outbox.
//
// A nil *Metrics is valid and records nothing, so stores and orchestrators can
// be built without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gymdesk"

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	queryDuration    *prometheus.HistogramVec
	slowQueries      prometheus.Counter
	billingEvents    *prometheus.CounterVec
	anchorClamps     *prometheus.CounterVec
	outboxDeliveries *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
// PRE: none
// POST: Returns a Metrics whose Handler serves the registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "SQLite call latency by operation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		slowQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "slow_queries_total",
			Help:      "Queries slower than the configured threshold.",
		}),
		billingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "events_total",
			Help:      "Billing cycle changes by action and cadence.",
		}, []string{"action", "cadence"}),
		anchorClamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "anchor_clamps_total",
			Help:      "Expirations clamped to a month's last day because the anchor did not fit.",
		}, []string{"cadence"}),
		outboxDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox delivery attempts by action type and result.",
		}, []string{"action_type", "result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of renewal sweep runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.queryDuration,
		m.slowQueries,
		m.billingEvents,
		m.anchorClamps,
		m.outboxDeliveries,
		m.sweepDuration,
	)
	return m
}

// Registry returns the underlying registry (used by tests to gather).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveQuery records one database call.
func (m *Metrics) ObserveQuery(op string, d time.Duration, slow bool) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(op).Observe(d.Seconds())
	if slow {
		m.slowQueries.Inc()
	}
}

// BillingEvent counts a billing cycle change and whether the resulting expiry
// was clamped.
func (m *Metrics) BillingEvent(action, cadence string, clamped bool) {
	if m == nil {
		return
	}
	m.billingEvents.WithLabelValues(action, cadence).Inc()
	if clamped {
		m.anchorClamps.WithLabelValues(cadence).Inc()
	}
}

// OutboxDelivery counts a delivery attempt; result is "success" or "failure".
func (m *Metrics) OutboxDelivery(actionType, result string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.WithLabelValues(actionType, result).Inc()
}

// ObserveSweep records one renewal sweep run.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}
