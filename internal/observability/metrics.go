package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sla_monitor"

// Metrics exposes the monitor's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles           *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	ticketsScanned   prometheus.Gauge
	breaches         prometheus.Counter
	alerts           prometheus.Counter
	dispatchFailures *prometheus.CounterVec
	policyReloads    *prometheus.CounterVec
	requestCount     *prometheus.CounterVec
	errorCount       *prometheus.CounterVec
}

// NewMetrics initializes and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Evaluation cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one evaluation cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		ticketsScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tickets_scanned",
			Help:      "Open tickets scanned by the last committed cycle.",
		}),
		breaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaches_total",
			Help:      "Breach transitions committed.",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_alerts_total",
			Help:      "Threshold alerts committed.",
		}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Alert deliveries that failed, by sink.",
		}, []string{"sink"}),
		policyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_reloads_total",
			Help:      "Policy reload attempts by result.",
		}, []string{"result"}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Ops API requests.",
		}, []string{"path", "method", "status"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Ops API errors by code.",
		}, []string{"path", "method", "code"}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.ticketsScanned,
		m.breaches,
		m.alerts,
		m.dispatchFailures,
		m.policyReloads,
		m.requestCount,
		m.errorCount,
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCycle records the outcome of one evaluation cycle.
func (m *Metrics) RecordCycle(result string, duration time.Duration, scanned, breaches, alerts int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	if result != CycleResultCommitted {
		return
	}
	m.ticketsScanned.Set(float64(scanned))
	m.breaches.Add(float64(breaches))
	m.alerts.Add(float64(alerts))
}

// RecordDispatchFailure increments failures for a sink.
func (m *Metrics) RecordDispatchFailure(sink string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(sink).Inc()
}

// RecordPolicyReload increments reload counters.
func (m *Metrics) RecordPolicyReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.policyReloads.WithLabelValues(result).Inc()
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// Cycle results.
const (
	CycleResultCommitted = "committed"
	CycleResultFailed    = "failed"
	CycleResultSkipped   = "skipped"
)
