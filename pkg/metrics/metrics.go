// Package metrics exposes Prometheus instruments for clinic isolation.
//
// All methods are safe on a nil *Metrics so components can run without an
// exporter (tests, one-shot CLI runs).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "dentiagest"

	LabelTable   = "table"
	LabelOp      = "op"
	LabelRole    = "role"
	LabelOutcome = "outcome"
	LabelMethod  = "method"
	LabelCode    = "code"
	LabelRoute   = "route"
	LabelLevel   = "severity"
)

// Metrics owns a private registry and the instruments registered on it.
type Metrics struct {
	registry *prometheus.Registry

	guardQueries     *prometheus.CounterVec
	guardRejections  *prometheus.CounterVec
	scopeResolutions *prometheus.CounterVec
	migrationStage   *prometheus.GaugeVec
	auditFindings    *prometheus.GaugeVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the registry. withRuntime adds Go and process collectors, which
// long-running services want and tests do not.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		guardQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "queries_total",
			Help:      "Tenant-scoped statements issued, by table and operation.",
		}, []string{LabelTable, LabelOp}),
		guardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "rejections_total",
			Help:      "Tenant-scoped operations that matched no row inside the caller's scope or had no valid scope.",
		}, []string{LabelTable, LabelOp}),
		scopeResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenancy",
			Name:      "scope_resolutions_total",
			Help:      "Clinic scope resolutions by role and outcome.",
		}, []string{LabelRole, LabelOutcome}),
		migrationStage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "stage",
			Help:      "Isolation stage per table (0 unscoped to 4 enforced).",
		}, []string{LabelTable}),
		auditFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "findings",
			Help:      "Findings of the last audit run by severity.",
		}, []string{LabelLevel}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{LabelRoute, LabelMethod, LabelCode}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_time_seconds",
			Help:      "HTTP response latency.",
			Buckets:   []float64{.005, .025, .1, .25, .5, 1, 5},
		}, []string{LabelRoute, LabelMethod}),
	}

	m.registry.MustRegister(
		m.guardQueries,
		m.guardRejections,
		m.scopeResolutions,
		m.migrationStage,
		m.auditFindings,
		m.httpRequests,
		m.httpDuration,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
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
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) GuardQuery(table, op string) {
	if m == nil {
		return
	}
	m.guardQueries.WithLabelValues(table, op).Inc()
}

func (m *Metrics) GuardRejection(table, op string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(table, op).Inc()
}

func (m *Metrics) ScopeResolution(role, outcome string) {
	if m == nil {
		return
	}
	m.scopeResolutions.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) MigrationStage(table string, ordinal int) {
	if m == nil {
		return
	}
	m.migrationStage.WithLabelValues(table).Set(float64(ordinal))
}

// AuditFindings replaces the per-severity counts from the previous run.
func (m *Metrics) AuditFindings(counts map[string]int) {
	if m == nil {
		return
	}
	m.auditFindings.Reset()
	for severity, n := range counts {
		m.auditFindings.WithLabelValues(severity).Set(float64(n))
	}
}

func (m *Metrics) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
