package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(false)

	m.GuardQuery("patients", "select")
	m.GuardQuery("patients", "select")
	m.GuardRejection("patients", "update")
	m.ScopeResolution("owner", "ok")
	m.MigrationStage("appointments", 3)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.guardQueries.WithLabelValues("patients", "select")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.guardRejections.WithLabelValues("patients", "update")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.scopeResolutions.WithLabelValues("owner", "ok")))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.migrationStage.WithLabelValues("appointments")))
}

func TestMetrics_AuditFindingsReset(t *testing.T) {
	m := New(false)

	m.AuditFindings(map[string]int{"violation": 2, "warn": 1})
	m.AuditFindings(map[string]int{"ok": 9})

	assert.Equal(t, 1, promtest.CollectAndCount(m.auditFindings))
	assert.Equal(t, 9.0, promtest.ToFloat64(m.auditFindings.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.GuardQuery("patients", "select")
		m.AuditFindings(map[string]int{"ok": 1})
		m.HTTPRequest("/api/v1/patients", http.MethodGet, 200, time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New(false)
	m.GuardQuery("invoices", "insert")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `dentiagest_guard_queries_total{op="insert",table="invoices"} 1`))
}
