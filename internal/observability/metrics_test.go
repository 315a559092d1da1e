package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-monitor/internal/config"
)

func TestRecordCycleCountsOnlyCommittedWork(t *testing.T) {
	m := NewMetrics()

	m.RecordCycle(CycleResultCommitted, 120*time.Millisecond, 7, 2, 3)
	m.RecordCycle(CycleResultFailed, 80*time.Millisecond, 9, 5, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(CycleResultCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(CycleResultFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breaches))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.alerts))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ticketsScanned))
}

func TestDispatchAndReloadCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordDispatchFailure("webhook")
	m.RecordDispatchFailure("webhook")
	m.RecordPolicyReload(true)
	m.RecordPolicyReload(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchFailures.WithLabelValues("webhook")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.policyReloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.policyReloads.WithLabelValues("rejected")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCycle(CycleResultCommitted, time.Second, 1, 1, 1)
		m.RecordDispatchFailure("log")
		m.RecordPolicyReload(true)
		m.RecordRequest("/health/live", "GET", 200, time.Millisecond)
		m.RecordError("/sla/policies", "POST", "CONFIG_INVALID")
	})
	assert.Nil(t, m.Registry())
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}
