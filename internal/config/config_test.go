package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SLA_CHECK_INTERVAL", "")
	t.Setenv("SLA_THRESHOLD_FRACTION", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SLA_CYCLE_TIMEOUT", "")

	cfg, err := Load("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.SLA.Interval)
	assert.Equal(t, 10*time.Minute, cfg.SLA.CycleTimeout, "a cycle may outlast several intervals")
	assert.InDelta(t, 0.15, cfg.SLA.ThresholdFraction, 1e-9)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Store.ConnectAttempts)
	assert.Equal(t, 2*time.Second, cfg.Store.ConnectBackoff)
	assert.Equal(t, 5*time.Second, cfg.Notification.DispatchTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLA_CHECK_INTERVAL", "15")
	t.Setenv("SLA_THRESHOLD_FRACTION", "0.25")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("NOTIFY_DISPATCH_TIMEOUT", "750ms")
	t.Setenv("SLA_CYCLE_TIMEOUT", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.SLA.Interval)
	assert.InDelta(t, 0.25, cfg.SLA.ThresholdFraction, 1e-9)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Notification.DispatchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SLA.CycleTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"threshold not a number": {"SLA_THRESHOLD_FRACTION", "lots"},
		"threshold above one":    {"SLA_THRESHOLD_FRACTION", "1.5"},
		"unknown driver":         {"STORE_DRIVER", "mongo"},
		"zero interval":          {"SLA_CHECK_INTERVAL", "0"},
		"zero cycle timeout":     {"SLA_CYCLE_TIMEOUT", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
