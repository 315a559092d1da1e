package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/sla-monitor/internal/domain"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sla_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("high:\n  gold:\n    response: 1800\n"), 0o644))

	table := NewTable(zaptest.NewLogger(t), nil)
	src := FileSource{Path: path}
	require.NoError(t, table.Reload(src))

	watcher, err := NewWatcher(table, src, zaptest.NewLogger(t))
	require.NoError(t, err)
	watcher.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, os.WriteFile(path, []byte("high:\n  gold:\n    response: 900\n"), 0o644))

	require.Eventually(t, func() bool {
		clocks := table.Lookup(domain.TicketPriorityHigh, domain.CustomerTierGold)
		return len(clocks) == 1 && clocks[0].Duration == 900*time.Second
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherKeepsTableOnBadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sla_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("high:\n  gold:\n    response: 1800\n"), 0o644))

	table := NewTable(zaptest.NewLogger(t), nil)
	src := FileSource{Path: path}
	require.NoError(t, table.Reload(src))

	watcher, err := NewWatcher(table, src, zaptest.NewLogger(t))
	require.NoError(t, err)
	watcher.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("high: [broken"), 0o644))
	time.Sleep(200 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	clocks := table.Lookup(domain.TicketPriorityHigh, domain.CustomerTierGold)
	require.Len(t, clocks, 1)
	require.Equal(t, 1800*time.Second, clocks[0].Duration)
}
