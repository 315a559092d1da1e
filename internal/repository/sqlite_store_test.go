package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-monitor/internal/domain"
	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "nested", "sla.sqlite")
	store, err := OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func seedTicket(t *testing.T, store *SQLiteStore, id string, status domain.TicketStatus, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.DB().Create(&TicketModel{
		ID:           id,
		Priority:     string(domain.TicketPriorityHigh),
		CustomerTier: string(domain.CustomerTierGold),
		Status:       string(status),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}).Error)
}

func TestListOpenTicketsFiltersByStatus(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	seedTicket(t, store, "T2", domain.TicketStatusOpen, base.Add(time.Minute))
	seedTicket(t, store, "T1", domain.TicketStatusOpen, base)
	seedTicket(t, store, "T3", domain.TicketStatusBreached, base)
	seedTicket(t, store, "T4", domain.TicketStatusClosed, base)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback(ctx) //nolint:errcheck

	tickets, err := uow.ListOpenTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "T1", tickets[0].ID)
	assert.Equal(t, "T2", tickets[1].ID)
	assert.Equal(t, domain.TicketPriorityHigh, tickets[0].Priority)
	assert.Equal(t, domain.CustomerTierGold, tickets[0].CustomerTier)
	assert.True(t, tickets[0].CreatedAt.Equal(base))
}

func TestCommitPersistsAllWrites(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	seedTicket(t, store, "T1", domain.TicketStatusOpen, now.Add(-time.Hour))

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.UpdateTicket(ctx, "T1", domain.TicketStatusBreached, 1, now))
	history := &domain.TicketHistory{TicketID: "T1", OldStatus: domain.TicketStatusOpen, NewStatus: domain.TicketStatusBreached, ChangedAt: now}
	require.NoError(t, uow.AppendHistory(ctx, history))
	alert := &domain.Alert{TicketID: "T1", Event: domain.AlertEventBreach, SLA: "response", Remaining: -1800, CreatedAt: now}
	require.NoError(t, uow.AppendAlert(ctx, alert))
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Rollback(ctx), "rollback after commit is a no-op")

	assert.NotZero(t, history.ID)
	assert.NotZero(t, alert.ID)

	var row TicketModel
	require.NoError(t, store.DB().First(&row, "id = ?", "T1").Error)
	assert.Equal(t, string(domain.TicketStatusBreached), row.Status)
	assert.Equal(t, 1, row.EscalationLevel)
	assert.True(t, now.Equal(row.UpdatedAt), "updated_at carries the cycle instant, got %s", row.UpdatedAt)

	histories, err := store.ListHistory(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, domain.TicketStatusOpen, histories[0].OldStatus)
	assert.Equal(t, domain.TicketStatusBreached, histories[0].NewStatus)

	alerts, err := store.ListAlerts(ctx, "T1", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertEventBreach, alerts[0].Event)
	assert.Equal(t, int64(-1800), alerts[0].Remaining)
}

func TestRollbackDiscardsAllWrites(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	seedTicket(t, store, "T1", domain.TicketStatusOpen, now.Add(-time.Hour))

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.UpdateTicket(ctx, "T1", domain.TicketStatusBreached, 1, now))
	require.NoError(t, uow.AppendAlert(ctx, &domain.Alert{TicketID: "T1", Event: domain.AlertEventBreach, SLA: "response", CreatedAt: now}))
	require.NoError(t, uow.Rollback(ctx))

	var row TicketModel
	require.NoError(t, store.DB().First(&row, "id = ?", "T1").Error)
	assert.Equal(t, string(domain.TicketStatusOpen), row.Status)
	assert.Equal(t, 0, row.EscalationLevel)

	alerts, err := store.ListAlerts(ctx, "T1", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestUpdateUnknownTicketIsStorageError(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback(ctx) //nolint:errcheck

	err = uow.UpdateTicket(ctx, "missing", domain.TicketStatusBreached, 1, time.Now())
	assert.True(t, apperrors.IsKind(err, apperrors.CodeStorageUnavailable))
}

func TestListAlertsNewestFirstWithLimit(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	seedTicket(t, store, "T2", domain.TicketStatusOpen, now.Add(-time.Hour))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.DB().Create(&AlertModel{
			TicketID:  "T2",
			Event:     string(domain.AlertEventThreshold),
			SLA:       "response",
			Remaining: int64(300 - 60*i),
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	alerts, err := store.ListAlerts(ctx, "T2", 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, int64(180), alerts[0].Remaining)
	assert.Equal(t, int64(240), alerts[1].Remaining)
}

func TestPostgresStoreWithoutPoolFailsCleanly(t *testing.T) {
	store := NewPostgresStore(nil)

	_, err := store.Begin(context.Background())
	assert.True(t, apperrors.IsKind(err, apperrors.CodeStorageUnavailable))
	assert.Error(t, store.Ping(context.Background()))

	_, err = store.ListHistory(context.Background(), "T1")
	assert.True(t, apperrors.IsKind(err, apperrors.CodeStorageUnavailable))
	_, err = store.ListAlerts(context.Background(), "T1", 5)
	assert.True(t, apperrors.IsKind(err, apperrors.CodeStorageUnavailable))
}

func TestAuditReadsOnClosedStoreAreStorageErrors(t *testing.T) {
	store := setupSQLiteStore(t)
	require.NoError(t, store.Close())

	_, err := store.ListHistory(context.Background(), "T1")
	assert.True(t, apperrors.IsKind(err, apperrors.CodeStorageUnavailable))

	_, err = store.ListAlerts(context.Background(), "T1", 10)
	assert.True(t, apperrors.IsKind(err, apperrors.CodeStorageUnavailable))
}
