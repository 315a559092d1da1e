package repository

import (
	"context"
	"time"

	"github.com/spec-kit/sla-monitor/internal/domain"
)

// TicketStore opens one unit of work per evaluation cycle.
type TicketStore interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Ping(ctx context.Context) error
}

// UnitOfWork scopes every read and write of one cycle. Nothing is visible to
// other readers until Commit; Rollback after Commit is a no-op.
type UnitOfWork interface {
	ListOpenTickets(ctx context.Context) ([]domain.Ticket, error)
	UpdateTicket(ctx context.Context, id string, status domain.TicketStatus, escalationLevel int, updatedAt time.Time) error
	AppendHistory(ctx context.Context, history *domain.TicketHistory) error
	AppendAlert(ctx context.Context, alert *domain.Alert) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AuditReader serves the append-only logs to the ops API.
type AuditReader interface {
	ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
	ListAlerts(ctx context.Context, ticketID string, limit int) ([]domain.Alert, error)
}

// Store is what a backend must provide to the monitor.
type Store interface {
	TicketStore
	AuditReader
	Close() error
}

const defaultAlertLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultAlertLimit
	}
	return limit
}
