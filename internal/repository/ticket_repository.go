package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-monitor/internal/domain"
	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// PostgresStore is the production ticket store backed by a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an established pool. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Begin opens a transaction for one cycle.
func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	if s.pool == nil {
		return nil, apperrors.NewStorageError("begin unit of work", errors.New("postgres pool not configured"))
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("begin unit of work", err)
	}
	return &pgUnit{tx: tx}, nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

// Close is a no-op; persistence.Postgres closes the pool.
func (s *PostgresStore) Close() error {
	return nil
}

type pgUnit struct {
	tx pgx.Tx
}

// ListOpenTickets locks the open rows so a concurrent writer cannot interleave
// with this cycle's updates.
func (u *pgUnit) ListOpenTickets(ctx context.Context) ([]domain.Ticket, error) {
	const query = `
        SELECT id, priority, customer_tier, status, escalation_level, created_at, updated_at
        FROM tickets WHERE status=$1
        ORDER BY created_at ASC, id ASC
        FOR UPDATE`
	rows, err := u.tx.Query(ctx, query, domain.TicketStatusOpen)
	if err != nil {
		return nil, apperrors.NewStorageError("list open tickets", err)
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, apperrors.NewStorageError("scan open tickets", err)
	}
	return tickets, nil
}

// UpdateTicket stamps updated_at with the cycle instant so the row agrees with
// the history and alert records written in the same unit of work.
func (u *pgUnit) UpdateTicket(ctx context.Context, id string, status domain.TicketStatus, escalationLevel int, updatedAt time.Time) error {
	const query = `
        UPDATE tickets SET status=$1, escalation_level=$2, updated_at=$3
        WHERE id=$4`
	cmd, err := u.tx.Exec(ctx, query, status, escalationLevel, updatedAt.UTC(), id)
	if err != nil {
		return apperrors.NewStorageError("update ticket", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewStorageError("update ticket", fmt.Errorf("ticket %s: %w", id, pgx.ErrNoRows))
	}
	return nil
}

func (u *pgUnit) AppendHistory(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, old_status, new_status, changed_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	if err := u.tx.QueryRow(ctx, query,
		history.TicketID,
		history.OldStatus,
		history.NewStatus,
		history.ChangedAt,
	).Scan(&history.ID); err != nil {
		return apperrors.NewStorageError("append history", err)
	}
	return nil
}

func (u *pgUnit) AppendAlert(ctx context.Context, alert *domain.Alert) error {
	const query = `
        INSERT INTO alerts (ticket_id, event, sla, remaining, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	if err := u.tx.QueryRow(ctx, query,
		alert.TicketID,
		alert.Event,
		alert.SLA,
		alert.Remaining,
		alert.CreatedAt,
	).Scan(&alert.ID); err != nil {
		return apperrors.NewStorageError("append alert", err)
	}
	return nil
}

func (u *pgUnit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return apperrors.NewStorageError("commit unit of work", err)
	}
	return nil
}

func (u *pgUnit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return apperrors.NewStorageError("rollback unit of work", err)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Priority,
			&ticket.CustomerTier,
			&ticket.Status,
			&ticket.EscalationLevel,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ticket.CreatedAt = ticket.CreatedAt.UTC()
		ticket.UpdatedAt = ticket.UpdatedAt.UTC()
		result = append(result, ticket)
	}
	return result, rows.Err()
}
