package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/sla-monitor/internal/domain"
	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// ListHistory returns status changes for a ticket, oldest first.
func (s *PostgresStore) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, old_status, new_status, changed_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY changed_at ASC, id ASC`
	if s.pool == nil {
		return nil, apperrors.NewStorageError("list ticket history", errors.New("postgres pool not configured"))
	}
	rows, err := s.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageError("list ticket history", err)
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.OldStatus,
			&history.NewStatus,
			&history.ChangedAt,
		); err != nil {
			return nil, apperrors.NewStorageError("scan ticket history", err)
		}
		history.ChangedAt = history.ChangedAt.UTC()
		result = append(result, history)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list ticket history", err)
	}
	return result, nil
}

// ListAlerts returns the most recent alerts for a ticket, newest first.
func (s *PostgresStore) ListAlerts(ctx context.Context, ticketID string, limit int) ([]domain.Alert, error) {
	const query = `
        SELECT id, ticket_id, event, sla, remaining, created_at
        FROM alerts WHERE ticket_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`
	if s.pool == nil {
		return nil, apperrors.NewStorageError("list ticket alerts", errors.New("postgres pool not configured"))
	}
	rows, err := s.pool.Query(ctx, query, ticketID, clampLimit(limit))
	if err != nil {
		return nil, apperrors.NewStorageError("list ticket alerts", err)
	}
	defer rows.Close()

	var result []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		if err := rows.Scan(
			&alert.ID,
			&alert.TicketID,
			&alert.Event,
			&alert.SLA,
			&alert.Remaining,
			&alert.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStorageError("scan ticket alerts", err)
		}
		alert.CreatedAt = alert.CreatedAt.UTC()
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list ticket alerts", err)
	}
	return result, nil
}
