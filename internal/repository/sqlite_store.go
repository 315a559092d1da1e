package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spec-kit/sla-monitor/internal/domain"
	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// TicketModel is the gorm row for tickets.
type TicketModel struct {
	ID              string    `gorm:"primaryKey"`
	Priority        string    `gorm:"not null"`
	CustomerTier    string    `gorm:"not null"`
	Status          string    `gorm:"not null;index"`
	EscalationLevel int       `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (TicketModel) TableName() string { return "tickets" }

// TicketHistoryModel is the gorm row for ticket_history.
type TicketHistoryModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	TicketID  string    `gorm:"not null;index"`
	OldStatus string    `gorm:"not null"`
	NewStatus string    `gorm:"not null"`
	ChangedAt time.Time `gorm:"not null"`
}

func (TicketHistoryModel) TableName() string { return "ticket_history" }

// AlertModel is the gorm row for alerts.
type AlertModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	TicketID  string    `gorm:"not null;index"`
	Event     string    `gorm:"not null"`
	SLA       string    `gorm:"column:sla;not null"`
	Remaining int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (AlertModel) TableName() string { return "alerts" }

// SQLiteStore is a single-node ticket store for local runs.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at dsn and migrates the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if err := ensureSQLiteDirectory(dsn); err != nil {
		return nil, err
	}
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite", err)
	}
	// SQLite serializes writers; one connection keeps a cycle's transaction exclusive.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&TicketModel{}, &TicketHistoryModel{}, &AlertModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.NewStorageError("migrate sqlite", err)
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSQLiteDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}
	candidate = strings.TrimPrefix(candidate, "file:")
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory %q: %w", dir, err)
	}
	return nil
}

// DB exposes the gorm handle for seeding and inspection.
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

func (s *SQLiteStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.NewStorageError("begin unit of work", tx.Error)
	}
	return &gormUnit{tx: tx}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var rows []TicketHistoryModel
	if err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("changed_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, apperrors.NewStorageError("list ticket history", err)
	}
	result := make([]domain.TicketHistory, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.TicketHistory{
			ID:        row.ID,
			TicketID:  row.TicketID,
			OldStatus: domain.TicketStatus(row.OldStatus),
			NewStatus: domain.TicketStatus(row.NewStatus),
			ChangedAt: row.ChangedAt.UTC(),
		})
	}
	return result, nil
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, ticketID string, limit int) ([]domain.Alert, error) {
	var rows []AlertModel
	if err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at desc, id desc").
		Limit(clampLimit(limit)).
		Find(&rows).Error; err != nil {
		return nil, apperrors.NewStorageError("list ticket alerts", err)
	}
	result := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		result = append(result, mapAlert(row))
	}
	return result, nil
}

type gormUnit struct {
	tx   *gorm.DB
	done bool
}

func (u *gormUnit) ListOpenTickets(ctx context.Context) ([]domain.Ticket, error) {
	var rows []TicketModel
	if err := u.tx.WithContext(ctx).
		Where("status = ?", string(domain.TicketStatusOpen)).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, apperrors.NewStorageError("list open tickets", err)
	}
	tickets := make([]domain.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, mapTicket(row))
	}
	return tickets, nil
}

func (u *gormUnit) UpdateTicket(ctx context.Context, id string, status domain.TicketStatus, escalationLevel int, updatedAt time.Time) error {
	res := u.tx.WithContext(ctx).
		Model(&TicketModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           string(status),
			"escalation_level": escalationLevel,
			"updated_at":       updatedAt.UTC(),
		})
	if res.Error != nil {
		return apperrors.NewStorageError("update ticket", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewStorageError("update ticket", fmt.Errorf("ticket %s: %w", id, gorm.ErrRecordNotFound))
	}
	return nil
}

func (u *gormUnit) AppendHistory(ctx context.Context, history *domain.TicketHistory) error {
	row := TicketHistoryModel{
		TicketID:  history.TicketID,
		OldStatus: string(history.OldStatus),
		NewStatus: string(history.NewStatus),
		ChangedAt: history.ChangedAt,
	}
	if err := u.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.NewStorageError("append history", err)
	}
	history.ID = row.ID
	return nil
}

func (u *gormUnit) AppendAlert(ctx context.Context, alert *domain.Alert) error {
	row := AlertModel{
		TicketID:  alert.TicketID,
		Event:     string(alert.Event),
		SLA:       alert.SLA,
		Remaining: alert.Remaining,
		CreatedAt: alert.CreatedAt,
	}
	if err := u.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.NewStorageError("append alert", err)
	}
	alert.ID = row.ID
	return nil
}

func (u *gormUnit) Commit(ctx context.Context) error {
	if u.done {
		return apperrors.NewStorageError("commit unit of work", errors.New("unit of work already closed"))
	}
	u.done = true
	if err := u.tx.Commit().Error; err != nil {
		return apperrors.NewStorageError("commit unit of work", err)
	}
	return nil
}

func (u *gormUnit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback().Error; err != nil {
		return apperrors.NewStorageError("rollback unit of work", err)
	}
	return nil
}

func mapTicket(row TicketModel) domain.Ticket {
	return domain.Ticket{
		ID:              row.ID,
		Priority:        domain.TicketPriority(row.Priority),
		CustomerTier:    domain.CustomerTier(row.CustomerTier),
		Status:          domain.TicketStatus(row.Status),
		EscalationLevel: row.EscalationLevel,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

func mapAlert(row AlertModel) domain.Alert {
	return domain.Alert{
		ID:        row.ID,
		TicketID:  row.TicketID,
		Event:     domain.AlertEvent(row.Event),
		SLA:       row.SLA,
		Remaining: row.Remaining,
		CreatedAt: row.CreatedAt.UTC(),
	}
}
