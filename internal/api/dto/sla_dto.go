package dto

import (
	"time"

	"github.com/spec-kit/sla-monitor/internal/domain"
	"github.com/spec-kit/sla-monitor/internal/policy"
	"github.com/spec-kit/sla-monitor/internal/service"
)

// PolicyResponse describes the live policy table.
type PolicyResponse struct {
	Source   string          `json:"source"`
	LoadedAt time.Time       `json:"loaded_at"`
	Policies policy.Document `json:"policies"`
}

// HistoryItem is one status transition.
type HistoryItem struct {
	ID        int64               `json:"id"`
	TicketID  string              `json:"ticket_id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	ChangedAt time.Time           `json:"changed_at"`
}

// AlertItem is one recorded alert.
type AlertItem struct {
	ID        int64             `json:"id"`
	TicketID  string            `json:"ticket_id"`
	Event     domain.AlertEvent `json:"event"`
	SLA       string            `json:"sla"`
	Remaining int64             `json:"remaining"`
	CreatedAt time.Time         `json:"created_at"`
}

// CycleResponse reports the last committed evaluation cycle.
type CycleResponse struct {
	CycleID          string    `json:"cycle_id"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	DurationMS       int64     `json:"duration_ms"`
	Scanned          int       `json:"scanned"`
	Skipped          int       `json:"skipped"`
	Breaches         int       `json:"breaches"`
	Alerts           int       `json:"alerts"`
	DispatchFailures int       `json:"dispatch_failures"`
}

func NewHistoryItems(records []domain.TicketHistory) []HistoryItem {
	items := make([]HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, HistoryItem{
			ID:        r.ID,
			TicketID:  r.TicketID,
			OldStatus: r.OldStatus,
			NewStatus: r.NewStatus,
			ChangedAt: r.ChangedAt,
		})
	}
	return items
}

func NewAlertItems(alerts []domain.Alert) []AlertItem {
	items := make([]AlertItem, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, AlertItem{
			ID:        a.ID,
			TicketID:  a.TicketID,
			Event:     a.Event,
			SLA:       a.SLA,
			Remaining: a.Remaining,
			CreatedAt: a.CreatedAt,
		})
	}
	return items
}

func NewCycleResponse(s service.Summary) CycleResponse {
	return CycleResponse{
		CycleID:          s.CycleID,
		EvaluatedAt:      s.EvaluatedAt,
		DurationMS:       s.Duration.Milliseconds(),
		Scanned:          s.Scanned,
		Skipped:          s.Skipped,
		Breaches:         s.Breaches,
		Alerts:           s.Alerts,
		DispatchFailures: s.DispatchFailures,
	}
}
