package domain

import "time"

// AlertEvent distinguishes a nearing deadline from a passed one.
type AlertEvent string

const (
	AlertEventThreshold AlertEvent = "alert"
	AlertEventBreach    AlertEvent = "breach"
)

// Alert is an append-only record of one qualifying (ticket, clock, cycle) condition.
type Alert struct {
	ID        int64
	TicketID  string
	Event     AlertEvent
	SLA       string
	Remaining int64
	CreatedAt time.Time
}
