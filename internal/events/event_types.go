package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-monitor/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSLAAlert  EventType = EventType(domain.AlertEventThreshold)
	EventSLABreach EventType = EventType(domain.AlertEventBreach)
)

// Event is one alert produced by an evaluation cycle.
type Event struct {
	ID        string
	Type      EventType
	TicketID  string
	SLA       string
	Remaining *int64
	Timestamp time.Time
}

// Payload is the wire shape delivered to external channels.
type Payload struct {
	TicketID  string    `json:"ticket_id"`
	Event     EventType `json:"event"`
	SLA       string    `json:"sla"`
	Remaining *int64    `json:"remaining,omitempty"`
}

// NewEvent builds an event from a persisted alert record. Breach events carry
// no remaining value on the wire.
func NewEvent(alert domain.Alert) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      EventType(alert.Event),
		TicketID:  alert.TicketID,
		SLA:       alert.SLA,
		Timestamp: alert.CreatedAt,
	}
	if alert.Event == domain.AlertEventThreshold {
		remaining := alert.Remaining
		event.Remaining = &remaining
	}
	return event
}

// Payload returns the wire form of the event.
func (e Event) Payload() Payload {
	return Payload{
		TicketID:  e.TicketID,
		Event:     e.Type,
		SLA:       e.SLA,
		Remaining: e.Remaining,
	}
}
