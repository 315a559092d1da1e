package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states tracked by the monitor.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusBreached TicketStatus = "breached"
	TicketStatusClosed   TicketStatus = "closed"
)

// TicketPriority is the urgency a policy is keyed on.
type TicketPriority string

const (
	TicketPriorityLow  TicketPriority = "low"
	TicketPriorityHigh TicketPriority = "high"
)

// CustomerTier is the contract level a policy is keyed on.
type CustomerTier string

const (
	CustomerTierSilver CustomerTier = "silver"
	CustomerTierGold   CustomerTier = "gold"
)

// Ticket is the aggregate evaluated against SLA clocks.
type Ticket struct {
	ID              string
	Priority        TicketPriority
	CustomerTier    CustomerTier
	Status          TicketStatus
	EscalationLevel int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeKey lower-cases and trims a policy key so "High " and "high" match.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
