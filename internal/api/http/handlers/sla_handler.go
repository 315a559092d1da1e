package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-monitor/internal/api/dto"
	"github.com/spec-kit/sla-monitor/internal/policy"
	"github.com/spec-kit/sla-monitor/internal/repository"
	"github.com/spec-kit/sla-monitor/internal/service"
	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// PolicyTable is the live policy table as seen by the ops API.
type PolicyTable interface {
	Snapshot() (policy.Document, string, time.Time)
	Reload(src policy.Source) error
}

// CycleReporter exposes the last committed cycle.
type CycleReporter interface {
	LastSummary() (service.Summary, bool)
}

// SLAHandler serves read-only views of SLA state plus policy reload.
type SLAHandler struct {
	policies PolicyTable
	source   policy.Source
	audit    repository.AuditReader
	cycles   CycleReporter
}

// NewSLAHandler constructs handler.
func NewSLAHandler(policies PolicyTable, source policy.Source, audit repository.AuditReader, cycles CycleReporter) *SLAHandler {
	return &SLAHandler{policies: policies, source: source, audit: audit, cycles: cycles}
}

// GetPolicies GET /sla/policies.
func (h *SLAHandler) GetPolicies(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.policyResponse()})
}

// ReloadPolicies POST /sla/policies/reload. A rejected source leaves the
// previous table in place.
func (h *SLAHandler) ReloadPolicies(c *fiber.Ctx) error {
	if h.source == nil {
		return apperrors.NewValidationError("no policy source configured", nil)
	}
	if err := h.policies.Reload(h.source); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.policyResponse()})
}

func (h *SLAHandler) policyResponse() dto.PolicyResponse {
	doc, source, loadedAt := h.policies.Snapshot()
	return dto.PolicyResponse{Source: source, LoadedAt: loadedAt, Policies: doc}
}

// LastCycle GET /sla/cycles/last.
func (h *SLAHandler) LastCycle(c *fiber.Ctx) error {
	summary, ok := h.cycles.LastSummary()
	if !ok {
		return apperrors.NewNotFound("cycle", nil)
	}
	return c.JSON(fiber.Map{"data": dto.NewCycleResponse(summary)})
}

// TicketHistory GET /sla/tickets/:id/history.
func (h *SLAHandler) TicketHistory(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	records, err := h.audit.ListHistory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryItems(records)})
}

// TicketAlerts GET /sla/tickets/:id/alerts?limit=n.
func (h *SLAHandler) TicketAlerts(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return apperrors.NewValidationError("limit must not be negative", map[string]any{"limit": limit})
	}
	alerts, err := h.audit.ListAlerts(c.UserContext(), id, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAlertItems(alerts)})
}

func ticketID(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return "", apperrors.NewValidationError("ticket id required", nil)
	}
	return id, nil
}
