package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-monitor/internal/domain"
	"github.com/spec-kit/sla-monitor/internal/events"
	"github.com/spec-kit/sla-monitor/internal/policy"
	"github.com/spec-kit/sla-monitor/internal/repository"
)

// DefaultThresholdFraction is the share of an SLA window below which a clock alerts.
const DefaultThresholdFraction = 0.15

// PolicyLookup resolves the SLA clocks that apply to a ticket.
type PolicyLookup interface {
	Lookup(priority domain.TicketPriority, tier domain.CustomerTier) []policy.Clock
}

// Summary describes one evaluation cycle.
type Summary struct {
	CycleID          string        `json:"cycle_id"`
	EvaluatedAt      time.Time     `json:"evaluated_at"`
	Duration         time.Duration `json:"duration_ns"`
	Scanned          int           `json:"scanned"`
	Skipped          int           `json:"skipped"`
	Breaches         int           `json:"breaches"`
	Alerts           int           `json:"alerts"`
	DispatchFailures int           `json:"dispatch_failures"`
}

// SLAEvaluator runs one pass over all open tickets per call.
type SLAEvaluator struct {
	store      repository.TicketStore
	policies   PolicyLookup
	dispatcher events.Dispatcher
	threshold  float64
	logger     *zap.Logger
	clock      func() time.Time
}

// EvaluatorDependencies bundles collaborators for the evaluator.
type EvaluatorDependencies struct {
	Store             repository.TicketStore
	Policies          PolicyLookup
	Dispatcher        events.Dispatcher
	ThresholdFraction float64
	Logger            *zap.Logger
}

// NewSLAEvaluator constructs the evaluator. A zero threshold selects the default.
func NewSLAEvaluator(deps EvaluatorDependencies) *SLAEvaluator {
	threshold := deps.ThresholdFraction
	if threshold <= 0 {
		threshold = DefaultThresholdFraction
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAEvaluator{
		store:      deps.Store,
		policies:   deps.Policies,
		dispatcher: deps.Dispatcher,
		threshold:  threshold,
		logger:     logger,
		clock:      time.Now,
	}
}

// RunCycle evaluates every open ticket against its clocks at instant now.
// All writes of the cycle commit together; on any store error nothing is
// committed and nothing is dispatched. Notifications go out only after commit.
func (e *SLAEvaluator) RunCycle(ctx context.Context, now time.Time) (Summary, error) {
	started := e.clock()
	now = now.UTC()
	summary := Summary{CycleID: uuid.NewString(), EvaluatedAt: now}
	logger := e.logger.With(zap.String("cycle_id", summary.CycleID))

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return summary, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := uow.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	tickets, err := uow.ListOpenTickets(ctx)
	if err != nil {
		return summary, err
	}
	summary.Scanned = len(tickets)

	var outbox []domain.Alert
	for i := range tickets {
		ticket := &tickets[i]
		clocks := e.policies.Lookup(ticket.Priority, ticket.CustomerTier)
		if len(clocks) == 0 {
			summary.Skipped++
			continue
		}
		alerts, err := e.evaluateTicket(ctx, uow, ticket, clocks, now, logger)
		if err != nil {
			return summary, fmt.Errorf("evaluate ticket %s: %w", ticket.ID, err)
		}
		for _, alert := range alerts {
			if alert.Event == domain.AlertEventBreach {
				summary.Breaches++
			} else {
				summary.Alerts++
			}
		}
		outbox = append(outbox, alerts...)
	}

	if err := uow.Commit(ctx); err != nil {
		return summary, err
	}
	committed = true

	// Committed alerts go out even if the cycle deadline passes; each sink is
	// bounded by the dispatcher's own timeout.
	dispatchCtx := context.WithoutCancel(ctx)
	for _, alert := range outbox {
		if !e.dispatcher.Publish(dispatchCtx, events.NewEvent(alert)) {
			summary.DispatchFailures++
		}
	}

	summary.Duration = e.clock().Sub(started)
	logger.Info("sla cycle committed",
		zap.Int("scanned", summary.Scanned),
		zap.Int("skipped", summary.Skipped),
		zap.Int("breaches", summary.Breaches),
		zap.Int("alerts", summary.Alerts),
		zap.Int("dispatch_failures", summary.DispatchFailures),
		zap.Duration("elapsed", summary.Duration))
	return summary, nil
}

// evaluateTicket applies the breach and threshold rules to each clock in name
// order. The first past-due clock flips the ticket to breached; later clocks
// see the new status and can no longer breach it.
func (e *SLAEvaluator) evaluateTicket(
	ctx context.Context,
	uow repository.UnitOfWork,
	ticket *domain.Ticket,
	clocks []policy.Clock,
	now time.Time,
	logger *zap.Logger,
) ([]domain.Alert, error) {
	var alerts []domain.Alert
	for _, clock := range clocks {
		remaining := ticket.CreatedAt.Add(clock.Duration).Sub(now)
		degenerate := clock.Duration <= 0
		remainingSecs := int64(remaining / time.Second)
		if degenerate && remainingSecs > 0 {
			remainingSecs = 0
		}

		if (remaining <= 0 || degenerate) && ticket.Status != domain.TicketStatusBreached {
			alert, err := e.breach(ctx, uow, ticket, clock.Name, remainingSecs, now)
			if err != nil {
				return nil, err
			}
			logger.Info("sla breached",
				zap.String("ticket_id", ticket.ID),
				zap.String("sla", clock.Name),
				zap.Int64("remaining", remainingSecs),
				zap.Int("escalation_level", ticket.EscalationLevel))
			alerts = append(alerts, alert)
			continue
		}

		if !e.withinThreshold(clock.Duration, remaining) {
			continue
		}
		alert := domain.Alert{
			TicketID:  ticket.ID,
			Event:     domain.AlertEventThreshold,
			SLA:       clock.Name,
			Remaining: remainingSecs,
			CreatedAt: now,
		}
		if err := uow.AppendAlert(ctx, &alert); err != nil {
			return nil, err
		}
		logger.Debug("sla threshold alert",
			zap.String("ticket_id", ticket.ID),
			zap.String("sla", clock.Name),
			zap.Int64("remaining", remainingSecs))
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (e *SLAEvaluator) breach(
	ctx context.Context,
	uow repository.UnitOfWork,
	ticket *domain.Ticket,
	clockName string,
	remainingSecs int64,
	now time.Time,
) (domain.Alert, error) {
	history := domain.TicketHistory{
		TicketID:  ticket.ID,
		OldStatus: ticket.Status,
		NewStatus: domain.TicketStatusBreached,
		ChangedAt: now,
	}
	if err := uow.AppendHistory(ctx, &history); err != nil {
		return domain.Alert{}, err
	}
	alert := domain.Alert{
		TicketID:  ticket.ID,
		Event:     domain.AlertEventBreach,
		SLA:       clockName,
		Remaining: remainingSecs,
		CreatedAt: now,
	}
	if err := uow.AppendAlert(ctx, &alert); err != nil {
		return domain.Alert{}, err
	}

	escalation := ticket.EscalationLevel + 1
	if err := uow.UpdateTicket(ctx, ticket.ID, domain.TicketStatusBreached, escalation, now); err != nil {
		return domain.Alert{}, err
	}
	ticket.EscalationLevel = escalation
	ticket.Status = domain.TicketStatusBreached
	ticket.UpdatedAt = now
	return alert, nil
}

// withinThreshold reports remaining/duration <= threshold. A non-positive
// duration has no meaningful ratio and counts as fully elapsed.
func (e *SLAEvaluator) withinThreshold(duration, remaining time.Duration) bool {
	if duration <= 0 {
		return true
	}
	return remaining.Seconds()/duration.Seconds() <= e.threshold
}
