package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-monitor/internal/observability"
)

const (
	defaultSendTimeout = 5 * time.Second
	abandonGrace       = 100 * time.Millisecond
)

// Sink delivers a payload to one external channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, payload Payload) error
}

// Dispatcher publishes events to the sinks subscribed for their type.
type Dispatcher interface {
	// Publish is best-effort: it never returns an error and reports whether
	// every subscribed sink accepted the event.
	Publish(ctx context.Context, event Event) bool
	Subscribe(eventType EventType, sink Sink)
}

type fanoutDispatcher struct {
	mu      sync.RWMutex
	sinks   map[EventType][]Sink
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewDispatcher creates a dispatcher whose sinks each get at most timeout per event.
func NewDispatcher(timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fanoutDispatcher{
		sinks:   make(map[EventType][]Sink),
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Publish sends to all sinks concurrently. It returns once every sink has
// answered or the per-call timeout has elapsed, whichever is first; a sink
// that ignores its context is abandoned and counted as failed.
func (d *fanoutDispatcher) Publish(ctx context.Context, event Event) bool {
	d.mu.RLock()
	sinks := append([]Sink{}, d.sinks[event.Type]...)
	d.mu.RUnlock()
	if len(sinks) == 0 {
		return true
	}

	payload := event.Payload()
	results := make(chan bool, len(sinks))
	for _, sink := range sinks {
		go func(sink Sink) {
			results <- d.send(ctx, sink, event, payload)
		}(sink)
	}

	deadline := time.NewTimer(d.timeout + abandonGrace)
	defer deadline.Stop()

	ok := true
	for pending := len(sinks); pending > 0; pending-- {
		select {
		case delivered := <-results:
			ok = ok && delivered
		case <-deadline.C:
			d.logger.Warn("alert sinks did not return in time",
				zap.String("event_id", event.ID),
				zap.Int("abandoned", pending))
			return false
		}
	}
	return ok
}

func (d *fanoutDispatcher) send(ctx context.Context, sink Sink, event Event, payload Payload) (delivered bool) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("alert sink panicked", zap.String("sink", sink.Name()), zap.Any("panic", r))
			d.metrics.RecordDispatchFailure(sink.Name())
			delivered = false
		}
	}()

	if err := sink.Send(sendCtx, payload); err != nil {
		d.logger.Warn("alert dispatch failed",
			zap.String("sink", sink.Name()),
			zap.String("event_id", event.ID),
			zap.String("ticket_id", event.TicketID),
			zap.String("event", string(event.Type)),
			zap.Error(err))
		d.metrics.RecordDispatchFailure(sink.Name())
		return false
	}
	return true
}

// Subscribe registers a sink for the given event type.
func (d *fanoutDispatcher) Subscribe(eventType EventType, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks[eventType] = append(d.sinks[eventType], sink)
}
