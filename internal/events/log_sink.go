package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes every alert to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, payload Payload) error {
	fields := []zap.Field{
		zap.String("ticket_id", payload.TicketID),
		zap.String("event", string(payload.Event)),
		zap.String("sla", payload.SLA),
	}
	if payload.Remaining != nil {
		fields = append(fields, zap.Int64("remaining", *payload.Remaining))
	}
	s.logger.Info("ALERT", fields...)
	return nil
}
