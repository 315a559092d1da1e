package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// NATSSink publishes alerts to a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// ConnectNATS dials url and returns a sink publishing to subject.
func ConnectNATS(url, subject, clientName string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

// Send publishes and flushes so delivery errors surface within ctx.
func (s *NATSSink) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	if err := s.conn.Publish(s.subject, body); err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() {
	if s != nil && s.conn != nil {
		_ = s.conn.Drain()
	}
}
