package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/sla-monitor/internal/domain"
	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

type recordingSink struct {
	name  string
	err   error
	delay time.Duration

	mu       sync.Mutex
	payloads []Payload
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, payload Payload) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) received() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Payload{}, s.payloads...)
}

// stuckSink ignores its context entirely.
type stuckSink struct{ release chan struct{} }

func (s stuckSink) Name() string { return "stuck" }
func (s stuckSink) Send(context.Context, Payload) error {
	<-s.release
	return nil
}

func breachEvent() Event {
	return NewEvent(domain.Alert{
		TicketID:  "T1",
		Event:     domain.AlertEventBreach,
		SLA:       "response",
		Remaining: -1800,
		CreatedAt: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
	})
}

func TestPublishFansOutBySubscription(t *testing.T) {
	d := NewDispatcher(time.Second, zaptest.NewLogger(t), nil)
	breaches := &recordingSink{name: "breaches"}
	everything := &recordingSink{name: "everything"}
	d.Subscribe(EventSLABreach, breaches)
	d.Subscribe(EventSLABreach, everything)
	d.Subscribe(EventSLAAlert, everything)

	assert.True(t, d.Publish(context.Background(), breachEvent()))
	assert.True(t, d.Publish(context.Background(), NewEvent(domain.Alert{
		TicketID: "T2", Event: domain.AlertEventThreshold, SLA: "response", Remaining: 300,
	})))

	assert.Len(t, breaches.received(), 1)
	assert.Len(t, everything.received(), 2)
}

func TestPublishWithoutSinksSucceeds(t *testing.T) {
	d := NewDispatcher(0, nil, nil)
	assert.True(t, d.Publish(context.Background(), breachEvent()))
}

func TestPublishReportsFailureWithoutPanicking(t *testing.T) {
	d := NewDispatcher(time.Second, zaptest.NewLogger(t), nil)
	good := &recordingSink{name: "good"}
	d.Subscribe(EventSLABreach, good)
	d.Subscribe(EventSLABreach, &recordingSink{name: "bad", err: errors.New("connection refused")})

	assert.False(t, d.Publish(context.Background(), breachEvent()))
	assert.Len(t, good.received(), 1, "healthy sinks still receive the event")
}

func TestPublishBoundsSlowSinks(t *testing.T) {
	d := NewDispatcher(50*time.Millisecond, zaptest.NewLogger(t), nil)
	d.Subscribe(EventSLABreach, &recordingSink{name: "slow", delay: time.Minute})

	start := time.Now()
	assert.False(t, d.Publish(context.Background(), breachEvent()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPublishAbandonsSinkIgnoringContext(t *testing.T) {
	d := NewDispatcher(20*time.Millisecond, zap.NewNop(), nil)
	sink := stuckSink{release: make(chan struct{})}
	defer close(sink.release)
	d.Subscribe(EventSLABreach, sink)

	start := time.Now()
	assert.False(t, d.Publish(context.Background(), breachEvent()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPayloadShape(t *testing.T) {
	breach, err := json.Marshal(breachEvent().Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticket_id":"T1","event":"breach","sla":"response"}`, string(breach))

	alert, err := json.Marshal(NewEvent(domain.Alert{
		TicketID: "T2", Event: domain.AlertEventThreshold, SLA: "response", Remaining: 300,
	}).Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticket_id":"T2","event":"alert","sla":"response","remaining":300}`, string(alert))
}

func TestWebhookSinkPostsJSON(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, srv.Client())
	require.NoError(t, sink.Send(context.Background(), breachEvent().Payload()))
	assert.Equal(t, "T1", got.TicketID)
	assert.Equal(t, EventSLABreach, got.Event)
}

func TestWebhookSinkRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, srv.Client()).Send(context.Background(), breachEvent().Payload())
	assert.True(t, apperrors.IsKind(err, apperrors.CodeDispatchFailed))
}

func TestRedisSinkUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	err := NewRedisSink(client, "sla.alerts").Send(context.Background(), breachEvent().Payload())
	assert.True(t, apperrors.IsKind(err, apperrors.CodeDispatchFailed))
}

func TestLogSinkWritesStructuredAlert(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	remaining := int64(300)
	require.NoError(t, sink.Send(context.Background(), Payload{TicketID: "T2", Event: EventSLAAlert, SLA: "response", Remaining: &remaining}))

	entries := logs.FilterMessage("ALERT").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "T2", fields["ticket_id"])
	assert.Equal(t, int64(300), fields["remaining"])
}
