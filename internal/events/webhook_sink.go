package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// WebhookSink POSTs the JSON payload to an incoming-webhook URL (e.g. Slack).
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a sink; the dispatcher bounds each call through ctx.
func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookSink{url: url, client: client}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewDispatchError(s.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
