package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// RedisSink publishes alerts on a Redis pub/sub channel.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return apperrors.NewDispatchError(s.Name(), err)
	}
	return nil
}
