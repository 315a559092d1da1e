package service

import (
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-monitor/internal/config"
	"github.com/spec-kit/sla-monitor/internal/events"
)

// NotificationService subscribes the configured alert channels to the dispatcher.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	redis      redis.UniversalClient
	appName    string

	nats *events.NATSSink
}

// NewNotificationService creates the service. redisClient may be nil.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, redisClient redis.UniversalClient, appName string) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		redis:      redisClient,
		appName:    appName,
	}
}

// RegisterHandlers subscribes every configured sink to both alert kinds and
// returns the names of the sinks that were wired.
func (n *NotificationService) RegisterHandlers() []string {
	if n.dispatcher == nil {
		return nil
	}

	var sinks []events.Sink
	if n.cfg.LogAlerts {
		sinks = append(sinks, events.NewLogSink(n.logger))
	}
	if url := strings.TrimSpace(n.cfg.WebhookURL); url != "" {
		sinks = append(sinks, events.NewWebhookSink(url, &http.Client{Timeout: n.cfg.DispatchTimeout}))
	}
	if channel := strings.TrimSpace(n.cfg.RedisChannel); channel != "" && n.redis != nil {
		sinks = append(sinks, events.NewRedisSink(n.redis, channel))
	}
	if url := strings.TrimSpace(n.cfg.NATSURL); url != "" {
		sink, err := events.ConnectNATS(url, n.cfg.NATSSubject, n.appName)
		if err != nil {
			n.logger.Warn("nats alert channel unavailable", zap.Error(err))
		} else {
			n.nats = sink
			sinks = append(sinks, sink)
		}
	}

	names := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		n.dispatcher.Subscribe(events.EventSLABreach, sink)
		n.dispatcher.Subscribe(events.EventSLAAlert, sink)
		names = append(names, sink.Name())
	}
	n.logger.Info("alert channels registered", zap.Strings("sinks", names))
	return names
}

// Close releases connections held by sinks.
func (n *NotificationService) Close() {
	n.nats.Close()
}
