package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	RouteReplaced Type = "route_replaced"
	RerouteFailed Type = "reroute_failed"
	RouteError    Type = "route_error"
)

// Event is the JSON payload published on the events channel.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
	Distance  float64   `json:"distance,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	Steps     int       `json:"steps,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards every event. Used when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

type RedisPublisher struct {
	logger *slog.Logger
	client *redis.Client
	topic  string
}

func NewRedisPublisher(logger *slog.Logger, client *redis.Client, topic string) *RedisPublisher {
	return &RedisPublisher{
		logger: logger,
		client: client,
		topic:  topic,
	}
}

// Publish sends the event on the topic. Failures are only logged.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	if err := p.client.Publish(ctx, p.topic, payload).Err(); err != nil {
		p.logger.Warn("failed to publish event", "topic", p.topic, "type", event.Type, "sessionID", event.SessionID, "error", err)
		return
	}
	p.logger.Debug("event published", "topic", p.topic, "type", event.Type, "sessionID", event.SessionID)
}
