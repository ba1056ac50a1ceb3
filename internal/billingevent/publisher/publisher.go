// Package publisher delivers relayed billing events to external consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"go.uber.org/zap"
)

// New picks the Redis publisher when a client is configured.
func New(client *redis.Client, log *zap.Logger) billingeventdomain.Publisher {
	if client == nil {
		return NewLogPublisher(log)
	}
	return NewRedisPublisher(client, billingeventdomain.Channel)
}

// RedisPublisher publishes JSON messages on a Pub/Sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg billingeventdomain.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	return nil
}

// LogPublisher writes messages to the log, for deployments without Redis.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("billingevent.publisher")}
}

func (p *LogPublisher) Publish(_ context.Context, msg billingeventdomain.Message) error {
	p.log.Info("billing event",
		zap.String("event_type", msg.EventType),
		zap.String("entity_type", msg.EntityType),
		zap.String("entity_id", msg.EntityID),
		zap.String("state", msg.State),
		zap.String("dedupe_key", msg.DedupeKey),
	)
	return nil
}
