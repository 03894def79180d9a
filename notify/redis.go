package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/document-registry/interfaces"
)

// RedisPublisher publishes every event on "<channel>:<kind>".
type RedisPublisher struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisPublisher creates a publisher on an existing client.
func NewRedisPublisher(client *redis.Client, channel string, log *slog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, log: log}
}

// Channel returns the pub/sub channel events of kind are published on.
func (p *RedisPublisher) Channel(kind interfaces.EventKind) string {
	return p.channel + ":" + string(kind)
}

// Publish sends all events in one pipeline.
func (p *RedisPublisher) Publish(ctx context.Context, events []interfaces.Event) error {
	pipe := p.client.Pipeline()
	for _, ev := range events {
		_, payload, err := encodeMessage(ev)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, p.Channel(ev.Kind), payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Name implements interfaces.EventPublisher.
func (p *RedisPublisher) Name() string {
	return "redis:" + p.channel
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
