package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
	"github.com/redis/go-redis/v9"
)

// Redis fans events out over a pub/sub channel. Every instance subscribes
// and delivers to its own registry, including the one that published.
type Redis struct {
	client  *redis.Client
	channel string
	rooms   *session.Registry
	log     *slog.Logger
}

// NewRedis connects to url and verifies the server answers.
func NewRedis(ctx context.Context, url, channel string, rooms *session.Registry, log *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, channel: channel, rooms: rooms, log: log}, nil
}

// Publish implements Publisher.
func (r *Redis) Publish(ctx context.Context, identity string, ev session.Event) error {
	b, err := encode(identity, ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run delivers bus messages to the local registry until ctx is done.
func (r *Redis) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.log.Info("fanout subscribed", "bus", "redis", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decode([]byte(msg.Payload))
			if err != nil {
				r.log.Warn("discarding fanout message", "bus", "redis", "error", err)
				continue
			}
			r.rooms.Emit(env.To, env.Event)
		}
	}
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
