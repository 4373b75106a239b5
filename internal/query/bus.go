package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel used for invalidation broadcasts.
const DefaultChannel = "productdesk.query.invalidate"

// Invalidator drops cached results under a key prefix.
type Invalidator interface {
	Invalidate(prefix string) int
}

type busMessage struct {
	Origin string `json:"origin"`
	Prefix string `json:"prefix"`
}

// Bus broadcasts invalidations to every process sharing the Redis instance.
type Bus struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewBus constructs a Bus publishing on channel.
func NewBus(client *redis.Client, channel string, logger *slog.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{client: client, channel: channel, origin: uuid.NewString(), logger: logger}
}

// Origin returns the identifier stamped on messages from this process.
func (b *Bus) Origin() string {
	if b == nil {
		return ""
	}
	return b.origin
}

// Publish announces that prefix was invalidated locally.
func (b *Bus) Publish(ctx context.Context, prefix string) error {
	if b == nil || b.client == nil {
		return nil
	}
	payload, err := json.Marshal(busMessage{Origin: b.origin, Prefix: prefix})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Listen subscribes to the channel and applies invalidations published by
// other processes to target until ctx is cancelled. It returns once the
// subscription is confirmed.
func (b *Bus) Listen(ctx context.Context, target Invalidator) error {
	if b == nil || b.client == nil {
		return nil
	}
	if target == nil {
		return errors.New("query bus: invalidation target required")
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.apply(target, msg.Payload)
			}
		}
	}()
	return nil
}

func (b *Bus) apply(target Invalidator, payload string) {
	var msg busMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Warn("discard invalidation message", slog.Any("error", err))
		return
	}
	if msg.Origin == b.origin {
		return
	}
	n := target.Invalidate(msg.Prefix)
	b.logger.Debug("remote invalidation applied", slog.String("prefix", msg.Prefix), slog.Int("entries", n))
}
