package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// EventBus carries encoded broadcasts between replicas over Redis pub/sub.
type EventBus struct {
	client  *redis.Client
	channel string
}

// NewEventBus creates an EventBus on the given channel.
func NewEventBus(client *redis.Client, channel string) *EventBus {
	return &EventBus{client: client, channel: channel}
}

// Publish sends payload to every subscribed replica, including this one.
func (b *EventBus) Publish(ctx context.Context, payload []byte) error {
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe calls handle for each message until ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, handle func([]byte)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before consuming.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle([]byte(msg.Payload))
		}
	}
}
