package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/justsurfingit/jobtrackr/internal/logger"
)

const redisChannel = "jobtrackr:realtime"

// RedisBroker publishes through Redis Pub/Sub so every instance sees every event, and
// delivers to the streams connected to this instance.
type RedisBroker struct {
	*MemoryBroker
	client *redis.Client
	logger logger.Interface
}

func NewRedisBroker(client *redis.Client, log logger.Interface) *RedisBroker {
	return &RedisBroker{MemoryBroker: NewMemoryBroker(), client: client, logger: log}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run relays events from Redis to local subscribers until ctx is done. The ready channel,
// if not nil, is closed once the subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	b.logger.Infow("subscribed to realtime events", "channel", redisChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warnw("failed to unmarshal realtime event", "payload", msg.Payload, "error", err)
				continue
			}
			b.deliver(ev)
		}
	}
}
