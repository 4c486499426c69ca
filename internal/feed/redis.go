package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const subscriptionBuffer = 64

// RedisFeed implements Feed over Redis pub/sub. Delivery is
// fire-and-forget: events published while nobody subscribes are lost,
// which consumers absorb by loading state after subscribing.
type RedisFeed struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisFeed(client *redis.Client, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", channel, err)
	}
	if err := f.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe blocks until the server confirms the subscription, so events
// published after it returns are guaranteed to be delivered.
func (f *RedisFeed) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return f.forward(pubsub), nil
}

func (f *RedisFeed) PSubscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	pubsub := f.client.PSubscribe(ctx, patterns...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to psubscribe: %w", err)
	}
	return f.forward(pubsub), nil
}

func (f *RedisFeed) forward(pubsub *redis.PubSub) *redisSubscription {
	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.Warn("dropping undecodable feed event",
					"channel", msg.Channel,
					"error", err)
				continue
			}
			select {
			case sub.events <- event:
			case <-sub.done:
				return
			}
		}
	}()
	return sub
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.pubsub.Close()
	})
	return s.err
}
