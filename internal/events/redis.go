package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus backed by Redis pub/sub, letting multiple core
// processes share one Event Bus (§6's "used by triggers and by
// observers" across a distributed deployment). Each topic maps directly
// to a Redis channel.
type RedisBus struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisBus builds a RedisBus over an existing client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, now: time.Now}
}

// Publish implements Bus.
func (b *RedisBus) Publish(topic string, payload any) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	ev := Event{Topic: topic, Payload: raw, Timestamp: b.now()}
	encoded, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	return b.client.Publish(context.Background(), topic, encoded).Err()
}

// Subscribe implements Bus. The returned channel is fed by a goroutine
// reading the underlying Redis subscription until cancel is called.
func (b *RedisBus) Subscribe(topic string, filter Filter) (<-chan Event, func()) {
	out := make(chan Event, subscriberBuffer)
	pubsub := b.client.Subscribe(context.Background(), topic)

	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				if filter != nil && !filter(ev) {
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = pubsub.Close()
	}
	return out, cancel
}
