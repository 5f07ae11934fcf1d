// Package events implements the Event Bus external interface (§6):
// publish(topic, payload) and subscribe(topic, filter) -> stream, used by
// triggers and by observers (UI, audit). Grounded on the teacher's
// internal/canvas.Hub (topic-keyed subscriber map, buffered per-subscriber
// channel, non-blocking broadcast) for the in-process transport, with
// go-redis/v9 and segmentio/kafka-go backing transports for multi-process
// deployments.
package events

import (
	"encoding/json"
	"time"
)

// Event is one item published to a topic.
type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

// Filter decides whether a subscriber wants a given Event; nil accepts
// everything on the subscribed topic.
type Filter func(Event) bool

// Bus is the Event Bus contract every transport implements.
type Bus interface {
	// Publish marshals payload and delivers it to every live subscription
	// on topic whose Filter accepts it.
	Publish(topic string, payload any) error

	// Subscribe registers a listener for topic. The returned channel is
	// closed, and resources released, when the cancel func is called.
	Subscribe(topic string, filter Filter) (<-chan Event, func())
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
