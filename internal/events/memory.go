package events

import (
	"sync"
	"time"
)

// subscription pairs a subscriber's channel with its optional Filter.
type subscription struct {
	ch     chan Event
	filter Filter
}

// subscriberBuffer bounds how many unread events a slow subscriber can
// accumulate before new events are dropped for it, mirroring the
// teacher's Hub's fixed channel buffer (internal/canvas/stream.go).
const subscriberBuffer = 32

// MemoryBus is an in-process Bus, grounded on the teacher's canvas.Hub:
// a topic-keyed map of subscriber channels, broadcast non-blockingly so
// one stalled subscriber never stalls Publish for everyone else.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscription]struct{}
	now         func() time.Time
}

// NewMemoryBus returns an empty in-process Bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subscribers: make(map[string]map[*subscription]struct{}), now: time.Now}
}

// Publish implements Bus.
func (b *MemoryBus) Publish(topic string, payload any) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	ev := Event{Topic: topic, Payload: raw, Timestamp: b.now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers[topic] {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe implements Bus.
func (b *MemoryBus) Subscribe(topic string, filter Filter) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, subscriberBuffer), filter: filter}

	b.mu.Lock()
	listeners := b.subscribers[topic]
	if listeners == nil {
		listeners = make(map[*subscription]struct{})
		b.subscribers[topic] = listeners
	}
	listeners[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if listeners := b.subscribers[topic]; listeners != nil {
			delete(listeners, sub)
			if len(listeners) == 0 {
				delete(b.subscribers, topic)
			}
		}
		b.mu.Unlock()
		close(sub.ch)
	}
	return sub.ch, cancel
}
