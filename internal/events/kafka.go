package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig addresses the broker(s) a KafkaBus talks to, grounded on
// the teacher-adjacent manifold pack's ProjectsKafkaConfig
// (internal/workspaces/kafka_events.go).
type KafkaConfig struct {
	Brokers []string
	GroupID string // consumer group for Subscribe readers
}

// KafkaBus is an alternate Bus transport for deployments that prefer a
// log-structured, replayable bus over Redis pub/sub's fire-and-forget
// semantics. One topic maps to one Kafka topic; Publish opens a writer
// per topic lazily and reuses it.
type KafkaBus struct {
	cfg KafkaConfig
	now func() time.Time

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaBus builds a KafkaBus. Brokers must be non-empty.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: kafka bus requires at least one broker")
	}
	return &KafkaBus{cfg: cfg, now: time.Now, writers: make(map[string]*kafka.Writer)}, nil
}

func (b *KafkaBus) writerFor(topic string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(b.cfg.Brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	b.writers[topic] = w
	return w
}

// Publish implements Bus.
func (b *KafkaBus) Publish(topic string, payload any) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	ev := Event{Topic: topic, Payload: raw, Timestamp: b.now()}
	encoded, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	return b.writerFor(topic).WriteMessages(context.Background(), kafka.Message{Value: encoded})
}

// Subscribe implements Bus, starting a dedicated reader goroutine bound
// to topic. cancel closes the reader and its output channel.
func (b *KafkaBus) Subscribe(topic string, filter Filter) (<-chan Event, func()) {
	out := make(chan Event, subscriberBuffer)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.cfg.Brokers,
		Topic:   topic,
		GroupID: b.cfg.GroupID,
	})

	ctx, cancelCtx := context.WithCancel(context.Background())
	go func() {
		defer close(out)
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				return
			}
			var ev Event
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				continue
			}
			if filter != nil && !filter(ev) {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		cancelCtx()
		_ = reader.Close()
	}
	return out, cancel
}

// Close shuts down every writer opened by Publish.
func (b *KafkaBus) Close() error {
	var firstErr error
	for _, w := range b.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
