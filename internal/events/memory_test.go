package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishSubscribe_DeliversMatchingTopic(t *testing.T) {
	b := NewMemoryBus()
	ch, cancel := b.Subscribe("task.created", nil)
	defer cancel()

	require.NoError(t, b.Publish("task.created", map[string]string{"id": "t1"}))

	select {
	case ev := <-ch:
		require.Equal(t, "task.created", ev.Topic)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		require.Equal(t, "t1", payload["id"])
	case <-time.After(time.Second):
		t.Fatal("expected event not delivered")
	}
}

func TestMemoryBus_Publish_DoesNotCrossTopics(t *testing.T) {
	b := NewMemoryBus()
	ch, cancel := b.Subscribe("task.created", nil)
	defer cancel()

	require.NoError(t, b.Publish("task.completed", "irrelevant"))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event on unrelated topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Subscribe_FilterRejectsNonMatching(t *testing.T) {
	b := NewMemoryBus()
	onlyErrors := func(ev Event) bool {
		var payload map[string]string
		_ = json.Unmarshal(ev.Payload, &payload)
		return payload["level"] == "error"
	}
	ch, cancel := b.Subscribe("logs", onlyErrors)
	defer cancel()

	require.NoError(t, b.Publish("logs", map[string]string{"level": "info"}))
	require.NoError(t, b.Publish("logs", map[string]string{"level": "error"}))

	select {
	case ev := <-ch:
		var payload map[string]string
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		require.Equal(t, "error", payload["level"])
	case <-time.After(time.Second):
		t.Fatal("expected filtered event not delivered")
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Cancel_ClosesChannelAndStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	ch, cancel := b.Subscribe("topic", nil)
	cancel()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after cancel")

	require.NoError(t, b.Publish("topic", "x")) // must not panic on a cancelled subscriber
}

func TestMemoryBus_SlowSubscriber_DropsInsteadOfBlocking(t *testing.T) {
	b := NewMemoryBus()
	ch, cancel := b.Subscribe("flood", nil)
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, b.Publish("flood", i))
	}
	// Publish must have returned for every call above without blocking;
	// the channel's length confirms it holds no more than its buffer.
	require.LessOrEqual(t, len(ch), subscriberBuffer)
}
