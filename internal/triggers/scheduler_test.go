package triggers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	mu    sync.Mutex
	calls int
	ids   []string
}

func (f *fakeCreator) CreateFromTrigger(ctx context.Context, trig *Trigger, firedAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	id := trig.ID + "-" + firedAt.Format(time.RFC3339)
	f.ids = append(f.ids, id)
	return id, nil
}

func (f *fakeCreator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestScheduler_IntervalTrigger_FiresAtMostOncePerInstant(t *testing.T) {
	creator := &fakeCreator{}
	fires := NewMemoryFireStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }

	s := NewScheduler(creator, fires, WithNow(nowFn))
	require.NoError(t, s.Register(&Trigger{
		ID: "poll-inbox", Kind: KindInterval, Interval: time.Minute,
		Principal: "user:alice", Enabled: true, CreatedAt: now.Add(-2 * time.Minute),
	}))

	fired := s.runDue(context.Background())
	require.Equal(t, 1, fired)
	require.Equal(t, 1, creator.count())

	// Running again at the same instant must not refire.
	fired = s.runDue(context.Background())
	require.Equal(t, 0, fired)
	require.Equal(t, 1, creator.count())
}

func TestScheduler_CronTrigger_Fires(t *testing.T) {
	creator := &fakeCreator{}
	fires := NewMemoryFireStore()
	now := time.Date(2026, 1, 1, 9, 0, 30, 0, time.UTC)

	s := NewScheduler(creator, fires, WithNow(func() time.Time { return now }))
	require.NoError(t, s.Register(&Trigger{
		ID: "daily-9am", Kind: KindCron, Schedule: "0 9 * * *",
		Principal: "user:alice", Enabled: true, CreatedAt: now.Add(-24 * time.Hour),
	}))

	fired := s.runDue(context.Background())
	require.Equal(t, 1, fired)
}

func TestScheduler_DisabledTrigger_NeverFires(t *testing.T) {
	creator := &fakeCreator{}
	fires := NewMemoryFireStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(creator, fires, WithNow(func() time.Time { return now }))
	require.NoError(t, s.Register(&Trigger{
		ID: "off", Kind: KindInterval, Interval: time.Second, Enabled: false, CreatedAt: now.Add(-time.Hour),
	}))
	require.Equal(t, 0, s.runDue(context.Background()))
}

func TestScheduler_Emit_EventTrigger(t *testing.T) {
	creator := &fakeCreator{}
	fires := NewMemoryFireStore()
	s := NewScheduler(creator, fires)
	require.NoError(t, s.Register(&Trigger{
		ID: "on-email", Kind: KindEvent, EventName: "email.received", Enabled: true, Principal: "user:alice",
	}))

	fired, err := s.Emit(context.Background(), "email.received", "msg-1")
	require.NoError(t, err)
	require.Equal(t, 1, fired)

	// Same dedupe token must not refire.
	fired, err = s.Emit(context.Background(), "email.received", "msg-1")
	require.NoError(t, err)
	require.Equal(t, 0, fired)

	// Different dedupe token fires again.
	fired, err = s.Emit(context.Background(), "email.received", "msg-2")
	require.NoError(t, err)
	require.Equal(t, 1, fired)
}

func TestScheduler_Register_RejectsInvalidCron(t *testing.T) {
	s := NewScheduler(&fakeCreator{}, NewMemoryFireStore())
	err := s.Register(&Trigger{ID: "bad", Kind: KindCron, Schedule: "not a cron expression"})
	require.Error(t, err)
}

func TestFireKey_DifferentKindsDontCollide(t *testing.T) {
	cronTrig := &Trigger{ID: "x", Kind: KindCron}
	eventTrig := &Trigger{ID: "x", Kind: KindEvent, EventName: "e"}
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NotEqual(t, FireKey(cronTrig, when, ""), FireKey(eventTrig, when, "tok"))
}
