package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both standard 5-field and seconds-optional 6-field
// cron expressions, matching the teacher's internal/tasks cronParser.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler ticks, computes due cron/interval triggers, and fires each at
// most once per fire-key via a TaskCreator. Events bypass the tick loop
// and are fired directly through Emit.
type Scheduler struct {
	creator TaskCreator
	fires   FireStore
	logger  *slog.Logger

	tick time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	triggers map[string]*Trigger
	lastRun  map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithTickInterval(d time.Duration) Option { return func(s *Scheduler) { s.tick = d } }
func WithLogger(l *slog.Logger) Option         { return func(s *Scheduler) { s.logger = l } }
func WithNow(now func() time.Time) Option      { return func(s *Scheduler) { s.now = now } }

// NewScheduler builds a Scheduler bound to a TaskCreator and FireStore.
func NewScheduler(creator TaskCreator, fires FireStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		creator:  creator,
		fires:    fires,
		logger:   slog.Default(),
		tick:     time.Second,
		now:      time.Now,
		triggers: make(map[string]*Trigger),
		lastRun:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds or replaces a trigger definition.
func (s *Scheduler) Register(trig *Trigger) error {
	if trig.Kind == KindCron {
		if _, err := cronParser.Parse(trig.Schedule); err != nil {
			return fmt.Errorf("triggers: invalid cron schedule %q: %w", trig.Schedule, err)
		}
	}
	if trig.Kind == KindInterval && trig.Interval <= 0 {
		return fmt.Errorf("triggers: interval trigger requires a positive Interval")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[trig.ID] = trig
	return nil
}

// Unregister removes a trigger by ID.
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.triggers, id)
	delete(s.lastRun, id)
}

// Start begins the tick loop for cron/interval triggers.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.tickLoop(runCtx)
}

// Stop halts the tick loop and waits for in-flight fires to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue evaluates every enabled cron/interval trigger against now and
// fires those that are due, returning the count fired.
func (s *Scheduler) runDue(ctx context.Context) int {
	now := s.now()
	s.mu.RLock()
	due := make([]*Trigger, 0)
	scheduledFor := make(map[string]time.Time)
	for id, trig := range s.triggers {
		if !trig.Enabled || trig.Kind == KindEvent {
			continue
		}
		last, hasRun := s.lastRun[id]
		if !hasRun {
			last = trig.CreatedAt
		}
		when, ok := s.nextAfter(trig, last, now)
		if ok {
			due = append(due, trig)
			scheduledFor[id] = when
		}
	}
	s.mu.RUnlock()

	fired := 0
	for _, trig := range due {
		when := scheduledFor[trig.ID]
		if s.fire(ctx, trig, when, "") {
			fired++
		}
		s.mu.Lock()
		s.lastRun[trig.ID] = when
		s.mu.Unlock()
	}
	return fired
}

// nextAfter reports whether trig is due at `now` given its last scheduled
// instant `last`, and which instant to fire for. An interval trigger
// returns the latest last+k*Interval (k >= 1) that is not after now, so
// missed intervals are fired once; a cron trigger returns the first
// scheduled instant strictly after last, so each missed cron instant is
// fired on a tick of its own.
func (s *Scheduler) nextAfter(trig *Trigger, last, now time.Time) (time.Time, bool) {
	switch trig.Kind {
	case KindInterval:
		next := last.Add(trig.Interval)
		if next.After(now) {
			return time.Time{}, false
		}
		next = next.Add(now.Sub(next) / trig.Interval * trig.Interval)
		return next, true
	case KindCron:
		schedule, err := cronParser.Parse(trig.Schedule)
		if err != nil {
			return time.Time{}, false
		}
		next := schedule.Next(last)
		if !next.After(now) {
			return next, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Emit fires an event-kind trigger by name. dedupe is the caller-supplied
// idempotency token distinguishing one event occurrence from another with
// the same name (§4.3, §8.4).
func (s *Scheduler) Emit(ctx context.Context, eventName, dedupe string) (fired int, err error) {
	s.mu.RLock()
	matches := make([]*Trigger, 0)
	for _, trig := range s.triggers {
		if trig.Enabled && trig.Kind == KindEvent && trig.EventName == eventName {
			matches = append(matches, trig)
		}
	}
	s.mu.RUnlock()

	for _, trig := range matches {
		if s.fire(ctx, trig, s.now(), dedupe) {
			fired++
		}
	}
	return fired, nil
}

// fire enforces at-most-once via FireStore before invoking the TaskCreator.
func (s *Scheduler) fire(ctx context.Context, trig *Trigger, scheduledFor time.Time, dedupe string) bool {
	key := FireKey(trig, scheduledFor, dedupe)
	first, err := s.fires.MarkFired(ctx, key)
	if err != nil {
		s.logger.Error("triggers: mark fired", "trigger_id", trig.ID, "error", err)
		return false
	}
	if !first {
		return false
	}
	taskID, err := s.creator.CreateFromTrigger(ctx, trig, scheduledFor)
	if err != nil {
		s.logger.Error("triggers: create task from trigger", "trigger_id", trig.ID, "error", err)
		return false
	}
	s.logger.Info("triggers: fired", "trigger_id", trig.ID, "task_id", taskID, "fire_key", key)
	return true
}
