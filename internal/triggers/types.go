// Package triggers implements the three trigger kinds that create tasks
// (§4.3): cron schedules, fixed intervals, and named events, each firing
// at most once per fire-key. Grounded on the teacher's internal/cron
// package (Job/Schedule types, a ticking Scheduler, an ExecutionStore
// recording history) adapted from "run an agent on a schedule" to "create
// a task graph on a schedule, at-most-once".
package triggers

import (
	"context"
	"time"
)

// Kind identifies a trigger's firing mechanism.
type Kind string

const (
	KindCron     Kind = "cron"
	KindInterval Kind = "interval"
	KindEvent    Kind = "event"
)

// Trigger is a registered rule that creates a task (or instantiates a
// workflow) when it fires.
type Trigger struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Schedule   string        `json:"schedule,omitempty"`   // cron expression, KindCron
	Interval   time.Duration `json:"interval,omitempty"`   // KindInterval
	EventName  string        `json:"event_name,omitempty"` // KindEvent
	WorkflowID string        `json:"workflow_id,omitempty"`
	Principal  string        `json:"principal"`
	Input      []byte        `json:"input,omitempty"`
	Enabled    bool          `json:"enabled"`
	CreatedAt  time.Time     `json:"created_at"`
}

// TaskCreator is the callback a Trigger fires into: it must create the
// task(s) for this firing and return an opaque reference (e.g. task ID)
// for observability. Implementations typically wrap tasks.Store.CreateTask
// or tasks.Instantiate + SpawnSubtasks.
type TaskCreator interface {
	CreateFromTrigger(ctx context.Context, trig *Trigger, firedAt time.Time) (taskID string, err error)
}
