package tasks

import (
	"context"
	"time"
)

// Store defines the interface for task graph persistence (§4.1).
// Implementations must provide serializable transactions for Transition
// and SpawnSubtasks (§5).
type Store interface {
	// CreateTask inserts a task with status=pending. Returns ErrMissingParent
	// if ParentID is set but not found, and ErrCycle if the task's
	// Dependencies would create a cycle.
	CreateTask(ctx context.Context, t *Task) error

	// GetTask retrieves a task by ID. Returns ErrNotFound if absent.
	GetTask(ctx context.Context, id string) (*Task, error)

	// ListTasks runs a read-only filtered query.
	ListTasks(ctx context.Context, filter ListFilter) ([]*Task, error)

	// UpdateTask applies a patch to a non-terminal task. Returns
	// ErrTerminalUpdate if the task is terminal, or ErrCycle/ErrMissingDep
	// if the patch's Dependencies are invalid.
	UpdateTask(ctx context.Context, id string, patch Patch) (*Task, error)

	// Transition is the only path that mutates Status. It is atomic and
	// must emit a task-event to subscribers on success.
	Transition(ctx context.Context, id string, to Status, fields Patch) (*Task, error)

	// AddDependency adds a dependency edge (id depends on dep). Rejects
	// with ErrCycle if it would create one.
	AddDependency(ctx context.Context, id, dep string) error

	// SpawnSubtasks atomically inserts specs as children of parentID,
	// sharing the parent's Principal/ConversationID, and records the
	// parent's execution mode for completion-aggregation purposes.
	SpawnSubtasks(ctx context.Context, parentID string, specs []*Task, mode ExecutionMode) ([]*Task, error)

	// Children returns the direct children of a task.
	Children(ctx context.Context, parentID string) ([]*Task, error)
}

// ListFilter configures ListTasks queries.
type ListFilter struct {
	Status         []Status
	ParentID       string
	WorkflowID     string
	Principal      string
	MinPriority    *int
	MaxPriority    *int
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Limit          int
	Offset         int
}

// Patch describes a partial update to a Task. Nil fields are left
// unchanged. Pointer-to-pointer fields distinguish "leave unchanged" from
// "set to nil".
type Patch struct {
	Status       *Status
	Output       *[]byte
	Error        **Error
	WaitingInput *bool
	InputPrompt  *string
	RetryCount   *int
	Priority     *int
	Dependencies *[]string
	StartedAt    **time.Time
	CompletedAt  **time.Time
}

// EventKind identifies a task-event emitted by Transition.
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventTransition EventKind = "transition"
)

// Event is published to subscribers whenever Transition succeeds.
type Event struct {
	Kind EventKind
	Task *Task
	From Status
	To   Status
}

// Subscriber receives task events. Implementations must not block; the
// store may drop events for slow subscribers (best-effort fan-out,
// mirroring the teacher's observability event bus shape).
type Subscriber func(Event)
