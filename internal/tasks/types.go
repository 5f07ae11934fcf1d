// Package tasks implements the Task Store & Workflow Model: a persistent,
// hierarchical task graph supporting sequential/parallel execution,
// subtasks, AI-evaluated conditional branches, and human-in-the-loop input
// gates.
package tasks

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind classifies the nature of a task's work.
type Kind string

const (
	KindResearch  Kind = "research"
	KindAction    Kind = "action"
	KindAnalysis  Kind = "analysis"
	KindSynthesis Kind = "synthesis"
	KindFetch     Kind = "fetch"
	KindTransform Kind = "transform"
	KindValidate  Kind = "validate"
	KindNotify    Kind = "notify"

	// KindConversation marks the implicit, conversation-scoped parent task
	// the Turn Driver spawns subtasks under when a tool result requests it
	// (§4.6 step 7).
	KindConversation Kind = "conversation"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
	StatusWaitingInput Status = "waiting_input"
)

// IsTerminal reports whether the status is one of the three terminal
// states (§3 invariant, §8.1).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ExecutionMode controls how a task's children are awaited.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// Error is a structured failure captured on a terminal task.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Kind + ": " + e.Message
}

// Task is the unit of scheduled work in the hierarchical task graph (§3).
type Task struct {
	ID             string          `json:"id"`
	ParentID       string          `json:"parent_id,omitempty"`
	WorkflowID     string          `json:"workflow_id,omitempty"`
	Principal      string          `json:"principal"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Kind           Kind            `json:"kind"`
	Priority       int             `json:"priority"`
	Status         Status          `json:"status"`
	ExecutionMode  ExecutionMode   `json:"execution_mode"`
	Condition      *Condition      `json:"condition,omitempty"`
	Dependencies   []string        `json:"dependencies,omitempty"`
	TolerateFail   bool            `json:"tolerate_failures,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	WaitingInput   bool            `json:"waiting_for_input,omitempty"`
	InputPrompt    string          `json:"input_prompt,omitempty"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`

	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	ActualDuration    time.Duration `json:"actual_duration,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep-enough copy of the task for safe handoff across
// goroutines (store implementations return clones, never internal
// pointers), mirroring the teacher's jobs.MemoryStore clone pattern.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Dependencies = append([]string(nil), t.Dependencies...)
	if t.Condition != nil {
		cond := *t.Condition
		c.Condition = &cond
	}
	if t.Error != nil {
		errCopy := *t.Error
		c.Error = &errCopy
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if len(t.Input) > 0 {
		c.Input = append(json.RawMessage(nil), t.Input...)
	}
	if len(t.Output) > 0 {
		c.Output = append(json.RawMessage(nil), t.Output...)
	}
	return &c
}

// DependenciesTerminal reports whether every dependency of t has reached a
// terminal status, given a status lookup. The executor combines this with
// Evaluate(t.Condition, ...) to decide whether a pending task is ready.
func (t *Task) DependenciesTerminal(statusOf func(id string) (Status, bool)) bool {
	for _, dep := range t.Dependencies {
		st, ok := statusOf(dep)
		if !ok || !st.IsTerminal() {
			return false
		}
	}
	return true
}

// Errors returned by task graph operations.
var (
	ErrCycle          = errors.New("tasks: dependency would create a cycle")
	ErrMissingParent  = errors.New("tasks: parent task does not exist")
	ErrMissingDep     = errors.New("tasks: dependency task does not exist")
	ErrTerminalUpdate = errors.New("tasks: cannot update a terminal task")
	ErrNotFound       = errors.New("tasks: task not found")
	ErrInvalidTransition = errors.New("tasks: invalid status transition")
)
