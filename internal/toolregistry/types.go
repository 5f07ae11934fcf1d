// Package toolregistry implements the Tool Registry & Dispatcher (§4.4):
// a thread-safe, immutable-after-startup map of tool definitions, and a
// dispatcher that validates parameters against a JSON schema, invokes the
// handler, and may spawn follow-up tasks. Grounded on the teacher's
// internal/agent/tool_registry.go (thread-safe map, Register/Get) and
// internal/agent/tool_exec.go (concurrency/timeout/retry config shape),
// generalized to the spec's capability-flag model and task-spawn dispatch.
package toolregistry

import (
	"context"
	"encoding/json"
)

// Capability flags a tool declares at registration (§4.4, §5 at-most-once).
type Capabilities struct {
	// Idempotent tools may be retried automatically on transient failure.
	Idempotent bool
	// SideEffecting tools mutate external state; never retried silently.
	SideEffecting bool
	// LongRunning tools return a task handle instead of an inline result;
	// the executor awaits completion rather than blocking the dispatcher.
	LongRunning bool
	// Critical tools fail the enclosing turn on dispatch error (§4.6).
	Critical bool
}

// Principal identifies who/what a tool call executes on behalf of,
// threaded through to the handler for authorization decisions.
type Principal struct {
	ID             string
	ConversationID string
}

// SpawnedTask is a follow-up task a handler asks the dispatcher to create
// (§4.4 step 6, e.g. "research" decomposing into "fetch" subtasks). It
// shares the parent's Principal/ConversationID via tasks.Store.SpawnSubtasks.
type SpawnedTask struct {
	Type     string
	Input    json.RawMessage
	Priority int
}

// Result is what a Handler returns.
type Result struct {
	Output  json.RawMessage
	Spawn   []SpawnedTask
	TaskRef string // set by long-running handlers in lieu of Output
}

// Handler implements a tool's behavior. ctx carries the cancellation token;
// params have already been validated against the tool's schema.
type Handler func(ctx context.Context, params json.RawMessage, principal Principal) (Result, error)

// Tool is one registered entry: name, parameter schema (as a JSON Schema
// document), capability flags, and handler.
type Tool struct {
	Name         string
	Description  string
	Schema       json.RawMessage
	Capabilities Capabilities
	Handle       Handler
}

// ValidationError is returned when a tool call's parameters fail schema
// validation (§4.4 step 2) or the tool name is unknown.
type ValidationError struct {
	ToolName string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.ToolName == "" {
		return "toolregistry: " + e.Reason
	}
	return "toolregistry: " + e.ToolName + ": " + e.Reason
}
