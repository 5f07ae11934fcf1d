// Package taskrunner adapts the Tool Registry/Dispatcher (§4.4) to the
// executor.Runner interface the Scheduler (§4.2) drives its worker pool
// with, grounded on the teacher's internal/agent/executor.go (Execute
// turns one models.ToolCall into one *ExecutionResult) but re-scoped from
// "one call, one result" to "one task, one executor.Outcome": a task's
// Kind names the tool to dispatch and its Input is that tool's parameters.
package taskrunner

import (
	"context"
	"fmt"

	"github.com/nexuscore/assistant-core/internal/executor"
	"github.com/nexuscore/assistant-core/internal/tasks"
	"github.com/nexuscore/assistant-core/internal/toolregistry"
)

// ToolRunner drives one task to completion by dispatching it as a tool
// call named after its Kind, so that task graphs built by the Turn
// Driver's spawned subtasks and by Trigger-created tasks share one
// execution path.
type ToolRunner struct {
	dispatcher *toolregistry.Dispatcher
}

// New builds a ToolRunner over an already-configured Dispatcher.
func New(dispatcher *toolregistry.Dispatcher) *ToolRunner {
	return &ToolRunner{dispatcher: dispatcher}
}

// Run implements executor.Runner. KindConversation tasks are never handed
// here (the scheduler only pulls StatusPending tasks, and conversation
// parents are created StatusRunning), so every task reaching Run names a
// registered tool via its Kind.
func (r *ToolRunner) Run(ctx context.Context, t *tasks.Task) (executor.Outcome, error) {
	principal := toolregistry.Principal{ID: t.Principal, ConversationID: t.ConversationID}
	outcome := r.dispatcher.Dispatch(ctx, t.ID, string(t.Kind), t.Input, principal, t.ID)

	if outcome.Err != nil {
		return executor.Outcome{
			Status: tasks.StatusFailed,
			Err:    outcome.Err,
		}, fmt.Errorf("taskrunner: dispatch %s: %s", t.Kind, outcome.Err.Message)
	}

	if len(outcome.SpawnedIDs) > 0 {
		// Dispatch already spawned the follow-up tasks under t.ID via the
		// dispatcher's own tasks.Store handle (§4.4 step 6); reporting
		// Children here too would spawn them a second time. Reporting
		// StatusPending tells the executor this task is suspended awaiting
		// its children rather than finished (§4.1 suspension-point).
		return executor.Outcome{Status: tasks.StatusPending, Output: outcome.Output}, nil
	}

	return executor.Outcome{Status: tasks.StatusCompleted, Output: outcome.Output}, nil
}
