package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/assistant-core/internal/events"
	"github.com/nexuscore/assistant-core/internal/tasks"
	"github.com/nexuscore/assistant-core/internal/triggers"
)

// storeTaskCreator implements triggers.TaskCreator by creating a single
// ad-hoc task per firing and publishing a "trigger.fired" event, tying the
// Trigger scheduler (§4.3) to both the task graph and the Event Bus (§6).
// Workflow-instantiating triggers (Trigger.WorkflowID set) aren't wired by
// this entrypoint: doing so needs a workflow definition registry this slim
// service doesn't stand up.
type storeTaskCreator struct {
	store tasks.Store
	bus   events.Bus
}

func (c *storeTaskCreator) CreateFromTrigger(ctx context.Context, trig *triggers.Trigger, firedAt time.Time) (string, error) {
	if trig.WorkflowID != "" {
		return "", fmt.Errorf("triggers: workflow-instantiating trigger %q is not supported by this entrypoint", trig.ID)
	}

	t := &tasks.Task{
		ID:        uuid.NewString(),
		Kind:      tasks.KindAction,
		Principal: trig.Principal,
		Input:     trig.Input,
	}
	if err := c.store.CreateTask(ctx, t); err != nil {
		return "", fmt.Errorf("triggers: create task for trigger %q: %w", trig.ID, err)
	}
	if c.bus != nil {
		_ = c.bus.Publish("trigger.fired", map[string]any{
			"trigger_id": trig.ID,
			"task_id":    t.ID,
			"fired_at":   firedAt,
		})
	}
	return t.ID, nil
}
