package toolregistry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nexuscore/assistant-core/internal/tasks"
)

// DispatchConfig tunes dispatcher behavior, grounded on the teacher's
// ToolExecConfig (internal/agent/tool_exec.go) defaulting pattern.
type DispatchConfig struct {
	PerCallTimeout time.Duration
	MaxAttempts    int // applied only to Capabilities.Idempotent tools
	RetryBackoff   time.Duration
}

// DefaultDispatchConfig mirrors the teacher's DefaultToolExecConfig values.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		PerCallTimeout: 30 * time.Second,
		MaxAttempts:    1,
		RetryBackoff:   time.Second,
	}
}

// Dispatcher resolves tool calls against a Registry, validates parameters,
// invokes the handler, and spawns follow-up tasks through a tasks.Store
// (§4.4 steps 1-6).
type Dispatcher struct {
	registry *Registry
	store    tasks.Store
	cfg      DispatchConfig
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher. store may be nil if no tool in this
// registry ever spawns follow-up tasks.
func NewDispatcher(registry *Registry, store tasks.Store, cfg DispatchConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, store: store, cfg: cfg, logger: logger}
}

// Outcome is what Dispatch reports for a single tool call (§4.4 steps 4-5).
type Outcome struct {
	ToolCallID string
	Output     []byte
	Err        *tasks.Error
	SpawnedIDs []string
}

// Dispatch locates the tool, validates parameters, invokes the handler
// (retrying idempotent tools up to MaxAttempts on transient failure), and
// spawns any follow-up tasks the handler requested under parentTaskID.
func (d *Dispatcher) Dispatch(ctx context.Context, toolCallID, toolName string, params []byte, principal Principal, parentTaskID string) Outcome {
	tool, ok := d.registry.Get(toolName)
	if !ok {
		return Outcome{ToolCallID: toolCallID, Err: &tasks.Error{Message: "tool not found: " + toolName}}
	}
	if err := d.registry.Validate(toolName, params); err != nil {
		return Outcome{ToolCallID: toolCallID, Err: &tasks.Error{Message: err.Error()}}
	}

	result, err := d.invoke(ctx, tool, params, principal)
	if err != nil {
		d.logger.Warn("toolregistry: dispatch failed", "tool", toolName, "error", err)
		return Outcome{ToolCallID: toolCallID, Err: &tasks.Error{Message: err.Error()}}
	}

	out := Outcome{ToolCallID: toolCallID, Output: result.Output}
	if len(result.Spawn) > 0 && d.store != nil && parentTaskID != "" {
		ids, spawnErr := d.spawn(ctx, parentTaskID, principal, result.Spawn)
		if spawnErr != nil {
			d.logger.Warn("toolregistry: spawn follow-up tasks failed", "tool", toolName, "error", spawnErr)
		}
		out.SpawnedIDs = ids
	}
	return out
}

func (d *Dispatcher) invoke(ctx context.Context, tool *Tool, params []byte, principal Principal) (Result, error) {
	attempts := 1
	if tool.Capabilities.Idempotent {
		attempts = d.cfg.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.PerCallTimeout)
		result, err := tool.Handle(callCtx, params, principal)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(d.cfg.RetryBackoff):
			}
		}
	}
	return Result{}, lastErr
}

func (d *Dispatcher) spawn(ctx context.Context, parentTaskID string, principal Principal, specs []SpawnedTask) ([]string, error) {
	parent, err := d.store.GetTask(ctx, parentTaskID)
	if err != nil {
		return nil, err
	}
	specTasks := make([]*tasks.Task, 0, len(specs))
	for _, s := range specs {
		specTasks = append(specTasks, &tasks.Task{
			Kind:           tasks.Kind(s.Type),
			Principal:      principal.ID,
			ConversationID: principal.ConversationID,
			Input:          s.Input,
			Priority:       s.Priority,
		})
	}
	children, err := d.store.SpawnSubtasks(ctx, parent.ID, specTasks, tasks.ModeParallel)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	return ids, nil
}

// ErrCritical wraps a dispatch error for a tool declared Critical, which
// the Turn Driver must treat as turn-failing rather than recoverable
// (§4.6 "tool dispatch errors do not fail the turn unless the tool was
// declared critical").
var ErrCritical = errors.New("toolregistry: critical tool failed")
