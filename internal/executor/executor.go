// Package executor implements the task Scheduler (§4.2): it polls the
// task.Store's ready queue, dispatches ready tasks to a worker pool bounded
// by backpressure, and drives each task through to a terminal or
// suspended status. Grounded on the teacher's internal/tasks/scheduler.go
// (config struct with concurrency/poll knobs, a semaphore-bounded worker
// pool, start/stop/poll-loop/cleanup-loop shape), adapted from polling a
// cron due-list to polling the task-graph ready queue.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/assistant-core/internal/tasks"
)

// State is the scheduler's own lifecycle state (§4.2), distinct from any
// individual Task's Status.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateDraining State = "draining"
)

// Outcome is what a Runner reports after attempting a task.
type Outcome struct {
	Status   tasks.Status
	Output   []byte
	Err      *tasks.Error
	Children []*tasks.Task  // non-nil when the task spawned subtasks and is awaiting them
	Mode     tasks.ExecutionMode
}

// Runner executes a single task's work (tool call, LLM turn, etc). It must
// respect ctx cancellation for Interrupt to be effective.
type Runner interface {
	Run(ctx context.Context, task *tasks.Task) (Outcome, error)
}

// Config tunes the scheduler.
type Config struct {
	WorkerID          string
	WorkerCount       int           // number of concurrent task executions
	BackpressureK     int           // ready-queue pull size = BackpressureK * WorkerCount
	PollInterval      time.Duration
	Logger            *slog.Logger
}

// DefaultConfig returns sensible defaults (worker pool of 8, backpressure
// factor 8, 200ms poll interval).
func DefaultConfig() Config {
	return Config{
		WorkerID:      uuid.NewString(),
		WorkerCount:   8,
		BackpressureK: 8,
		PollInterval:  200 * time.Millisecond,
		Logger:        slog.Default(),
	}
}

// Executor is the §4.2 Scheduler: it owns the ready-queue poll loop and
// worker pool driving tasks.Store transitions.
type Executor struct {
	store  tasks.Store
	runner Runner
	cfg    Config

	sem    chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	priorities map[string]int          // allocated by New; Prioritize writes to the store instead
	running    map[string]context.CancelFunc // taskID -> cancel for Interrupt
}

// New constructs an Executor in the Stopped state.
func New(store tasks.Store, runner Runner, cfg Config) *Executor {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 8
	}
	if cfg.BackpressureK <= 0 {
		cfg.BackpressureK = 8
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		store:      store,
		runner:     runner,
		cfg:        cfg,
		state:      StateStopped,
		priorities: make(map[string]int),
		running:    make(map[string]context.CancelFunc),
	}
}

// Start begins polling. Idempotent while already running.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.sem = make(chan struct{}, e.cfg.WorkerCount)
	e.state = StateRunning
	e.mu.Unlock()

	e.wg.Add(1)
	go e.pollLoop(runCtx)
	return nil
}

// Stop drains in-flight workers and halts polling.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return nil
	}
	e.state = StateDraining
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()
	return nil
}

// Pause stops pulling new ready tasks but leaves in-flight workers running.
func (e *Executor) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.state = StatePaused
	}
}

// Resume undoes Pause.
func (e *Executor) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused {
		e.state = StateRunning
	}
}

// Interrupt cancels a running task's context, if it is currently executing
// on this scheduler instance. Returns false if the task isn't in flight
// here (it may be queued, done, or running on another worker process).
func (e *Executor) Interrupt(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.running[taskID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Prioritize writes priority to taskID in the store right away; the next
// dispatchReady poll sees it because pending tasks are listed in priority
// order.
func (e *Executor) Prioritize(ctx context.Context, taskID string, priority int) error {
	p := priority
	_, err := e.store.UpdateTask(ctx, taskID, tasks.Patch{Priority: &p})
	return err
}

func (e *Executor) currentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) pollLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.currentState() != StateRunning {
				continue
			}
			e.dispatchReady(ctx)
		}
	}
}

// dispatchReady pulls up to BackpressureK*WorkerCount pending tasks
// (ordered by the store's priority/created_at/id tiebreak), filters to
// those whose dependencies are terminal and whose condition evaluates
// true, and hands as many as there are free worker slots to goroutines.
func (e *Executor) dispatchReady(ctx context.Context) {
	candidates, err := e.store.ListTasks(ctx, tasks.ListFilter{
		Status: []tasks.Status{tasks.StatusPending},
		Limit:  e.cfg.BackpressureK * e.cfg.WorkerCount,
	})
	if err != nil {
		e.cfg.Logger.Error("executor: list ready tasks", "error", err)
		return
	}

	statusOf := func(id string) (tasks.Status, bool) {
		t, err := e.store.GetTask(ctx, id)
		if err != nil {
			return "", false
		}
		return t.Status, true
	}

	for _, t := range candidates {
		if !t.DependenciesTerminal(statusOf) {
			continue
		}
		if t.Condition != nil {
			var parentOutput []byte
			if t.ParentID != "" {
				if parent, err := e.store.GetTask(ctx, t.ParentID); err == nil {
					parentOutput = parent.Output
				}
			}
			if !tasks.Evaluate(ctx, t.Condition, parentOutput, nil) {
				continue
			}
		}

		select {
		case e.sem <- struct{}{}:
		default:
			return // worker pool saturated; remaining candidates wait for next poll
		}

		e.wg.Add(1)
		go e.execute(ctx, t)
	}
}

func (e *Executor) execute(ctx context.Context, t *tasks.Task) {
	defer e.wg.Done()
	defer func() { <-e.sem }()

	taskCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running[t.ID] = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.running, t.ID)
		e.mu.Unlock()
	}()

	if _, err := e.store.Transition(taskCtx, t.ID, tasks.StatusRunning, tasks.Patch{}); err != nil {
		e.cfg.Logger.Warn("executor: transition to running failed", "task_id", t.ID, "error", err)
		return
	}

	outcome, err := e.runner.Run(taskCtx, t)
	if err != nil {
		outcome.Status = tasks.StatusFailed
		outcome.Err = &tasks.Error{Kind: "runner_error", Message: err.Error()}
	}

	switch outcome.Status {
	case tasks.StatusWaitingInput:
		prompt := ""
		if outcome.Err != nil {
			prompt = outcome.Err.Message
		}
		if _, err := e.store.Transition(ctx, t.ID, tasks.StatusWaitingInput, tasks.Patch{
			Output:      ptr(outcome.Output),
			InputPrompt: &prompt,
		}); err != nil {
			e.cfg.Logger.Error("executor: transition to waiting_input failed", "task_id", t.ID, "error", err)
		}
	case tasks.StatusPending:
		// Task spawned children and is suspended awaiting them (§4.1
		// suspension-point semantics): its slot is released when execute
		// returns. The task stays in StatusRunning in the store; neither
		// this executor nor tasks.Store moves it on when its children
		// finish, so dispatchReady, which lists only pending tasks, does
		// not run it again.
		if len(outcome.Children) > 0 {
			if _, err := e.store.SpawnSubtasks(ctx, t.ID, outcome.Children, outcome.Mode); err != nil {
				e.cfg.Logger.Error("executor: spawn subtasks failed", "task_id", t.ID, "error", err)
			}
		}
	case tasks.StatusCompleted, tasks.StatusFailed, tasks.StatusCancelled:
		patch := tasks.Patch{Output: ptr(outcome.Output)}
		if outcome.Err != nil {
			patch.Error = ptrPtr(outcome.Err)
		}
		if _, err := e.store.Transition(ctx, t.ID, outcome.Status, patch); err != nil {
			e.cfg.Logger.Error("executor: transition to terminal status failed", "task_id", t.ID, "error", err)
		}
	default:
		e.cfg.Logger.Error("executor: runner returned unknown status", "task_id", t.ID, "status", outcome.Status)
	}
}

func ptr[T any](v T) *T { return &v }
func ptrPtr[T any](v T) **T {
	p := &v
	return &p
}
