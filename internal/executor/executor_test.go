package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/assistant-core/internal/tasks"
)

type fakeRunner struct {
	mu    sync.Mutex
	seen  []string
	outcome func(t *tasks.Task) (Outcome, error)
}

func (f *fakeRunner) Run(ctx context.Context, t *tasks.Task) (Outcome, error) {
	f.mu.Lock()
	f.seen = append(f.seen, t.ID)
	f.mu.Unlock()
	if f.outcome != nil {
		return f.outcome(t)
	}
	return Outcome{Status: tasks.StatusCompleted, Output: []byte(`{"ok":true}`)}, nil
}

func (f *fakeRunner) sawAll(t *testing.T, ids ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, want := range ids {
		found := false
		for _, got := range f.seen {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestExecutor_RunsReadyTaskToCompletion(t *testing.T) {
	store := tasks.NewMemoryStore()
	require.NoError(t, store.CreateTask(context.Background(), &tasks.Task{
		ID: "t1", Principal: "user:alice", Title: "fetch page", Kind: tasks.KindFetch,
	}))

	runner := &fakeRunner{}
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	exec := New(store, runner, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, exec.Start(ctx))
	defer exec.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		got, err := store.GetTask(context.Background(), "t1")
		return err == nil && got.Status == tasks.StatusCompleted
	})
}

func TestExecutor_RespectsDependencies(t *testing.T) {
	store := tasks.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTask(ctx, &tasks.Task{ID: "a", Principal: "user:alice", Title: "a", Kind: tasks.KindFetch}))
	require.NoError(t, store.CreateTask(ctx, &tasks.Task{ID: "b", Principal: "user:alice", Title: "b", Kind: tasks.KindAction, Dependencies: []string{"a"}}))

	runner := &fakeRunner{}
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	exec := New(store, runner, cfg)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, exec.Start(runCtx))
	defer exec.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		a, _ := store.GetTask(ctx, "a")
		b, _ := store.GetTask(ctx, "b")
		return a != nil && a.Status == tasks.StatusCompleted && b != nil && b.Status == tasks.StatusCompleted
	})
}

func TestExecutor_SkipsFalseCondition(t *testing.T) {
	store := tasks.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTask(ctx, &tasks.Task{
		ID: "parent", Principal: "user:alice", Title: "parent", Kind: tasks.KindAction,
	}))
	_, err := store.Transition(ctx, "parent", tasks.StatusRunning, tasks.Patch{})
	require.NoError(t, err)
	_, err = store.Transition(ctx, "parent", tasks.StatusCompleted, tasks.Patch{
		Output: func() *[]byte { b := []byte(`{"status":"skip"}`); return &b }(),
	})
	require.NoError(t, err)

	require.NoError(t, store.CreateTask(ctx, &tasks.Task{
		ID: "child", ParentID: "parent", Principal: "user:alice", Title: "child", Kind: tasks.KindAction,
		Condition: &tasks.Condition{Kind: tasks.ConditionParentOutputMatches, Path: "status", Op: tasks.OpEq, Value: "go"},
	}))

	runner := &fakeRunner{}
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	exec := New(store, runner, cfg)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, exec.Start(runCtx))
	defer exec.Stop(context.Background())

	time.Sleep(100 * time.Millisecond)
	got, err := store.GetTask(ctx, "child")
	require.NoError(t, err)
	require.Equal(t, tasks.StatusPending, got.Status, "child's condition is false, it must stay pending")
}

func TestExecutor_WaitingInputSuspendsWithoutConsumingSlot(t *testing.T) {
	store := tasks.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTask(ctx, &tasks.Task{ID: "needs-approval", Principal: "user:alice", Title: "risky", Kind: tasks.KindAction}))

	runner := &fakeRunner{outcome: func(t *tasks.Task) (Outcome, error) {
		return Outcome{Status: tasks.StatusWaitingInput, Err: &tasks.Error{Kind: "approval", Message: "confirm deletion?"}}, nil
	}}
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	exec := New(store, runner, cfg)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, exec.Start(runCtx))
	defer exec.Stop(context.Background())

	waitUntil(t, time.Second, func() bool {
		got, err := store.GetTask(ctx, "needs-approval")
		return err == nil && got.Status == tasks.StatusWaitingInput
	})
	got, err := store.GetTask(ctx, "needs-approval")
	require.NoError(t, err)
	require.Equal(t, "confirm deletion?", got.InputPrompt)
}

func TestExecutor_PauseStopsDispatch(t *testing.T) {
	store := tasks.NewMemoryStore()
	ctx := context.Background()
	runner := &fakeRunner{}
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	exec := New(store, runner, cfg)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, exec.Start(runCtx))
	defer exec.Stop(context.Background())

	exec.Pause()
	require.NoError(t, store.CreateTask(ctx, &tasks.Task{ID: "t1", Principal: "user:alice", Title: "t1", Kind: tasks.KindFetch}))
	time.Sleep(60 * time.Millisecond)

	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, tasks.StatusPending, got.Status, "paused executor must not dispatch")

	exec.Resume()
	waitUntil(t, time.Second, func() bool {
		got, _ := store.GetTask(ctx, "t1")
		return got != nil && got.Status == tasks.StatusCompleted
	})
}

func TestExecutor_Prioritize(t *testing.T) {
	store := tasks.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTask(ctx, &tasks.Task{ID: "low", Principal: "user:alice", Title: "low", Kind: tasks.KindFetch}))

	runner := &fakeRunner{}
	exec := New(store, runner, DefaultConfig())
	require.NoError(t, exec.Prioritize(ctx, "low", 99))

	got, err := store.GetTask(ctx, "low")
	require.NoError(t, err)
	require.Equal(t, 99, got.Priority)
}
