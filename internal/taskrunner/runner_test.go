package taskrunner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/assistant-core/internal/tasks"
	"github.com/nexuscore/assistant-core/internal/toolregistry"
)

func newTestTask(id string, kind tasks.Kind, input json.RawMessage) *tasks.Task {
	return &tasks.Task{ID: id, Kind: kind, Principal: "user:alice", ConversationID: "conv-1", Input: input, Status: tasks.StatusRunning}
}

func TestToolRunner_Run_CompletesOnSuccess(t *testing.T) {
	reg := toolregistry.NewRegistry()
	require.NoError(t, reg.Register(toolregistry.Tool{
		Name: string(tasks.KindFetch),
		Handle: func(ctx context.Context, params json.RawMessage, p toolregistry.Principal) (toolregistry.Result, error) {
			return toolregistry.Result{Output: json.RawMessage(`{"ok":true}`)}, nil
		},
	}))
	store := tasks.NewMemoryStore()
	dispatcher := toolregistry.NewDispatcher(reg, store, toolregistry.DefaultDispatchConfig(), nil)
	runner := New(dispatcher)

	task := newTestTask("t1", tasks.KindFetch, json.RawMessage(`{"url":"x"}`))
	outcome, err := runner.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, tasks.StatusCompleted, outcome.Status)
	require.JSONEq(t, `{"ok":true}`, string(outcome.Output))
}

func TestToolRunner_Run_ReturnsFailedOnToolError(t *testing.T) {
	reg := toolregistry.NewRegistry()
	require.NoError(t, reg.Register(toolregistry.Tool{
		Name: string(tasks.KindAction),
		Handle: func(ctx context.Context, params json.RawMessage, p toolregistry.Principal) (toolregistry.Result, error) {
			return toolregistry.Result{}, errors.New("boom")
		},
	}))
	dispatcher := toolregistry.NewDispatcher(reg, nil, toolregistry.DefaultDispatchConfig(), nil)
	runner := New(dispatcher)

	task := newTestTask("t2", tasks.KindAction, json.RawMessage(`{}`))
	outcome, err := runner.Run(context.Background(), task)
	require.Error(t, err)
	require.Equal(t, tasks.StatusFailed, outcome.Status)
	require.NotNil(t, outcome.Err)
}

func TestToolRunner_Run_SuspendsOnSpawnedChildren(t *testing.T) {
	store := tasks.NewMemoryStore()
	parent := newTestTask("t3", tasks.KindResearch, json.RawMessage(`{}`))
	require.NoError(t, store.CreateTask(context.Background(), parent))

	reg := toolregistry.NewRegistry()
	require.NoError(t, reg.Register(toolregistry.Tool{
		Name: string(tasks.KindResearch),
		Handle: func(ctx context.Context, params json.RawMessage, p toolregistry.Principal) (toolregistry.Result, error) {
			return toolregistry.Result{Spawn: []toolregistry.SpawnedTask{
				{Type: string(tasks.KindFetch), Input: json.RawMessage(`{"url":"a"}`)},
			}}, nil
		},
	}))
	dispatcher := toolregistry.NewDispatcher(reg, store, toolregistry.DefaultDispatchConfig(), nil)
	runner := New(dispatcher)

	outcome, err := runner.Run(context.Background(), parent)
	require.NoError(t, err)
	require.Equal(t, tasks.StatusPending, outcome.Status)

	children, err := store.Children(context.Background(), "t3")
	require.NoError(t, err)
	require.Len(t, children, 1)
}
