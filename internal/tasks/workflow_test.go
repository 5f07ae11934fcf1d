package tasks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstantiate_FlatWorkflow(t *testing.T) {
	wf := &Workflow{
		ID:   "wf-1",
		Name: "daily-report",
		RootDefinition: []NodeSpec{
			{Key: "gather", Title: "Gather sources", Kind: KindFetch},
			{Key: "summarize", Title: "Summarize", Kind: KindSynthesis, DependsOn: []string{"gather"}},
		},
	}

	var n int
	newID := func() string { n++; return "id-" + string(rune('0'+n)) }
	out := Instantiate(wf, "wf-1", "user:alice", "conv-1", newID)

	require.Len(t, out, 2)
	require.Equal(t, "id-1", out[0].ID)
	require.Empty(t, out[0].Dependencies)
	require.Equal(t, "id-2", out[1].ID)
	require.Equal(t, []string{"id-1"}, out[1].Dependencies)
	for _, task := range out {
		require.Equal(t, "user:alice", task.Principal)
		require.Equal(t, "conv-1", task.ConversationID)
		require.Equal(t, "wf-1", task.WorkflowID)
		require.Equal(t, ModeSequential, task.ExecutionMode)
	}
}

func TestInstantiate_NestedChildren(t *testing.T) {
	wf := &Workflow{
		RootDefinition: []NodeSpec{
			{
				Key:           "root",
				Title:         "Root task",
				Kind:          KindResearch,
				ExecutionMode: ModeParallel,
				Children: []NodeSpec{
					{Key: "child-a", Title: "Child A", Kind: KindFetch},
					{Key: "child-b", Title: "Child B", Kind: KindFetch},
				},
			},
		},
	}

	var n int
	newID := func() string { n++; return "id-" + string(rune('0'+n)) }
	out := Instantiate(wf, "wf-2", "user:bob", "", newID)

	require.Len(t, out, 3)
	root := out[0]
	require.Empty(t, root.ParentID)
	require.Equal(t, ModeParallel, root.ExecutionMode)
	require.Equal(t, root.ID, out[1].ParentID)
	require.Equal(t, root.ID, out[2].ParentID)
}

func TestInstantiate_UnknownDependencyIsDropped(t *testing.T) {
	wf := &Workflow{
		RootDefinition: []NodeSpec{
			{Key: "only", Title: "Only node", Kind: KindAction, DependsOn: []string{"nonexistent"}},
		},
	}
	var n int
	newID := func() string { n++; return "id-x" }
	out := Instantiate(wf, "wf-3", "user:carol", "", newID)
	require.Len(t, out, 1)
	require.Empty(t, out[0].Dependencies)
}
