package tasks

import "encoding/json"

// Workflow is a named template for a task tree (§3).
type Workflow struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	RootDefinition []NodeSpec     `json:"root_definition"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NodeSpec is a declarative task-spec node within a Workflow's root
// definition, resolved into a concrete Task when instantiated.
type NodeSpec struct {
	Key           string          `json:"key"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Kind          Kind            `json:"kind"`
	ExecutionMode ExecutionMode   `json:"execution_mode"`
	Condition     *Condition      `json:"condition,omitempty"`
	DependsOn     []string        `json:"depends_on,omitempty"`
	Input         json.RawMessage `json:"input,omitempty"`
	Priority      int             `json:"priority,omitempty"`
	MaxRetries    int             `json:"max_retries,omitempty"`
	TolerateFail  bool            `json:"tolerate_failures,omitempty"`
	Children      []NodeSpec      `json:"children,omitempty"`
}

// Instantiate expands a Workflow's root definition into a concrete Task
// tree for the given principal/conversation, returning tasks in creation
// order (parents before children, dependencies before dependents) ready
// to be passed to Store.SpawnSubtasks / CreateTask.
func Instantiate(wf *Workflow, workflowID, principal, conversationID string, newID func() string) []*Task {
	var out []*Task
	keyToID := make(map[string]string)

	var walk func(nodes []NodeSpec, parentID string)
	walk = func(nodes []NodeSpec, parentID string) {
		for _, n := range nodes {
			id := newID()
			keyToID[n.Key] = id
			deps := make([]string, 0, len(n.DependsOn))
			for _, dep := range n.DependsOn {
				if depID, ok := keyToID[dep]; ok {
					deps = append(deps, depID)
				}
			}
			mode := n.ExecutionMode
			if mode == "" {
				mode = ModeSequential
			}
			t := &Task{
				ID:             id,
				ParentID:       parentID,
				WorkflowID:     workflowID,
				Principal:      principal,
				ConversationID: conversationID,
				Title:          n.Title,
				Description:    n.Description,
				Kind:           n.Kind,
				Priority:       n.Priority,
				Status:         StatusPending,
				ExecutionMode:  mode,
				Condition:      n.Condition,
				Dependencies:   deps,
				TolerateFail:   n.TolerateFail,
				Input:          n.Input,
				MaxRetries:     n.MaxRetries,
			}
			out = append(out, t)
			walk(n.Children, id)
		}
	}
	walk(wf.RootDefinition, "")
	return out
}
