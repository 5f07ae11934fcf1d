package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsCounters(t *testing.T) {
	m := NewMetrics()
	m.TaskCreated("research")
	m.TaskTransition("pending", "running")
	m.RecordToolExecution("web_search", "ok", 0.25)
	m.RecordLLMRequest("anthropic", "claude", "ok", 120, 40)
	m.RecordRetrievalStage("fuse", 0.01, 8)
	m.SetExecutorQueueSize(3)
	m.SetExecutorActiveWorkers(2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
