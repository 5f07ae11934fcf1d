package turndriver

import (
	"sync"

	"github.com/nexuscore/assistant-core/internal/conversation"
	"github.com/nexuscore/assistant-core/internal/llmparser"
	"github.com/nexuscore/assistant-core/internal/observability"
	"github.com/nexuscore/assistant-core/internal/providers"
	"github.com/nexuscore/assistant-core/internal/retrieval"
	"github.com/nexuscore/assistant-core/internal/tasks"
	"github.com/nexuscore/assistant-core/internal/toolregistry"
	"github.com/nexuscore/assistant-core/internal/usage"
)

// Deps bundles every collaborator the Turn Driver wires together (§4.6).
// Nothing here is optional: HandleMessage exercises all eight steps on
// every call.
type Deps struct {
	Retrieval    *retrieval.Orchestrator
	Provider     providers.Provider
	Parser       *llmparser.Parser
	Dispatcher   *toolregistry.Dispatcher
	Registry     *toolregistry.Registry
	Conversation conversation.Store
	Usage        usage.Store
	Tasks        tasks.Store
	Logger       *observability.Logger
}

// Driver runs the Conversation Turn Driver state machine (§4.6).
type Driver struct {
	deps Deps
	cfg  Config

	mu          sync.Mutex
	parentTasks map[string]string // conversationID -> implicit parent task ID
}

// New builds a Driver from its dependencies and config.
func New(deps Deps, cfg Config) *Driver {
	return &Driver{deps: deps, cfg: sanitizeConfig(cfg), parentTasks: make(map[string]string)}
}
