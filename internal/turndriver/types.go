// Package turndriver implements the Conversation Turn Driver (§4.6): given
// a new user message, it retrieves context, composes a prompt, opens an
// LLM call, routes the raw output through internal/llmparser, dispatches
// tool calls via internal/toolregistry, and finalizes the assistant
// Message. Grounded on the teacher's internal/agent/runtime.go and
// loop.go (LoopConfig defaulting, the retrieve→prompt→stream→dispatch
// state machine shape), adapted from the teacher's native-tool-calling
// SDK integration to this domain's delimiter-based grammar.
package turndriver

import (
	"time"
)

// Config tunes the turn driver's budgets, grounded on the teacher's
// LoopConfig/RuntimeOptions defaulting pattern (options.go, loop.go).
type Config struct {
	// SystemPrompt is prepended to every completion request.
	SystemPrompt string

	// ContextBudgetTokens bounds the Retrieval Orchestrator's ContextBundle
	// (B_ctx, §4.6 step 1).
	ContextBudgetTokens int

	// HistoryBudgetTokens bounds recent conversation history included in
	// the prompt (§4.6 step 2).
	HistoryBudgetTokens int

	// PreserveWindow is the number of most-recent messages history
	// truncation never drops, regardless of budget.
	PreserveWindow int

	// MaxCompletionTokens caps the LLM's response length.
	MaxCompletionTokens int

	// ToolCallTimeout bounds each tool dispatch.
	ToolCallTimeout time.Duration

	// Model selects which model the Provider should use; empty defers to
	// the Provider's own default.
	Model string
}

// DefaultConfig returns sensible turn driver defaults, grounded on the
// teacher's DefaultLoopConfig/DefaultRuntimeOptions (options.go: 30s tool
// timeout; loop.go: 4096 max tokens).
func DefaultConfig() Config {
	return Config{
		ContextBudgetTokens: 4000,
		HistoryBudgetTokens: 4000,
		PreserveWindow:      6,
		MaxCompletionTokens: 4096,
		ToolCallTimeout:      30 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ContextBudgetTokens <= 0 {
		cfg.ContextBudgetTokens = defaults.ContextBudgetTokens
	}
	if cfg.HistoryBudgetTokens <= 0 {
		cfg.HistoryBudgetTokens = defaults.HistoryBudgetTokens
	}
	if cfg.PreserveWindow < 0 {
		cfg.PreserveWindow = defaults.PreserveWindow
	}
	if cfg.MaxCompletionTokens <= 0 {
		cfg.MaxCompletionTokens = defaults.MaxCompletionTokens
	}
	if cfg.ToolCallTimeout <= 0 {
		cfg.ToolCallTimeout = defaults.ToolCallTimeout
	}
	return cfg
}
