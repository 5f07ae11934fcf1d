// Package providers implements LLM backend integrations for the
// Conversation Turn Driver (§4.6 step 3, "opens an LLM call"). Unlike the
// teacher's internal/agent/providers package, these providers don't parse
// native tool-calling events out of the SDK stream — the domain's system
// prompt instructs the model to emit the delimiter-based grammar described
// in SPEC_FULL.md §4.5, so Complete streams raw text verbatim and lets
// internal/llmparser do the splitting.
package providers

import (
	"context"
	"io"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// Usage captures accounting data for one completion request, mirrored into
// a models.UsageRecord by the caller once the stream finishes.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	DurationMS       int64
}

// CompletionRequest is a provider-agnostic LLM request, grounded on the
// teacher's agent.CompletionRequest but trimmed to the fields this domain's
// text-only (no native tool schema) grammar needs.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []models.Message
	MaxTokens int
}

// UsageFunc resolves the final token usage for a completion once its
// stream has been fully consumed. Calling it before the stream reaches EOF
// blocks until it does.
type UsageFunc func() Usage

// Provider is the interface every LLM backend implements. Complete returns
// an io.Reader of raw response bytes (text deltas, written verbatim in
// arrival order — consumed directly by internal/llmparser.Parse) and a
// UsageFunc that resolves once the stream is exhausted. Implementations
// must be safe for concurrent use.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (stream io.Reader, usage UsageFunc, err error)
}

// usageBox hands a Usage value from the streaming goroutine to whatever
// later calls UsageFunc, grounded on the teacher's channel-based
// CompletionChunk handoff (final chunk carries InputTokens/OutputTokens).
type usageBox struct {
	ch chan Usage
}

func newUsageBox() *usageBox {
	return &usageBox{ch: make(chan Usage, 1)}
}

func (b *usageBox) set(u Usage) {
	b.ch <- u
}

func (b *usageBox) get() Usage {
	u := <-b.ch
	b.ch <- u // allow repeated reads if UsageFunc is ever called twice
	return u
}
