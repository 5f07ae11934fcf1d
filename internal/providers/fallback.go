package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// FallbackProvider tries each wrapped Provider in order until one opens a
// completion stream successfully, grounded on the teacher's
// internal/agent/providers fallback-chain behavior (config_llm.go's
// FallbackChain field) but re-scoped to this package's io.Reader-based
// Provider interface. Only Complete's own error (e.g. the remote call
// could not be opened) triggers a fallback; once a stream has started,
// its failure is the Turn Driver's concern, not this provider's.
type FallbackProvider struct {
	chain  []Provider
	logger *slog.Logger
}

// NewFallbackProvider builds a FallbackProvider. chain must be non-empty;
// the FallbackProvider's own Name() is its first element's Name().
func NewFallbackProvider(chain []Provider, logger *slog.Logger) (*FallbackProvider, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("providers: fallback chain requires at least one provider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{chain: chain, logger: logger}, nil
}

func (f *FallbackProvider) Name() string { return f.chain[0].Name() }

// Complete tries each provider in chain order, returning the first
// successfully opened stream.
func (f *FallbackProvider) Complete(ctx context.Context, req CompletionRequest) (io.Reader, UsageFunc, error) {
	var lastErr error
	for i, p := range f.chain {
		stream, usage, err := p.Complete(ctx, req)
		if err == nil {
			return stream, usage, nil
		}
		lastErr = err
		if i < len(f.chain)-1 {
			f.logger.Warn("providers: falling back to next provider", "failed", p.Name(), "error", err)
		}
	}
	return nil, nil, fmt.Errorf("providers: all providers in fallback chain failed: %w", lastErr)
}
