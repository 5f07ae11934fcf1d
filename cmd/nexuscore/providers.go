package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexuscore/assistant-core/internal/config"
	"github.com/nexuscore/assistant-core/internal/providers"
)

// buildProvider constructs the configured LLM providers and wraps them in
// a FallbackProvider ordered DefaultProvider-first then FallbackChain,
// skipping any entry missing its credentials (logged, not fatal — a
// deployment may only have one provider configured).
func buildProvider(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (providers.Provider, error) {
	order := make([]string, 0, len(cfg.FallbackChain)+1)
	seen := map[string]bool{}
	if cfg.DefaultProvider != "" {
		order = append(order, cfg.DefaultProvider)
		seen[cfg.DefaultProvider] = true
	}
	for _, name := range cfg.FallbackChain {
		if !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	chain := make([]providers.Provider, 0, len(order))
	for _, name := range order {
		p, err := buildOneProvider(ctx, name, cfg)
		if err != nil {
			logger.Warn("skipping unconfigured llm provider", "provider", name, "error", err)
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable llm provider in default_provider/fallback_chain")
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return providers.NewFallbackProvider(chain, logger)
}

func buildOneProvider(ctx context.Context, name string, cfg config.LLMConfig) (providers.Provider, error) {
	switch name {
	case "anthropic":
		pc := cfg.Providers["anthropic"]
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL, DefaultModel: pc.DefaultModel,
		})
	case "openai":
		pc := cfg.Providers["openai"]
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL, DefaultModel: pc.DefaultModel,
		})
	case "bedrock":
		if !cfg.Bedrock.Enabled {
			return nil, fmt.Errorf("bedrock is not enabled")
		}
		return providers.NewBedrockProvider(ctx, providers.BedrockConfig{Region: cfg.Bedrock.Region})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
