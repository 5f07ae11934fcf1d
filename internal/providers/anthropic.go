package providers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/nexuscore/assistant-core/pkg/models"
)

// AnthropicProvider implements Provider against Anthropic's Messages API,
// grounded on the teacher's internal/agent/providers/anthropic.go
// (client construction, message conversion, SSE text_delta/message_delta
// handling), trimmed to plain-text streaming since this domain has no
// native tool schema for the SDK to carry.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures the provider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider builds an AnthropicProvider from config, defaulting
// DefaultModel to "claude-sonnet-4-20250514" as the teacher does.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: anthropic API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (io.Reader, UsageFunc, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages, err := convertMessagesAnthropic(req.Messages)
	if err != nil {
		return nil, nil, fmt.Errorf("providers: anthropic message conversion: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	pr, pw := io.Pipe()
	box := newUsageBox()
	start := time.Now()

	go func() {
		var inputTokens, outputTokens int
		defer func() {
			box.set(Usage{
				PromptTokens:     inputTokens,
				CompletionTokens: outputTokens,
				TotalTokens:      inputTokens + outputTokens,
				DurationMS:       time.Since(start).Milliseconds(),
			})
		}()

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				ms := event.AsMessageStart()
				if ms.Message.Usage.InputTokens > 0 {
					inputTokens = int(ms.Message.Usage.InputTokens)
				}
			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				if delta.Type == "text_delta" && delta.Text != "" {
					if _, werr := pw.Write([]byte(delta.Text)); werr != nil {
						pw.CloseWithError(werr)
						return
					}
				}
			case "message_delta":
				md := event.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					outputTokens = int(md.Usage.OutputTokens)
				}
			}
		}
		if err := stream.Err(); err != nil {
			pw.CloseWithError(fmt.Errorf("providers: anthropic stream: %w", err))
			return
		}
		pw.Close()
	}()

	return pr, box.get, nil
}

func convertMessagesAnthropic(msgs []models.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleTool:
			// Tool results are folded into the conversation as a plain user
			// turn labelled by origin, since this domain's grammar has no
			// native tool_result content block.
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock("[tool result] "+m.Content)))
		default:
			return nil, fmt.Errorf("providers: anthropic: unsupported role %q", m.Role)
		}
	}
	return out, nil
}
