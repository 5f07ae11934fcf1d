package providers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nexuscore/assistant-core/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider against OpenAI's chat completions
// API, grounded on the teacher's internal/agent/providers/openai.go
// (CreateChatCompletionStream + Recv loop), trimmed to plain-text
// streaming.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// OpenAIConfig configures the provider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewOpenAIProvider builds an OpenAIProvider, defaulting DefaultModel to
// "gpt-4o" as the teacher's Models() list leads with.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: openai API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (io.Reader, UsageFunc, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := convertMessagesOpenAI(req.Messages, req.System)
	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, nil, fmt.Errorf("providers: openai stream request: %w", err)
	}

	pr, pw := io.Pipe()
	box := newUsageBox()
	start := time.Now()
	promptChars := len(req.System)
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}

	go func() {
		defer stream.Close()
		completionChars := 0
		defer func() {
			// go-openai's streaming responses don't reliably surface usage
			// totals, so token counts are approximated the same way
			// internal/retrieval estimates context cost: len(text)/4.
			box.set(Usage{
				PromptTokens:     promptChars / 4,
				CompletionTokens: completionChars / 4,
				TotalTokens:      (promptChars + completionChars) / 4,
				DurationMS:       time.Since(start).Milliseconds(),
			})
		}()

		for {
			resp, rerr := stream.Recv()
			if rerr != nil {
				if rerr == io.EOF {
					pw.Close()
					return
				}
				pw.CloseWithError(fmt.Errorf("providers: openai stream: %w", rerr))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			completionChars += len(delta)
			if _, werr := pw.Write([]byte(delta)); werr != nil {
				pw.CloseWithError(werr)
				return
			}
		}
	}()

	return pr, box.get, nil
}

func convertMessagesOpenAI(msgs []models.Message, system string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case models.RoleTool:
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
