package providers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/nexuscore/assistant-core/pkg/models"
)

// BedrockProvider implements Provider against AWS Bedrock's Converse
// streaming API, grounded on the teacher's
// internal/agent/providers/bedrock.go (ConverseStream request/event
// handling), trimmed to plain-text streaming and dropping image/tool
// content-block conversion this domain's grammar doesn't need.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// BedrockConfig configures the provider.
type BedrockConfig struct {
	Region       string
	DefaultModel string
}

// NewBedrockProvider builds a BedrockProvider using the default AWS
// credential chain, defaulting Region/DefaultModel as the teacher does.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("providers: bedrock aws config: %w", err)
	}
	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (io.Reader, UsageFunc, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := convertMessagesBedrock(req.Messages)
	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		converseReq.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(req.MaxTokens)),
		}
	}

	out, err := p.client.ConverseStream(ctx, converseReq)
	if err != nil {
		return nil, nil, fmt.Errorf("providers: bedrock converse stream: %w", err)
	}

	pr, pw := io.Pipe()
	box := newUsageBox()
	start := time.Now()

	go func() {
		eventStream := out.GetStream()
		defer eventStream.Close()

		var inputTokens, outputTokens int
		defer func() {
			box.set(Usage{
				PromptTokens:     inputTokens,
				CompletionTokens: outputTokens,
				TotalTokens:      inputTokens + outputTokens,
				DurationMS:       time.Since(start).Milliseconds(),
			})
		}()

		for event := range eventStream.Events() {
			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if textDelta, ok := ev.Value.Delta.(*types.ContentBlockDeltaMemberText); ok && textDelta.Value != "" {
					if _, werr := pw.Write([]byte(textDelta.Value)); werr != nil {
						pw.CloseWithError(werr)
						return
					}
				}
			case *types.ConverseStreamOutputMemberMetadata:
				if usage := ev.Value.Usage; usage != nil {
					if usage.InputTokens != nil {
						inputTokens = int(*usage.InputTokens)
					}
					if usage.OutputTokens != nil {
						outputTokens = int(*usage.OutputTokens)
					}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				pw.Close()
				return
			}
		}
		if err := eventStream.Err(); err != nil {
			pw.CloseWithError(fmt.Errorf("providers: bedrock stream: %w", err))
			return
		}
		pw.Close()
	}()

	return pr, box.get, nil
}

func convertMessagesBedrock(msgs []models.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		role := types.ConversationRoleUser
		content := m.Content
		if m.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		} else if m.Role == models.RoleTool {
			content = "[tool result] " + content
		}
		out = append(out, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: content}},
		})
	}
	return out
}
