package retrieval

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbeddingService implements EmbeddingService against OpenAI's
// embeddings endpoint, reusing the same client library as
// providers.OpenAIProvider (§4.7 step 2 "embeds the query via the
// Embedding Service").
type OpenAIEmbeddingService struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// OpenAIEmbeddingConfig configures the embedding client.
type OpenAIEmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string // defaults to text-embedding-3-small
}

// NewOpenAIEmbeddingService builds an OpenAIEmbeddingService.
func NewOpenAIEmbeddingService(cfg OpenAIEmbeddingConfig) (*OpenAIEmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("retrieval: openai embedding API key is required")
	}
	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbeddingService{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Embed implements EmbeddingService.
func (s *OpenAIEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("retrieval: openai embed: empty response")
	}
	return resp.Data[0].Embedding, nil
}
