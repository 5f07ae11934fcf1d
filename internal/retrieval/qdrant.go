package retrieval

import (
	"context"
	"fmt"

	"github.com/nexuscore/assistant-core/pkg/models"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant-backed VectorIndex.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantIndex implements VectorIndex against a Qdrant collection, storing
// one point per KnowledgeItem with its bucket as a payload field.
// Grounded on the pack's Qdrant usage (e.g. kadirpekel-hector's
// pkg/vector/qdrant.go NewClient/Search/payload-conversion shape).
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex dials a Qdrant gRPC endpoint.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantIndex{client: client, collection: cfg.Collection}, nil
}

// Search implements VectorIndex by querying Qdrant and filtering results
// to the requested bucket via a payload match.
func (q *QdrantIndex) Search(ctx context.Context, bucket models.KnowledgeBucket, query []float32, topK int) ([]ScoredItem, error) {
	limit := uint64(topK)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("bucket", string(bucket)),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant query: %w", err)
	}

	results := make([]ScoredItem, 0, len(points))
	for i, p := range points {
		item := itemFromPayload(p.Payload)
		if item == nil {
			continue
		}
		results = append(results, ScoredItem{Item: item, Score: p.Score, Rank: i + 1, Method: "vector"})
	}
	return results, nil
}

func itemFromPayload(payload map[string]*qdrant.Value) *models.KnowledgeItem {
	get := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	id := get("id")
	if id == "" {
		return nil
	}
	return &models.KnowledgeItem{
		ID:          id,
		Bucket:      models.KnowledgeBucket(get("bucket")),
		Title:       get("title"),
		Content:     get("content"),
		ContentHash: get("content_hash"),
	}
}
