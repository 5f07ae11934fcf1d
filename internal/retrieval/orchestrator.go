package retrieval

import (
	"context"
	"fmt"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// Config tunes retrieval search breadth and budget, mirroring
// internal/config.RetrievalConfig's VectorTopK/KeywordTopK/ContextBudget
// fields.
type Config struct {
	VectorTopK    int
	KeywordTopK   int
	VectorThresh  float32
	ContextBudget int
}

// DefaultConfig returns sensible retrieval defaults.
func DefaultConfig() Config {
	return Config{VectorTopK: 10, KeywordTopK: 10, VectorThresh: 0.7, ContextBudget: 4000}
}

// Orchestrator implements retrieve(query, principal, budget) → ContextBundle
// (§4.7).
type Orchestrator struct {
	classifier Classifier
	embeddings EmbeddingService
	vector     VectorIndex
	keyword    KeywordIndex
	cfg        Config
}

// New builds an Orchestrator. embeddings/vector may be nil to run
// keyword-only retrieval (e.g. in tests or when no embedding provider is
// configured).
func New(classifier Classifier, embeddings EmbeddingService, vector VectorIndex, keyword KeywordIndex, cfg Config) *Orchestrator {
	if cfg.VectorTopK <= 0 {
		cfg.VectorTopK = 10
	}
	if cfg.KeywordTopK <= 0 {
		cfg.KeywordTopK = 10
	}
	return &Orchestrator{classifier: classifier, embeddings: embeddings, vector: vector, keyword: keyword, cfg: cfg}
}

// Retrieve runs the full §4.7 pipeline: classify, search both methods,
// fuse by reciprocal rank, and pack into a budget-bounded ContextBundle.
// budget overrides cfg.ContextBudget when positive.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, permitted []models.KnowledgeBucket, budget int) (ContextBundle, error) {
	if budget <= 0 {
		budget = o.cfg.ContextBudget
	}

	buckets := permitted
	if o.classifier != nil {
		bucket, ambiguous := o.classifier.Classify(ctx, query, permitted)
		if !ambiguous {
			buckets = []models.KnowledgeBucket{bucket}
		}
	}

	var vectorHits, keywordHits []ScoredItem
	var err error
	if o.vector != nil && o.embeddings != nil {
		vectorHits, err = o.searchVector(ctx, query, buckets)
		if err != nil {
			return ContextBundle{}, fmt.Errorf("retrieval: vector search: %w", err)
		}
	}
	if o.keyword != nil {
		keywordHits, err = o.searchKeyword(ctx, query, buckets)
		if err != nil {
			return ContextBundle{}, fmt.Errorf("retrieval: keyword search: %w", err)
		}
	}

	rankedItems := fuseRank(vectorHits, keywordHits)
	return packGreedy(rankedItems, budget), nil
}

func (o *Orchestrator) searchVector(ctx context.Context, query string, buckets []models.KnowledgeBucket) ([]ScoredItem, error) {
	embedding, err := o.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return o.searchAcrossBuckets(buckets, func(b models.KnowledgeBucket) ([]ScoredItem, error) {
		hits, err := o.vector.Search(ctx, b, embedding, o.cfg.VectorTopK)
		if err != nil {
			return nil, err
		}
		return filterThreshold(hits, o.cfg.VectorThresh), nil
	})
}

func (o *Orchestrator) searchKeyword(ctx context.Context, query string, buckets []models.KnowledgeBucket) ([]ScoredItem, error) {
	return o.searchAcrossBuckets(buckets, func(b models.KnowledgeBucket) ([]ScoredItem, error) {
		return o.keyword.Search(ctx, b, query, o.cfg.KeywordTopK)
	})
}

func (o *Orchestrator) searchAcrossBuckets(buckets []models.KnowledgeBucket, search func(models.KnowledgeBucket) ([]ScoredItem, error)) ([]ScoredItem, error) {
	if len(buckets) == 0 {
		buckets = []models.KnowledgeBucket{models.BucketPersonal, models.BucketCreator, models.BucketProjects, models.BucketOther}
	}
	var all []ScoredItem
	for _, b := range buckets {
		hits, err := search(b)
		if err != nil {
			return nil, err
		}
		all = append(all, hits...)
	}
	return all, nil
}

func filterThreshold(items []ScoredItem, threshold float32) []ScoredItem {
	if threshold <= 0 {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if it.Score >= threshold {
			out = append(out, it)
		}
	}
	return out
}
