// Package retrieval implements the Retrieval Orchestrator (§4.7):
// classify → vector search → keyword search → reciprocal-rank fuse →
// greedy pack into a token-bounded ContextBundle with provenance.
// Grounded on the teacher's internal/memory/backend.Backend (SearchMode
// vector/bm25/hybrid split) and internal/rag/context/injector.go (greedy
// MaxChunks/MaxTokens packing), generalized from a single weighted-hybrid
// score into the spec's reciprocal-rank fusion across two independently
// ranked result sets.
package retrieval

import (
	"context"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// ScoredItem is one ranked hit from a single search method.
type ScoredItem struct {
	Item   *models.KnowledgeItem
	Score  float32
	Rank   int    // 1-based rank within this method's result set
	Method string // "vector" or "keyword"
}

// Provenance records how a packed item was retrieved, for later citation
// (§4.7 step 6).
type Provenance struct {
	SourceID    string
	Method      string
	Rank        int
	Score       float32
	FusedRank   int
	FusedScore  float64
}

// PackedItem is one KnowledgeItem selected into a ContextBundle.
type PackedItem struct {
	Item       *models.KnowledgeItem
	Provenance Provenance
}

// ContextBundle is the Retrieval Orchestrator's output, bounded by the
// caller's token budget B_ctx.
type ContextBundle struct {
	Items      []PackedItem
	TokensUsed int
	Truncated  bool // true if items remained after the budget was exhausted
}

// VectorIndex performs cosine-similarity search over embeddings within a
// bucket (§4.7 step 2).
type VectorIndex interface {
	Search(ctx context.Context, bucket models.KnowledgeBucket, query []float32, topK int) ([]ScoredItem, error)
}

// KeywordIndex performs BM25-equivalent ranking over tokenized keywords
// within a bucket (§4.7 step 3).
type KeywordIndex interface {
	Search(ctx context.Context, bucket models.KnowledgeBucket, query string, topK int) ([]ScoredItem, error)
}

// EmbeddingService computes a query embedding via an external provider
// (§6 "Embedding Service").
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Classifier buckets a query via keyword heuristics plus an optional LLM
// fallback (§4.7 step 1). Ambiguous reports whether the query matched no
// single bucket confidently, in which case the orchestrator searches
// every permitted bucket.
type Classifier interface {
	Classify(ctx context.Context, query string, permitted []models.KnowledgeBucket) (bucket models.KnowledgeBucket, ambiguous bool)
}
