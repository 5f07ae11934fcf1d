package retrieval

import (
	"context"
	"strings"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// LLMClassifier optionally refines a keyword classification via a model
// call (§4.7 step 1 "plus an optional LLM classifier"), grounded on the
// teacher's multiagent.IntentClassifier interface shape.
type LLMClassifier interface {
	Classify(ctx context.Context, query string, candidates []string) (bucket string, confidence float64, err error)
}

// KeywordClassifier buckets a query by substring matching against a
// configurable keyword table, falling back to an optional LLMClassifier
// when no bucket matches confidently. Grounded on the teacher's
// internal/multiagent/router.go pattern-match-then-fallback shape.
type KeywordClassifier struct {
	keywords map[models.KnowledgeBucket][]string
	llm      LLMClassifier
}

// NewKeywordClassifier builds a classifier from a bucket→keywords table.
// llm may be nil to skip the LLM fallback.
func NewKeywordClassifier(keywords map[models.KnowledgeBucket][]string, llm LLMClassifier) *KeywordClassifier {
	return &KeywordClassifier{keywords: keywords, llm: llm}
}

// DefaultKeywords is a starting keyword table for the spec's four buckets.
func DefaultKeywords() map[models.KnowledgeBucket][]string {
	return map[models.KnowledgeBucket][]string{
		models.BucketPersonal: {"my", "i ", "remind me", "schedule", "family", "health"},
		models.BucketCreator:  {"video", "script", "content", "publish", "audience", "channel"},
		models.BucketProjects: {"project", "repo", "deploy", "bug", "release", "sprint"},
	}
}

func (c *KeywordClassifier) Classify(ctx context.Context, query string, permitted []models.KnowledgeBucket) (models.KnowledgeBucket, bool) {
	lower := strings.ToLower(query)
	allowed := make(map[models.KnowledgeBucket]bool, len(permitted))
	for _, b := range permitted {
		allowed[b] = true
	}

	var best models.KnowledgeBucket
	bestHits := 0
	for bucket, words := range c.keywords {
		if len(allowed) > 0 && !allowed[bucket] {
			continue
		}
		hits := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = bucket
		}
	}
	if bestHits > 0 {
		return best, false
	}

	if c.llm != nil {
		candidates := bucketNames(permitted)
		if bucket, confidence, err := c.llm.Classify(ctx, query, candidates); err == nil && confidence >= 0.5 {
			return models.KnowledgeBucket(bucket), false
		}
	}
	return models.BucketOther, true
}

func bucketNames(buckets []models.KnowledgeBucket) []string {
	names := make([]string, len(buckets))
	for i, b := range buckets {
		names[i] = string(b)
	}
	return names
}
