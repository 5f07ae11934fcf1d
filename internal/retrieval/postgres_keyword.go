package retrieval

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// PostgresKeywordIndex implements KeywordIndex via Postgres full-text
// search, grounded directly on the teacher's
// internal/memory/backend/pgvector/backend.go searchBM25 query
// (ts_rank_cd/plainto_tsquery over a content_tsv generated column),
// rescoped from `memories` to a `knowledge_items` table keyed by bucket
// instead of session/channel/agent scope.
type PostgresKeywordIndex struct {
	db *sql.DB
}

// NewPostgresKeywordIndex wraps an already-open *sql.DB (pgx/v5/stdlib
// driver, matching internal/tasks.PostgresStore).
func NewPostgresKeywordIndex(db *sql.DB) *PostgresKeywordIndex {
	return &PostgresKeywordIndex{db: db}
}

func (k *PostgresKeywordIndex) Search(ctx context.Context, bucket models.KnowledgeBucket, query string, topK int) ([]ScoredItem, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval: keyword search requires non-empty query text")
	}
	rows, err := k.db.QueryContext(ctx, `
		SELECT id, title, content, content_hash,
		       ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM knowledge_items
		WHERE bucket = $2 AND content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $3
	`, query, string(bucket), topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: keyword search query: %w", err)
	}
	defer rows.Close()

	var results []ScoredItem
	rank := 0
	for rows.Next() {
		rank++
		var item models.KnowledgeItem
		var score float32
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &item.ContentHash, &score); err != nil {
			return nil, fmt.Errorf("retrieval: scan keyword result: %w", err)
		}
		item.Bucket = bucket
		results = append(results, ScoredItem{Item: &item, Score: score, Rank: rank, Method: "keyword"})
	}
	return results, rows.Err()
}
