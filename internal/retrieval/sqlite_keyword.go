package retrieval

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// SQLiteKeywordIndex implements KeywordIndex via SQLite's FTS5 extension,
// grounded on the same ts_rank_cd-over-tsvector shape as
// PostgresKeywordIndex but targeting the embedded/single-node "memory"
// storage.driver deployment (§ storage config), where standing up a
// Postgres full-text index is unwarranted. One process, one file (or
// :memory:), one `knowledge_items_fts` virtual table.
type SQLiteKeywordIndex struct {
	db *sql.DB
}

// NewSQLiteKeywordIndex opens (or creates) the FTS5 virtual table backing
// keyword search at path, which may be ":memory:" for an ephemeral index.
func NewSQLiteKeywordIndex(path string) (*SQLiteKeywordIndex, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: open sqlite keyword index %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_items_fts USING fts5(
			id UNINDEXED, bucket UNINDEXED, title, content, content_hash UNINDEXED
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("retrieval: create fts5 table: %w", err)
	}
	return &SQLiteKeywordIndex{db: db}, nil
}

// Index upserts one KnowledgeItem into the FTS5 table, replacing any prior
// row with the same id.
func (k *SQLiteKeywordIndex) Index(ctx context.Context, item *models.KnowledgeItem) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM knowledge_items_fts WHERE id = ?`, item.ID); err != nil {
		return fmt.Errorf("retrieval: sqlite keyword delete-before-insert: %w", err)
	}
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO knowledge_items_fts (id, bucket, title, content, content_hash)
		VALUES (?, ?, ?, ?, ?)
	`, item.ID, string(item.Bucket), item.Title, item.Content, item.ContentHash)
	if err != nil {
		return fmt.Errorf("retrieval: sqlite keyword insert: %w", err)
	}
	return nil
}

// Search implements KeywordIndex via FTS5's bm25() ranking function,
// negated since bm25 returns lower-is-better scores and ScoredItem.Score
// is higher-is-better (matching the reciprocal-rank fuse step's
// assumption, per fuse.go).
func (k *SQLiteKeywordIndex) Search(ctx context.Context, bucket models.KnowledgeBucket, query string, topK int) ([]ScoredItem, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval: keyword search requires non-empty query text")
	}
	rows, err := k.db.QueryContext(ctx, `
		SELECT id, title, content, content_hash, bm25(knowledge_items_fts) AS rank
		FROM knowledge_items_fts
		WHERE knowledge_items_fts MATCH ? AND bucket = ?
		ORDER BY rank ASC
		LIMIT ?
	`, query, string(bucket), topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: sqlite keyword search query: %w", err)
	}
	defer rows.Close()

	var results []ScoredItem
	rank := 0
	for rows.Next() {
		rank++
		var item models.KnowledgeItem
		var bm25Score float32
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &item.ContentHash, &bm25Score); err != nil {
			return nil, fmt.Errorf("retrieval: scan sqlite keyword result: %w", err)
		}
		item.Bucket = bucket
		results = append(results, ScoredItem{Item: &item, Score: -bm25Score, Rank: rank, Method: "keyword"})
	}
	return results, rows.Err()
}

// Close releases the underlying database handle.
func (k *SQLiteKeywordIndex) Close() error { return k.db.Close() }
