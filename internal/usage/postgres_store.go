package usage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// PostgresStore implements Store against Postgres via database/sql using
// the pgx/v5 stdlib driver, grounded on internal/tasks.PostgresStore's
// driver choice and query shape, applied to a flat usage_records table
// instead of the task graph's schema.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-open *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, rec models.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records
			(model, prompt_tokens, completion_tokens, total_tokens, duration_ms, conversation_id, message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.DurationMS, rec.ConversationID, rec.MessageID)
	if err != nil {
		return fmt.Errorf("usage: insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) TotalsByModel(ctx context.Context, model string) (Totals, error) {
	return s.totals(ctx, "model = $1", model)
}

func (s *PostgresStore) TotalsByConversation(ctx context.Context, conversationID string) (Totals, error) {
	return s.totals(ctx, "conversation_id = $1", conversationID)
}

func (s *PostgresStore) totals(ctx context.Context, where string, arg string) (Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0), COUNT(*)
		FROM usage_records WHERE %s
	`, where), arg)
	if err := row.Scan(&t.PromptTokens, &t.CompletionTokens, &t.TotalTokens, &t.Count); err != nil {
		return Totals{}, fmt.Errorf("usage: totals: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, prompt_tokens, completion_tokens, total_tokens, duration_ms,
		       COALESCE(conversation_id, ''), COALESCE(message_id, ''), created_at
		FROM usage_records
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("usage: recent query: %w", err)
	}
	defer rows.Close()

	var out []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		if err := rows.Scan(&rec.Model, &rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&rec.DurationMS, &rec.ConversationID, &rec.MessageID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("usage: scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
