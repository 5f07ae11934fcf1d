package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// PostgresStore implements Store against Postgres via database/sql using
// the pgx/v5 stdlib driver, grounded on internal/tasks.PostgresStore's
// driver and JSON-marshalled-auxiliary-column conventions, applied to a
// conversations/messages schema instead of the task graph's.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-open *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, principal, title, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, conv.ID, conv.Principal, conv.Title)
	if err != nil {
		return fmt.Errorf("conversation: create: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	row := s.db.QueryRowContext(ctx, `
		SELECT id, principal, COALESCE(title, ''), created_at, updated_at
		FROM conversations WHERE id = $1
	`, id)
	if err := row.Scan(&conv.ID, &conv.Principal, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversation: get: %w", err)
	}
	return &conv, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	toolCalls, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("conversation: marshal tool_calls: %w", err)
	}
	toolResults, err := json.Marshal(msg.ToolResults)
	if err != nil {
		return fmt.Errorf("conversation: marshal tool_results: %w", err)
	}
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("conversation: marshal attachments: %w", err)
	}
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("conversation: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, role, content, tool_calls, tool_results, attachments, principal, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, toolCalls, toolResults, attachments, msg.Principal, metadata)
	if err != nil {
		return fmt.Errorf("conversation: append message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("conversation: touch conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, msg *models.Message) error {
	toolCalls, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("conversation: marshal tool_calls: %w", err)
	}
	toolResults, err := json.Marshal(msg.ToolResults)
	if err != nil {
		return fmt.Errorf("conversation: marshal tool_results: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = $1, tool_calls = $2, tool_results = $3
		WHERE id = $4
	`, msg.Content, toolCalls, toolResults, msg.ID)
	if err != nil {
		return fmt.Errorf("conversation: update message: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = maxMessagesPerConversation
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, tool_calls, tool_results, attachments, principal, metadata, created_at
		FROM (
			SELECT * FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: history query: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var toolCalls, toolResults, attachments, metadata []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &toolCalls, &toolResults, &attachments, &m.Principal, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		m.Role = models.Role(role)
		if len(toolCalls) > 0 {
			if err := json.Unmarshal(toolCalls, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("conversation: unmarshal tool_calls: %w", err)
			}
		}
		if len(toolResults) > 0 {
			if err := json.Unmarshal(toolResults, &m.ToolResults); err != nil {
				return nil, fmt.Errorf("conversation: unmarshal tool_results: %w", err)
			}
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
				return nil, fmt.Errorf("conversation: unmarshal attachments: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				return nil, fmt.Errorf("conversation: unmarshal metadata: %w", err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
