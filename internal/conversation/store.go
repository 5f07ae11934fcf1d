// Package conversation persists Conversations and Messages for the
// Conversation Turn Driver (§4.6), grounded on the teacher's
// internal/sessions.Store/MemoryStore (Session/message-history CRUD,
// defensive cloning on every read/write), rescoped from the teacher's
// channel-routed Session type to this domain's Conversation/Message
// models.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscore/assistant-core/pkg/models"
)

// ErrNotFound is returned when a conversation or message lookup misses.
var ErrNotFound = errors.New("conversation: not found")

// Store persists Conversations and their Message history.
type Store interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	UpdateMessage(ctx context.Context, msg *models.Message) error
	History(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}

// maxMessagesPerConversation bounds in-memory history growth, matching the
// teacher's sessions.MemoryStore maxMessagesPerSession trim behavior.
const maxMessagesPerConversation = 1000

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message
}

// NewMemoryStore returns a new in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
	}
}

func (s *MemoryStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("conversation: conversation is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *conv
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt
	conv.ID = clone.ID
	conv.CreatedAt = clone.CreatedAt
	conv.UpdatedAt = clone.UpdatedAt
	s.conversations[clone.ID] = &clone
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *conv
	return &clone, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("conversation: message is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *msg
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	msg.ID = clone.ID
	msg.CreatedAt = clone.CreatedAt

	history := s.messages[clone.ConversationID]
	history = append(history, &clone)
	if len(history) > maxMessagesPerConversation {
		history = history[len(history)-maxMessagesPerConversation:]
	}
	s.messages[clone.ConversationID] = history

	if conv, ok := s.conversations[clone.ConversationID]; ok {
		conv.UpdatedAt = clone.CreatedAt
	}
	return nil
}

func (s *MemoryStore) UpdateMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("conversation: message is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[msg.ConversationID]
	for i, m := range history {
		if m.ID == msg.ID {
			clone := *msg
			history[i] = &clone
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) History(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[conversationID]
	if limit <= 0 || limit > len(history) {
		limit = len(history)
	}
	start := len(history) - limit
	out := make([]*models.Message, limit)
	for i, m := range history[start:] {
		clone := *m
		out[i] = &clone
	}
	return out, nil
}
