// Package usage persists and aggregates UsageRecords written by the
// Conversation Turn Driver (§4.6 step 3, "writes one UsageRecord on
// completion"), grounded on the teacher's internal/usage/usage.go Tracker
// (mutex-guarded slice + provider:model/user aggregate maps), adapted from
// an ephemeral in-process tracker to a persisted Store so usage survives
// restarts and is queryable across conversations.
package usage

import (
	"context"
	"sort"
	"sync"

	"github.com/nexuscore/assistant-core/pkg/models"
)

// Store persists UsageRecords and answers aggregate queries.
type Store interface {
	Record(ctx context.Context, rec models.UsageRecord) error
	TotalsByModel(ctx context.Context, model string) (Totals, error)
	TotalsByConversation(ctx context.Context, conversationID string) (Totals, error)
	Recent(ctx context.Context, limit int) ([]models.UsageRecord, error)
}

// Totals aggregates token counts across a set of UsageRecords.
type Totals struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Count            int
}

func (t *Totals) add(rec models.UsageRecord) {
	t.PromptTokens += rec.PromptTokens
	t.CompletionTokens += rec.CompletionTokens
	t.TotalTokens += rec.TotalTokens
	t.Count++
}

// MemoryStore is an in-memory Store, grounded on the teacher's Tracker.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.UsageRecord
	byModel map[string]*Totals
	byConv  map[string]*Totals
}

// NewMemoryStore returns a new in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byModel: make(map[string]*Totals),
		byConv:  make(map[string]*Totals),
	}
}

func (s *MemoryStore) Record(ctx context.Context, rec models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)

	if s.byModel[rec.Model] == nil {
		s.byModel[rec.Model] = &Totals{}
	}
	s.byModel[rec.Model].add(rec)

	if rec.ConversationID != "" {
		if s.byConv[rec.ConversationID] == nil {
			s.byConv[rec.ConversationID] = &Totals{}
		}
		s.byConv[rec.ConversationID].add(rec)
	}
	return nil
}

func (s *MemoryStore) TotalsByModel(ctx context.Context, model string) (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.byModel[model]; t != nil {
		return *t, nil
	}
	return Totals{}, nil
}

func (s *MemoryStore) TotalsByConversation(ctx context.Context, conversationID string) (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.byConv[conversationID]; t != nil {
		return *t, nil
	}
	return Totals{}, nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	start := len(s.records) - limit
	out := make([]models.UsageRecord, limit)
	copy(out, s.records[start:])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
