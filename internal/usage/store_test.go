package usage

import (
	"context"
	"testing"
	"time"

	"github.com/nexuscore/assistant-core/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecordAndTotalsByModel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, models.UsageRecord{
		Model: "claude-sonnet-4-20250514", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
		ConversationID: "c1", CreatedAt: time.Now(),
	}))
	require.NoError(t, s.Record(ctx, models.UsageRecord{
		Model: "claude-sonnet-4-20250514", PromptTokens: 200, CompletionTokens: 75, TotalTokens: 275,
		ConversationID: "c1", CreatedAt: time.Now(),
	}))

	totals, err := s.TotalsByModel(ctx, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	require.Equal(t, int64(300), totals.PromptTokens)
	require.Equal(t, int64(125), totals.CompletionTokens)
	require.Equal(t, int64(425), totals.TotalTokens)
	require.Equal(t, 2, totals.Count)
}

func TestMemoryStore_TotalsByConversation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 10, ConversationID: "conv-a"}))
	require.NoError(t, s.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 20, ConversationID: "conv-b"}))

	totals, err := s.TotalsByConversation(ctx, "conv-a")
	require.NoError(t, err)
	require.Equal(t, int64(10), totals.TotalTokens)
	require.Equal(t, 1, totals.Count)
}

func TestMemoryStore_Recent_OrdersNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	require.NoError(t, s.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 1, CreatedAt: older}))
	require.NoError(t, s.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 2, CreatedAt: newer}))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, int64(2), recent[0].TotalTokens)
}

func TestMemoryStore_TotalsByModel_UnknownModelReturnsZero(t *testing.T) {
	s := NewMemoryStore()
	totals, err := s.TotalsByModel(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Equal(t, Totals{}, totals)
}
