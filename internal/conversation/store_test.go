package conversation

import (
	"context"
	"testing"

	"github.com/nexuscore/assistant-core/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGetConversation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv := &models.Conversation{Principal: "user:alice", Title: "test"}

	require.NoError(t, s.CreateConversation(ctx, conv))
	require.NotEmpty(t, conv.ID)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "user:alice", got.Principal)
}

func TestMemoryStore_GetConversation_NotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetConversation(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AppendMessageAndHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv := &models.Conversation{Principal: "user:alice"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	msg1 := &models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: "hello"}
	msg2 := &models.Message{ConversationID: conv.ID, Role: models.RoleAssistant, Content: "hi there"}
	require.NoError(t, s.AppendMessage(ctx, msg1))
	require.NoError(t, s.AppendMessage(ctx, msg2))
	require.NotEmpty(t, msg1.ID)

	history, err := s.History(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "hello", history[0].Content)
	require.Equal(t, "hi there", history[1].Content)
}

func TestMemoryStore_History_RespectsLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv := &models.Conversation{Principal: "user:alice"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendMessage(ctx, &models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: "m"}))
	}

	history, err := s.History(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestMemoryStore_UpdateMessage(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv := &models.Conversation{Principal: "user:alice"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	msg := &models.Message{ConversationID: conv.ID, Role: models.RoleAssistant, Content: "partial"}
	require.NoError(t, s.AppendMessage(ctx, msg))

	msg.Content = "final content"
	require.NoError(t, s.UpdateMessage(ctx, msg))

	history, err := s.History(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Equal(t, "final content", history[0].Content)
}

func TestMemoryStore_UpdateMessage_NotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.UpdateMessage(context.Background(), &models.Message{ID: "nope", ConversationID: "c1"})
	require.ErrorIs(t, err, ErrNotFound)
}
