package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nexuscore/assistant-core/internal/conversation"
	"github.com/nexuscore/assistant-core/internal/turndriver"
	"github.com/nexuscore/assistant-core/pkg/models"
)

// postMessageRequest is the wire shape for POST /v1/conversations/{id}/messages,
// grounded on the teacher's internal/gateway HTTP handlers (decode-validate-
// dispatch, JSON error body on failure).
type postMessageRequest struct {
	Principal        string   `json:"principal"`
	Content          string   `json:"content"`
	PermittedBuckets []string `json:"permitted_buckets,omitempty"`
}

func (a *app) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var body postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Content == "" || body.Principal == "" {
		writeJSONError(w, http.StatusBadRequest, "principal and content are required")
		return
	}

	ctx := r.Context()
	if _, err := a.convStore.GetConversation(ctx, conversationID); err != nil {
		if !errors.Is(err, conversation.ErrNotFound) {
			writeJSONError(w, http.StatusInternalServerError, "lookup conversation")
			return
		}
		conv := &models.Conversation{
			ID:        conversationID,
			Principal: body.Principal,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := a.convStore.CreateConversation(ctx, conv); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "create conversation")
			return
		}
	}

	buckets := make([]models.KnowledgeBucket, 0, len(body.PermittedBuckets))
	for _, b := range body.PermittedBuckets {
		buckets = append(buckets, models.KnowledgeBucket(b))
	}
	if len(buckets) == 0 {
		buckets = []models.KnowledgeBucket{models.BucketPersonal, models.BucketCreator, models.BucketProjects}
	}

	msg, err := a.driver.HandleMessage(ctx, turndriver.Request{
		ConversationID:   conversationID,
		Principal:        body.Principal,
		Content:          body.Content,
		PermittedBuckets: buckets,
	})
	if err != nil {
		a.logger.Error(ctx, "turn failed", "conversation_id", conversationID, "error", err)
		writeJSONError(w, http.StatusBadGateway, "turn failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(msg)
}

func (a *app) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
