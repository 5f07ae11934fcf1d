package models

import "time"

// KnowledgeBucket classifies a KnowledgeItem into a domain bucket used by
// the Retrieval Orchestrator's classification step (§4.7 step 1).
type KnowledgeBucket string

const (
	BucketPersonal KnowledgeBucket = "personal"
	BucketCreator  KnowledgeBucket = "creator"
	BucketProjects KnowledgeBucket = "projects"
	BucketOther    KnowledgeBucket = "other"
)

// KnowledgeItem is a retrievable unit maintained by the Retrieval
// Orchestrator. ContentHash is unique; re-ingesting identical content
// updates Metadata without creating a duplicate (§3 invariant, §8.4).
type KnowledgeItem struct {
	ID          string          `json:"id"`
	SourceType  string          `json:"source_type"`
	Bucket      KnowledgeBucket `json:"bucket"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Embedding   []float32       `json:"-"`
	Keywords    []string        `json:"keywords,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	ContentHash string          `json:"content_hash"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UsageRecord captures accounting data for a single LLM API invocation
// (§3, §4.6 step 3).
type UsageRecord struct {
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	DurationMS       int64     `json:"duration_ms"`
	ConversationID   string    `json:"conversation_id,omitempty"`
	MessageID        string    `json:"message_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
