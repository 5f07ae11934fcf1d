package turndriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nexuscore/assistant-core/internal/conversation"
	"github.com/nexuscore/assistant-core/internal/llmparser"
	"github.com/nexuscore/assistant-core/internal/providers"
	"github.com/nexuscore/assistant-core/internal/retrieval"
	"github.com/nexuscore/assistant-core/internal/tasks"
	"github.com/nexuscore/assistant-core/internal/toolregistry"
	"github.com/nexuscore/assistant-core/pkg/models"
)

// Request is the input to HandleMessage: a new user message arriving on an
// existing conversation (§4.6).
type Request struct {
	ConversationID   string
	Principal        string
	PermittedBuckets []models.KnowledgeBucket
	Content          string
}

// historyFetchLimit bounds how many raw messages are pulled from the
// conversation store before token-budget truncation narrows them further
// (§4.6 step 2); generous enough that TruncateHistory, not this limit, is
// what actually governs what the model sees.
const historyFetchLimit = 200

// HandleMessage executes the full turn contract (§4.6 steps 1-8): retrieve
// context, compose the prompt, stream a completion, route it through the
// parser, dispatch tool calls, and finalize the assistant message. Once
// the completion request has been made it returns the assistant Message
// that was appended to the conversation, also when the LLM transport or a
// critical tool fails (then flagged via Metadata, alongside the error).
// Failures before that point (appending the user message, retrieval,
// loading history) return a nil Message.
func (d *Driver) HandleMessage(ctx context.Context, req Request) (*models.Message, error) {
	userMsg := &models.Message{
		ConversationID: req.ConversationID,
		Role:           models.RoleUser,
		Content:        req.Content,
		Principal:      req.Principal,
	}
	if err := d.deps.Conversation.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("turndriver: append user message: %w", err)
	}

	bundle, err := d.deps.Retrieval.Retrieve(ctx, req.Content, req.PermittedBuckets, d.cfg.ContextBudgetTokens)
	if err != nil {
		return nil, fmt.Errorf("turndriver: retrieve context: %w", err)
	}

	rawHistory, err := d.deps.Conversation.History(ctx, req.ConversationID, historyFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("turndriver: load history: %w", err)
	}
	history := conversation.TruncateHistory(rawHistory, d.cfg.HistoryBudgetTokens, d.cfg.PreserveWindow)

	completionReq := providers.CompletionRequest{
		Model:     d.cfg.Model,
		System:    composeSystemPrompt(d.cfg.SystemPrompt, bundle),
		Messages:  toProviderMessages(history),
		MaxTokens: d.cfg.MaxCompletionTokens,
	}

	stream, usageFn, err := d.deps.Provider.Complete(ctx, completionReq)
	if err != nil {
		return d.finalizeTransportFailure(ctx, req, err)
	}

	parentTaskID, err := d.conversationParentTask(ctx, req)
	if err != nil {
		d.deps.Logger.Warn(ctx, "turndriver: could not resolve conversation parent task", "error", err, "conversation_id", req.ConversationID)
	}

	events := d.deps.Parser.Parse(ctx, stream, adaptUsageFunc(usageFn))

	assistant := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Role:           models.RoleAssistant,
		Principal:      req.Principal,
	}
	var content strings.Builder
	var toolMessages []*models.Message
	var criticalErr error

	for ev := range events {
		switch ev.Kind {
		case llmparser.KindToolCall:
			tc, toolMsg, critErr := d.dispatchToolCall(ctx, req, assistant.ID, parentTaskID, *ev.ToolCall)
			assistant.ToolCalls = append(assistant.ToolCalls, tc)
			toolMessages = append(toolMessages, toolMsg)
			if critErr != nil && criticalErr == nil {
				criticalErr = critErr
			}
		case llmparser.KindContent:
			content.WriteString(ev.Content.MarkdownDelta)
		case llmparser.KindError:
			d.deps.Logger.Warn(ctx, "turndriver: llm output parse error", "kind", ev.Error.Kind, "message", ev.Error.Message, "conversation_id", req.ConversationID)
		case llmparser.KindEnd:
			d.recordUsage(ctx, req, assistant.ID, ev.End.Usage)
		}
	}

	assistant.Content = content.String()
	if criticalErr != nil {
		assistant.Metadata = map[string]any{"error": true, "error_message": criticalErr.Error()}
	}

	if err := d.deps.Conversation.AppendMessage(ctx, assistant); err != nil {
		return nil, fmt.Errorf("turndriver: append assistant message: %w", err)
	}
	for _, tm := range toolMessages {
		tm.ConversationID = req.ConversationID
		if err := d.deps.Conversation.AppendMessage(ctx, tm); err != nil {
			d.deps.Logger.Warn(ctx, "turndriver: append tool result message failed", "error", err, "conversation_id", req.ConversationID)
		}
	}

	if criticalErr != nil {
		return assistant, fmt.Errorf("turndriver: critical tool failed: %w", criticalErr)
	}
	return assistant, nil
}

// dispatchToolCall validates/invokes one tool call (toolregistry steps
// 1-6) and builds the ToolCall record plus its paired tool-role Message.
// A non-nil critical error is returned only when the tool that failed was
// declared Critical (§4.6: "tool dispatch errors do not fail the turn
// unless the tool was declared critical").
func (d *Driver) dispatchToolCall(ctx context.Context, req Request, originMessageID, parentTaskID string, ev llmparser.ToolCallEvent) (models.ToolCall, *models.Message, error) {
	principal := toolregistry.Principal{ID: req.Principal, ConversationID: req.ConversationID}
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.ToolCallTimeout)
	defer cancel()

	outcome := d.deps.Dispatcher.Dispatch(callCtx, ev.ID, ev.Type, ev.Parameters, principal, parentTaskID)

	tc := models.ToolCall{
		ID:              ev.ID,
		Type:            ev.Type,
		Parameters:      ev.Parameters,
		OriginMessageID: originMessageID,
	}
	result := models.ToolResult{ToolCallID: ev.ID}
	var critErr error
	if outcome.Err != nil {
		tc.Status = models.ToolCallError
		tc.Error = outcome.Err.Error()
		result.IsError = true
		result.Content = outcome.Err.Error()
		if d.toolIsCritical(ev.Type) {
			critErr = fmt.Errorf("tool %q: %w", ev.Type, outcome.Err)
		}
	} else {
		tc.Status = models.ToolCallOK
		tc.Result = outcome.Output
		result.Data = outcome.Output
		result.Content = string(outcome.Output)
	}

	toolMsg := &models.Message{
		Role:        models.RoleTool,
		Principal:   req.Principal,
		ToolResults: []models.ToolResult{result},
	}
	return tc, toolMsg, critErr
}

func (d *Driver) toolIsCritical(toolType string) bool {
	if d.deps.Registry == nil {
		return false
	}
	tool, ok := d.deps.Registry.Get(toolType)
	if !ok {
		return false
	}
	return tool.Capabilities.Critical
}

func (d *Driver) recordUsage(ctx context.Context, req Request, messageID string, u llmparser.Usage) {
	rec := models.UsageRecord{
		Model:            d.cfg.Model,
		PromptTokens:     int64(u.PromptTokens),
		CompletionTokens: int64(u.CompletionTokens),
		TotalTokens:      int64(u.TotalTokens),
		DurationMS:       int64(u.DurationMS),
		ConversationID:   req.ConversationID,
		MessageID:        messageID,
	}
	if err := d.deps.Usage.Record(ctx, rec); err != nil {
		d.deps.Logger.Warn(ctx, "turndriver: record usage failed", "error", err, "conversation_id", req.ConversationID)
	}
}

// finalizeTransportFailure handles an LLM transport error (§4.6 failure
// rule: "an LLM transport error marks the turn failed but preserves any
// partial streamed content"). Since Complete failed before any bytes
// streamed, there is no partial content to preserve here; the assistant
// message still gets appended so the conversation shows the failure.
func (d *Driver) finalizeTransportFailure(ctx context.Context, req Request, transportErr error) (*models.Message, error) {
	assistant := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Role:           models.RoleAssistant,
		Principal:      req.Principal,
		Metadata:       map[string]any{"error": true, "error_message": transportErr.Error()},
	}
	if err := d.deps.Conversation.AppendMessage(ctx, assistant); err != nil {
		return nil, fmt.Errorf("turndriver: append assistant message after transport failure: %w", err)
	}
	return assistant, fmt.Errorf("turndriver: llm transport error: %w", transportErr)
}

// conversationParentTask returns the implicit conversation-scoped parent
// task (§4.6 step 7) that tool-spawned subtasks attach to, creating it on
// first use. Cached in-process per conversation; a restart simply creates
// a fresh parent, which is harmless since its only role is to group
// subtasks.
func (d *Driver) conversationParentTask(ctx context.Context, req Request) (string, error) {
	d.mu.Lock()
	if id, ok := d.parentTasks[req.ConversationID]; ok {
		d.mu.Unlock()
		return id, nil
	}
	d.mu.Unlock()

	t := &tasks.Task{
		ID:             uuid.NewString(),
		Kind:           tasks.KindConversation,
		Principal:      req.Principal,
		ConversationID: req.ConversationID,
		Title:          "conversation " + req.ConversationID,
		Status:         tasks.StatusRunning,
		ExecutionMode:  tasks.ModeParallel,
	}
	if err := d.deps.Tasks.CreateTask(ctx, t); err != nil {
		return "", err
	}

	d.mu.Lock()
	d.parentTasks[req.ConversationID] = t.ID
	d.mu.Unlock()
	return t.ID, nil
}

func composeSystemPrompt(base string, bundle retrieval.ContextBundle) string {
	var b strings.Builder
	b.WriteString(base)
	if len(bundle.Items) == 0 {
		return b.String()
	}
	b.WriteString("\n\n# Retrieved context\n")
	for _, it := range bundle.Items {
		fmt.Fprintf(&b, "\n## %s (%s, score %.3f)\n%s\n", it.Item.Title, it.Provenance.Method, it.Provenance.Score, it.Item.Content)
	}
	return b.String()
}

func toProviderMessages(msgs []*models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			continue
		}
		out = append(out, *m)
	}
	return out
}

func adaptUsageFunc(fn providers.UsageFunc) llmparser.UsageFunc {
	if fn == nil {
		return nil
	}
	return func() llmparser.Usage {
		u := fn()
		return llmparser.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
			DurationMS:       int(u.DurationMS),
		}
	}
}
