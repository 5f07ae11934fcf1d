// Package llmparser implements the LLM Output Parser (§4.5): a streaming
// delimiter state machine that turns a raw LLM byte stream into a lazy
// sequence of typed events. Grounded on the teacher's
// internal/agent/event_emitter.go (sequenced event struct + channel sink
// pattern) and internal/agent/transcript_repair.go (tolerant recovery from
// malformed model output), adapted to the spec's exact
// tool-calls-then-delimiter-then-markdown wire grammar, which no teacher
// file implements.
package llmparser

import "encoding/json"

// Delimiter is the fixed marker separating the tool-calls JSON region from
// the markdown content region (§E.5 Open Question decision: "✂️🐱").
const Delimiter = "✂\U0001F431"

// EventKind tags which concrete event a streamed Event carries.
type EventKind string

const (
	KindToolCall EventKind = "tool_call"
	KindContent  EventKind = "content"
	KindEnd      EventKind = "end"
	KindError    EventKind = "error"
)

// ErrorKind classifies an ErrorEvent (§4.5, §8 boundary behaviors).
type ErrorKind string

const (
	ErrMalformedPrelude ErrorKind = "malformed_prelude"
	ErrInvalidToolCall  ErrorKind = "invalid_tool_call"
)

// Usage mirrors the terminal usage record an LLM Generation Service
// yields (§6).
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	DurationMS       int `json:"duration_ms"`
}

// Event is one item in the parser's lazy output sequence. Exactly one of
// the typed fields is populated, selected by Kind.
type Event struct {
	Kind EventKind

	ToolCall *ToolCallEvent
	Content  *ContentEvent
	End      *EndEvent
	Error    *ErrorEvent
}

// ToolCallEvent is a decoded, schema-validated tool invocation request.
type ToolCallEvent struct {
	ID         string
	Type       string
	Parameters json.RawMessage
}

// ContentEvent is one chunk of markdown destined for the assistant message.
type ContentEvent struct {
	MarkdownDelta string
}

// EndEvent terminates the sequence and carries the call's usage record.
type EndEvent struct {
	Usage Usage
}

// ErrorEvent reports a recoverable parse problem; it does not terminate
// the sequence except when it is the parser's final event.
type ErrorEvent struct {
	Kind    ErrorKind
	Message string
}

func toolCallEvt(e ToolCallEvent) Event { return Event{Kind: KindToolCall, ToolCall: &e} }
func contentEvt(e ContentEvent) Event   { return Event{Kind: KindContent, Content: &e} }
func endEvt(e EndEvent) Event           { return Event{Kind: KindEnd, End: &e} }
func errorEvt(e ErrorEvent) Event       { return Event{Kind: KindError, Error: &e} }
