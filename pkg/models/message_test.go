package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestToolCallsSatisfied_NoToolCalls(t *testing.T) {
	assistant := &Message{Role: RoleAssistant}
	if !ToolCallsSatisfied(assistant, nil) {
		t.Fatal("expected satisfied when assistant has no tool calls")
	}
}

func TestToolCallsSatisfied_AllMatched(t *testing.T) {
	assistant := &Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{ID: "t1", Type: "web_search"},
			{ID: "t2", Type: "fetch_url"},
		},
	}
	following := []*Message{
		{Role: RoleTool, ToolResults: []ToolResult{{ToolCallID: "t1"}}},
		{Role: RoleTool, ToolResults: []ToolResult{{ToolCallID: "t2"}}},
		{Role: RoleAssistant},
	}
	if !ToolCallsSatisfied(assistant, following) {
		t.Fatal("expected all tool calls to be satisfied")
	}
}

func TestToolCallsSatisfied_Missing(t *testing.T) {
	assistant := &Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "t1"}, {ID: "t2"}},
	}
	following := []*Message{
		{Role: RoleTool, ToolResults: []ToolResult{{ToolCallID: "t1"}}},
		{Role: RoleAssistant},
	}
	if ToolCallsSatisfied(assistant, following) {
		t.Fatal("expected unsatisfied when a tool result is missing")
	}
}

func TestToolCallsSatisfied_StopsAtNextAssistant(t *testing.T) {
	assistant := &Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1"}}}
	following := []*Message{
		{Role: RoleAssistant},
		{Role: RoleTool, ToolResults: []ToolResult{{ToolCallID: "t1"}}},
	}
	if ToolCallsSatisfied(assistant, following) {
		t.Fatal("tool result after the next assistant turn must not count")
	}
}

func TestToolCall_JSONRoundTrip(t *testing.T) {
	tc := ToolCall{
		ID:         "t1",
		Type:       "web_search",
		Parameters: json.RawMessage(`{"q":"cats"}`),
		Status:     ToolCallPending,
	}
	b, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ToolCall
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != tc.ID || got.Type != tc.Type || string(got.Parameters) != string(tc.Parameters) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMessage_Defaults(t *testing.T) {
	m := Message{
		ID:             "m1",
		ConversationID: "c1",
		Role:           RoleUser,
		Content:        "hello",
		Principal:      "user:1",
		CreatedAt:      time.Now(),
	}
	if m.Role != RoleUser {
		t.Fatalf("expected role user, got %s", m.Role)
	}
}
