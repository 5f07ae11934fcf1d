package llmparser

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for parser events")
		}
	}
}

func TestParser_ScenarioThree_ToolCallThenContent(t *testing.T) {
	input := `[{"id":"t1","type":"web_search","parameters":{"q":"cats"}}]` + "\n\n" +
		Delimiter + "\n\n" + "Hello **world**."

	p := New(nil)
	events := drain(t, p.Parse(context.Background(), strings.NewReader(input), nil))

	require.GreaterOrEqual(t, len(events), 2)
	require.Equal(t, KindToolCall, events[0].Kind)
	require.Equal(t, "t1", events[0].ToolCall.ID)
	require.Equal(t, "web_search", events[0].ToolCall.Type)
	require.JSONEq(t, `{"q":"cats"}`, string(events[0].ToolCall.Parameters))

	var content strings.Builder
	sawEnd := false
	for _, e := range events[1:] {
		switch e.Kind {
		case KindContent:
			content.WriteString(e.Content.MarkdownDelta)
		case KindEnd:
			sawEnd = true
		default:
			t.Fatalf("unexpected event kind %v", e.Kind)
		}
	}
	require.Equal(t, "Hello **world**.", content.String())
	require.True(t, sawEnd)
}

func TestParser_EmptyToolCallsRegion(t *testing.T) {
	input := "[]" + Delimiter + "just markdown"
	p := New(nil)
	events := drain(t, p.Parse(context.Background(), strings.NewReader(input), nil))

	for _, e := range events {
		require.NotEqual(t, KindToolCall, e.Kind)
	}
	require.Equal(t, KindContent, events[0].Kind)
	require.Equal(t, "just markdown", events[0].Content.MarkdownDelta)
}

func TestParser_NoDelimiter_EntireStreamIsMarkdown(t *testing.T) {
	p := New(nil)
	events := drain(t, p.Parse(context.Background(), strings.NewReader("just plain text, no grammar at all"), nil))

	var content strings.Builder
	for _, e := range events {
		require.NotEqual(t, KindToolCall, e.Kind)
		require.NotEqual(t, KindError, e.Kind)
		if e.Kind == KindContent {
			content.WriteString(e.Content.MarkdownDelta)
		}
	}
	require.Equal(t, "just plain text, no grammar at all", content.String())
}

func TestParser_EndsMidJSON_MalformedPrelude(t *testing.T) {
	p := New(nil)
	events := drain(t, p.Parse(context.Background(), strings.NewReader(`[{"id":"t1","type":"web`), nil))

	require.NotEmpty(t, events)
	require.Equal(t, KindError, events[0].Kind)
	require.Equal(t, ErrMalformedPrelude, events[0].Error.Kind)
	for _, e := range events {
		require.NotEqual(t, KindContent, e.Kind)
	}
}

func TestParser_InvalidToolCall_FailsValidation(t *testing.T) {
	input := `[{"id":"t1","type":"dangerous_tool","parameters":{}}]` + Delimiter + "ok"
	p := New(func(toolType string, params json.RawMessage) error {
		if toolType == "dangerous_tool" {
			return require.AnError
		}
		return nil
	})
	events := drain(t, p.Parse(context.Background(), strings.NewReader(input), nil))

	require.Equal(t, KindError, events[0].Kind)
	require.Equal(t, ErrInvalidToolCall, events[0].Error.Kind)
}

func TestParser_Usage_ResolvedAtEndOfStream(t *testing.T) {
	input := "[]" + Delimiter + "hi"
	p := New(nil)
	events := drain(t, p.Parse(context.Background(), strings.NewReader(input), func() Usage {
		return Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	}))

	last := events[len(events)-1]
	require.Equal(t, KindEnd, last.Kind)
	require.Equal(t, 15, last.End.Usage.TotalTokens)
}
