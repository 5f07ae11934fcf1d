package llmparser

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// Validator checks a decoded tool call's parameters against the Tool
// Registry schema before emission (§4.5 "Validation"). Implementations
// typically wrap toolregistry.Registry.Validate.
type Validator func(toolType string, params json.RawMessage) error

// UsageFunc supplies the terminal usage record once the underlying
// transport reports stream completion (§6); it is consulted exactly once,
// at end of stream.
type UsageFunc func() Usage

// Parser turns a raw LLM byte stream into a lazy Event sequence following
// the <tool_calls_region> <delimiter> <markdown_region> grammar (§4.5).
type Parser struct {
	validate Validator
}

// New returns a Parser. validate may be nil to skip registry validation
// (e.g. tests, or when the caller validates separately before dispatch).
func New(validate Validator) *Parser {
	return &Parser{validate: validate}
}

type rawToolCall struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
}

const readChunk = 4096

// Parse consumes r and returns a channel of Events, closed once the
// sequence ends. The channel is unbuffered; the caller must drain it for
// the parser goroutine to make progress.
func (p *Parser) Parse(ctx context.Context, r io.Reader, usageAt UsageFunc) <-chan Event {
	out := make(chan Event)
	go p.run(ctx, r, usageAt, out)
	return out
}

func (p *Parser) run(ctx context.Context, r io.Reader, usageAt UsageFunc, out chan<- Event) {
	defer close(out)

	send := func(e Event) bool {
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var prelude bytes.Buffer
	buf := make([]byte, readChunk)
	delim := []byte(Delimiter)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			prelude.Write(buf[:n])
			if idx := bytes.Index(prelude.Bytes(), delim); idx >= 0 {
				before := append([]byte(nil), prelude.Bytes()[:idx]...)
				after := append([]byte(nil), prelude.Bytes()[idx+len(delim):]...)
				if !p.emitPrelude(before, send) {
					return
				}
				// Whitespace immediately around the delimiter is
				// normalized away once, per §8 "Laws: Parser round-trip".
				if trimmed := bytes.TrimLeft(after, " \t\r\n"); len(trimmed) > 0 {
					if !send(contentEvt(ContentEvent{MarkdownDelta: string(trimmed)})) {
						return
					}
				}
				p.streamContent(r, usageAt, send)
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				p.finishWithoutDelimiter(prelude.Bytes(), usageAt, send)
				return
			}
			send(errorEvt(ErrorEvent{Kind: ErrMalformedPrelude, Message: err.Error()}))
			return
		}
	}
}

// emitPrelude decodes the tool_calls_region and emits one event per
// element, validating against the registry when a Validator is set.
// Returns false only when the caller's context was cancelled mid-send.
func (p *Parser) emitPrelude(raw []byte, send func(Event) bool) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	var calls []rawToolCall
	if err := json.Unmarshal(trimmed, &calls); err != nil {
		return send(errorEvt(ErrorEvent{Kind: ErrMalformedPrelude, Message: err.Error()}))
	}
	for _, c := range calls {
		if p.validate != nil {
			if err := p.validate(c.Type, c.Parameters); err != nil {
				if !send(errorEvt(ErrorEvent{Kind: ErrInvalidToolCall, Message: err.Error()})) {
					return false
				}
				continue
			}
		}
		if !send(toolCallEvt(ToolCallEvent{ID: c.ID, Type: c.Type, Parameters: c.Parameters})) {
			return false
		}
	}
	return true
}

// streamContent relays every subsequent chunk verbatim as a ContentEvent
// (EMIT_CONTENT state) until r is exhausted, then emits EndEvent.
func (p *Parser) streamContent(r io.Reader, usageAt UsageFunc, send func(Event) bool) {
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if !send(contentEvt(ContentEvent{MarkdownDelta: string(buf[:n])})) {
				return
			}
		}
		if err != nil {
			break
		}
	}
	send(endEvt(EndEvent{Usage: resolveUsage(usageAt)}))
}

// finishWithoutDelimiter handles stream end while still in SCAN_PRELUDE
// (§4.5, §8 boundary behaviors): a buffer that looks like it started a
// JSON tool_calls_region but never completed is malformed_prelude; any
// other buffer is a degenerate no-tool-call response treated as markdown.
func (p *Parser) finishWithoutDelimiter(raw []byte, usageAt UsageFunc, send func(Event) bool) {
	trimmed := bytes.TrimSpace(raw)
	if looksLikeJSONPrefix(trimmed) {
		if !send(errorEvt(ErrorEvent{Kind: ErrMalformedPrelude, Message: "stream ended before the delimiter with an incomplete tool_calls_region"})) {
			return
		}
		send(endEvt(EndEvent{Usage: resolveUsage(usageAt)}))
		return
	}
	if len(raw) > 0 {
		if !send(contentEvt(ContentEvent{MarkdownDelta: string(raw)})) {
			return
		}
	}
	send(endEvt(EndEvent{Usage: resolveUsage(usageAt)}))
}

func looksLikeJSONPrefix(b []byte) bool {
	return len(b) > 0 && (b[0] == '[' || b[0] == '{')
}

func resolveUsage(usageAt UsageFunc) Usage {
	if usageAt == nil {
		return Usage{}
	}
	return usageAt()
}
