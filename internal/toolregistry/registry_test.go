package toolregistry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"],
		"additionalProperties": false
	}`)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Tool{
		Name:   "search",
		Schema: echoSchema(),
		Handle: func(ctx context.Context, params json.RawMessage, p Principal) (Result, error) {
			return Result{Output: json.RawMessage(`{"ok":true}`)}, nil
		},
	})
	require.NoError(t, err)

	tool, ok := r.Get("search")
	require.True(t, ok)
	require.Equal(t, "search", tool.Name)
	require.Len(t, r.List(), 1)
}

func TestRegistry_Validate_RejectsMissingRequiredField(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{Name: "search", Schema: echoSchema()}))

	err := r.Validate("search", json.RawMessage(`{}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRegistry_Validate_AcceptsValidParams(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{Name: "search", Schema: echoSchema()}))
	require.NoError(t, r.Validate("search", json.RawMessage(`{"query":"cats"}`)))
}

func TestRegistry_Validate_UnknownTool(t *testing.T) {
	r := NewRegistry()
	err := r.Validate("missing", json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestRegistry_Register_RejectsMalformedSchema(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Tool{Name: "bad", Schema: json.RawMessage(`{not json`)})
	require.Error(t, err)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{Name: "search", Schema: echoSchema()}))
	r.Unregister("search")
	_, ok := r.Get("search")
	require.False(t, ok)
}
