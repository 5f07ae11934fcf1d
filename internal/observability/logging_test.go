package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	logger.Info(context.Background(), "calling provider", "detail", "api_key=sk-ant-abcdef1234567890")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Contains(t, entry["detail"], "[REDACTED]")
	require.NotContains(t, entry["detail"], "sk-ant")
}

func TestLogger_WithContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})
	ctx := AddRequestID(context.Background(), "req-123")

	logger.Info(ctx, "handling turn")

	require.True(t, strings.Contains(buf.String(), "req-123"))
	require.Equal(t, "req-123", GetRequestID(ctx))
}

func TestLogLevelFromString(t *testing.T) {
	require.Equal(t, LogLevelFromString("debug"), LogLevelFromString("debug"))
	require.NotEqual(t, LogLevelFromString("debug"), LogLevelFromString("error"))
}
