package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoPath_ReturnsDefault(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_ExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-ant-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: ${TEST_ANTHROPIC_KEY}
      default_model: claude-sonnet
executor:
  worker_count: 16
  backpressure_k: 4
  default_max_retries: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.Equal(t, "sk-ant-test", cfg.LLM.Providers["anthropic"].APIKey)
	require.Equal(t, 16, cfg.Executor.WorkerCount)
}

func TestLoad_RejectsInvalidHybridAlpha(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  hybrid_alpha: 2.0\nexecutor:\n  worker_count: 1\n  backpressure_k: 1\n"), 0o644))

	_, err := Load(path, "")
	require.Error(t, err)
}
