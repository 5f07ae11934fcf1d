package providers

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
	err  error
	body string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req CompletionRequest) (io.Reader, UsageFunc, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	box := newUsageBox()
	box.set(Usage{TotalTokens: 1})
	return strings.NewReader(s.body), box.get, nil
}

func TestFallbackProvider_UsesFirstSuccessfulProvider(t *testing.T) {
	chain := []Provider{
		&stubProvider{name: "a", err: errors.New("down")},
		&stubProvider{name: "b", body: "hello"},
	}
	fp, err := NewFallbackProvider(chain, nil)
	require.NoError(t, err)

	stream, usage, err := fp.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	data, _ := io.ReadAll(stream)
	require.Equal(t, "hello", string(data))
	require.Equal(t, 1, usage().TotalTokens)
}

func TestFallbackProvider_AllFail(t *testing.T) {
	chain := []Provider{
		&stubProvider{name: "a", err: errors.New("down")},
		&stubProvider{name: "b", err: errors.New("also down")},
	}
	fp, err := NewFallbackProvider(chain, nil)
	require.NoError(t, err)

	_, _, err = fp.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
}

func TestNewFallbackProvider_RequiresNonEmptyChain(t *testing.T) {
	_, err := NewFallbackProvider(nil, nil)
	require.Error(t, err)
}
