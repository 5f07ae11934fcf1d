package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_NilOrAlways(t *testing.T) {
	require.True(t, Evaluate(context.Background(), nil, nil, nil))
	require.True(t, Evaluate(context.Background(), &Condition{Kind: ConditionAlways}, nil, nil))
	require.True(t, Evaluate(context.Background(), &Condition{}, nil, nil))
}

func TestEvaluate_ParentOutputMatches(t *testing.T) {
	output := []byte(`{"result":{"status":"ok","score":7}}`)

	cases := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"eq match", &Condition{Kind: ConditionParentOutputMatches, Path: "result.status", Op: OpEq, Value: "ok"}, true},
		{"eq mismatch", &Condition{Kind: ConditionParentOutputMatches, Path: "result.status", Op: OpEq, Value: "fail"}, false},
		{"ne", &Condition{Kind: ConditionParentOutputMatches, Path: "result.status", Op: OpNe, Value: "fail"}, true},
		{"contains", &Condition{Kind: ConditionParentOutputMatches, Path: "result.status", Op: OpContains, Value: "k"}, true},
		{"gt true", &Condition{Kind: ConditionParentOutputMatches, Path: "result.score", Op: OpGt, Value: 5}, true},
		{"gt false", &Condition{Kind: ConditionParentOutputMatches, Path: "result.score", Op: OpGt, Value: 9}, false},
		{"lt true", &Condition{Kind: ConditionParentOutputMatches, Path: "result.score", Op: OpLt, Value: 9}, true},
		{"missing path", &Condition{Kind: ConditionParentOutputMatches, Path: "result.missing", Op: OpEq, Value: "ok"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Evaluate(context.Background(), tc.cond, output, nil))
		})
	}
}

func TestEvaluate_ParentOutputMatches_NoOutput(t *testing.T) {
	cond := &Condition{Kind: ConditionParentOutputMatches, Path: "a", Op: OpEq, Value: "b"}
	require.False(t, Evaluate(context.Background(), cond, nil, nil))
}

type fakeEvaluator struct {
	result bool
	err    error
}

func (f fakeEvaluator) EvaluateBoolean(ctx context.Context, prompt string) (bool, error) {
	return f.result, f.err
}

func TestEvaluate_LLMEvaluate(t *testing.T) {
	cond := &Condition{Kind: ConditionLLMEvaluate, Prompt: "is this done?"}

	require.True(t, Evaluate(context.Background(), cond, nil, fakeEvaluator{result: true}))
	require.False(t, Evaluate(context.Background(), cond, nil, fakeEvaluator{result: false}))
	require.False(t, Evaluate(context.Background(), cond, nil, fakeEvaluator{err: errors.New("transient")}))
	require.False(t, Evaluate(context.Background(), cond, nil, nil), "no evaluator configured must default to false")
}
