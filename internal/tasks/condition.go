package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConditionOp is a comparison operator for parent_output_matches conditions.
type ConditionOp string

const (
	OpEq       ConditionOp = "eq"
	OpNe       ConditionOp = "ne"
	OpContains ConditionOp = "contains"
	OpGt       ConditionOp = "gt"
	OpLt       ConditionOp = "lt"
)

// ConditionKind selects which condition variant a Condition represents.
type ConditionKind string

const (
	ConditionAlways               ConditionKind = "always"
	ConditionParentOutputMatches  ConditionKind = "parent_output_matches"
	ConditionLLMEvaluate          ConditionKind = "llm_evaluate"
)

// Condition gates whether a ready task becomes eligible to run (§4.1).
type Condition struct {
	Kind ConditionKind `json:"kind"`

	// ParentOutputMatches fields.
	Path  string      `json:"path,omitempty"`
	Op    ConditionOp `json:"op,omitempty"`
	Value any         `json:"value,omitempty"`

	// LLMEvaluate field.
	Prompt string `json:"prompt,omitempty"`
}

// LLMEvaluator evaluates an `llm_evaluate` condition via the LLM Output
// Pipeline, returning a boolean result. The contract is firm regardless of
// implementation: false on parse failure or transport error (§4.1, §9).
type LLMEvaluator interface {
	EvaluateBoolean(ctx context.Context, prompt string) (bool, error)
}

// Evaluate resolves a Condition to a boolean given the parent task's output
// (may be nil for the always/llm_evaluate cases) and an LLMEvaluator for
// llm_evaluate conditions (may be nil, in which case llm_evaluate
// conditions are treated as false).
func Evaluate(ctx context.Context, c *Condition, parentOutput json.RawMessage, evaluator LLMEvaluator) bool {
	if c == nil || c.Kind == "" || c.Kind == ConditionAlways {
		return true
	}
	switch c.Kind {
	case ConditionParentOutputMatches:
		return evalParentOutputMatches(c, parentOutput)
	case ConditionLLMEvaluate:
		if evaluator == nil {
			return false
		}
		ok, err := evaluator.EvaluateBoolean(ctx, c.Prompt)
		if err != nil {
			return false
		}
		return ok
	default:
		return false
	}
}

func evalParentOutputMatches(c *Condition, output json.RawMessage) bool {
	if len(output) == 0 {
		return false
	}
	var doc any
	if err := json.Unmarshal(output, &doc); err != nil {
		return false
	}
	actual, ok := lookupPath(doc, c.Path)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return fmt.Sprint(actual) == fmt.Sprint(c.Value)
	case OpNe:
		return fmt.Sprint(actual) != fmt.Sprint(c.Value)
	case OpContains:
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(c.Value))
	case OpGt, OpLt:
		a, aok := toFloat(actual)
		b, bok := toFloat(c.Value)
		if !aok || !bok {
			return false
		}
		if c.Op == OpGt {
			return a > b
		}
		return a < b
	default:
		return false
	}
}

// lookupPath resolves a dotted path (e.g. "result.status") against a
// decoded JSON document.
func lookupPath(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
