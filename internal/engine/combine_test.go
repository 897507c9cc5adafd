package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/023a424/agentflow/pkg/schema"
)

func TestCombineZeroInputs(t *testing.T) {
	assert.Nil(t, combineInputs(map[string]any{}, nil))
	assert.Nil(t, combineInputs(map[string]any{"a": nil}, []string{"a"}))
}

func TestCombineSingleInputVerbatim(t *testing.T) {
	input := schema.NodeOutput{"output": map[string]any{"content": "x"}}
	got := combineInputs(map[string]any{"a": input}, []string{"a"})
	assert.Equal(t, input, got)
}

func TestCombineStructuredInputs(t *testing.T) {
	received := map[string]any{
		"a": map[string]any{"json": map[string]any{"k": 1}, "text": "alpha"},
		"b": map[string]any{"json": map[string]any{"k": 2}, "text": "beta", "binary": "AAA="},
	}
	got := combineInputs(received, []string{"a", "b"}).(map[string]any)

	jsonPart := got["json"].(map[string]any)
	assert.Equal(t, map[string]any{"k": 1}, jsonPart["a"])
	assert.Equal(t, map[string]any{"k": 2}, jsonPart["b"])
	assert.Equal(t, "alpha\nbeta", got["text"])
	assert.Equal(t, map[string]any{"b": "AAA="}, got["binary"])
	_, hasErr := got["error"]
	assert.False(t, hasErr)
}

func TestCombineFirstErrorWins(t *testing.T) {
	received := map[string]any{
		"a": map[string]any{"error": "first"},
		"b": map[string]any{"error": "second"},
	}
	got := combineInputs(received, []string{"a", "b"}).(map[string]any)
	assert.Equal(t, "first", got["error"])
}

func TestCombinePrimitiveInputs(t *testing.T) {
	received := map[string]any{"a": 42, "b": "raw"}
	got := combineInputs(received, []string{"a", "b"}).(map[string]any)
	jsonPart := got["json"].(map[string]any)
	assert.Equal(t, 42, jsonPart["a"])
	assert.Equal(t, "raw", jsonPart["b"])
}

func TestCombineUnrecognizedObjectBecomesJSON(t *testing.T) {
	received := map[string]any{
		"a": schema.NodeOutput{"output": map[string]any{"content": "x"}},
		"b": schema.NodeOutput{"output": map[string]any{"content": "y"}},
	}
	got := combineInputs(received, []string{"a", "b"}).(map[string]any)
	jsonPart := got["json"].(map[string]any)
	require.Contains(t, jsonPart, "a")
	require.Contains(t, jsonPart, "b")
}

func TestCombineTextOnlyWrapped(t *testing.T) {
	received := map[string]any{
		"a": map[string]any{"text": "one"},
		"b": map[string]any{"text": "two"},
	}
	got := combineInputs(received, []string{"a", "b"}).(map[string]any)
	assert.Equal(t, map[string]any{"text": "one\ntwo"}, got["json"])
	assert.Equal(t, "one\ntwo", got["text"])
}

func TestCombineDeterministicOrder(t *testing.T) {
	received := map[string]any{
		"b": map[string]any{"text": "from b"},
		"a": map[string]any{"text": "from a"},
	}
	got := combineInputs(received, []string{"a", "b"}).(map[string]any)
	assert.Equal(t, "from a\nfrom b", got["text"])
}

func TestCombineLeftoverInputsAppended(t *testing.T) {
	// Loop-back deliveries are not in the edge order but stay reachable.
	received := map[string]any{
		"edge_pred": map[string]any{"text": "edge"},
		"loop_pred": map[string]any{"text": "loop"},
	}
	got := combineInputs(received, []string{"edge_pred"}).(map[string]any)
	assert.Equal(t, "edge\nloop", got["text"])
}
