package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleIndex(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		want   int
	}{
		{"plain output handle", "cond_0-output-1", 1},
		{"zero index", "cond_0-output-0", 0},
		{"no numeric token", "output", 0},
		{"empty handle", "", 0},
		{"first numeric token wins", "llm-2-output-5", 2},
		{"large index", "node_1-output-12", 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HandleIndex(tt.handle))
		})
	}
}

func TestOutputHandle(t *testing.T) {
	assert.Equal(t, "cond_0-output-1", OutputHandle("cond_0", 1))
}

func TestIsDecisionNode(t *testing.T) {
	assert.True(t, IsDecisionNode(NodeNameCondition))
	assert.True(t, IsDecisionNode(NodeNameConditionAgent))
	assert.True(t, IsDecisionNode(NodeNameHumanInput))
	assert.False(t, IsDecisionNode(NodeNameStart))
	assert.False(t, IsDecisionNode(NodeNameLoop))
	assert.False(t, IsDecisionNode("llmAgentflow"))
}

func TestNodeDataClone(t *testing.T) {
	orig := &NodeData{
		ID:    "llm_0",
		Name:  "llmAgentflow",
		Label: "LLM",
		InputParams: []InputParam{
			{Name: "prompt", AcceptVariable: true},
		},
		Inputs: map[string]any{
			"prompt": "{{ question }}",
			"nested": map[string]any{"a": []any{1, 2}},
		},
	}

	cp := orig.Clone()
	cp.Inputs["prompt"] = "mutated"
	cp.Inputs["nested"].(map[string]any)["a"].([]any)[0] = 99

	assert.Equal(t, "{{ question }}", orig.Inputs["prompt"])
	assert.Equal(t, 1, orig.Inputs["nested"].(map[string]any)["a"].([]any)[0])
}

func TestNodeOutputAccessors(t *testing.T) {
	out := NodeOutput{
		"state": map[string]any{"count": 2},
		"chatHistory": []any{
			map[string]any{"role": "assistant", "content": "hi"},
		},
		"output": map[string]any{
			"content": "hello",
			"form":    map[string]any{"email": "a@b.c"},
			"conditions": []any{
				map[string]any{"isFullfilled": true},
				map[string]any{},
			},
		},
	}

	assert.Equal(t, "hello", out.Content())
	assert.Equal(t, map[string]any{"count": 2}, out.State())
	assert.True(t, out.HasState())
	assert.Equal(t, map[string]any{"email": "a@b.c"}, out.Form())

	turns := out.ChatHistory()
	require.Len(t, turns, 1)
	assert.Equal(t, ChatTurn{Role: "assistant", Content: "hi"}, turns[0])

	conds := out.Conditions()
	require.Len(t, conds, 2)
	assert.True(t, conds[0].IsFullfilled)
	assert.False(t, conds[1].IsFullfilled)
}

func TestNodeOutputLoopTarget(t *testing.T) {
	out := NodeOutput{
		"output": map[string]any{"nodeID": "step_0", "maxLoopCount": float64(3)},
	}
	target, maxLoop, ok := out.LoopTarget()
	require.True(t, ok)
	assert.Equal(t, "step_0", target)
	assert.Equal(t, 3, maxLoop)

	_, _, ok = NodeOutput{"output": map[string]any{}}.LoopTarget()
	assert.False(t, ok)
	_, _, ok = NodeOutput{}.LoopTarget()
	assert.False(t, ok)
}

func TestNodeOutputAfterJSONRoundTrip(t *testing.T) {
	orig := NodeOutput{
		"output": map[string]any{"content": "x", "nodeID": "a", "maxLoopCount": 5},
	}
	b, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded NodeOutput
	require.NoError(t, json.Unmarshal(b, &decoded))

	assert.Equal(t, "x", decoded.Content())
	target, maxLoop, ok := decoded.LoopTarget()
	require.True(t, ok)
	assert.Equal(t, "a", target)
	assert.Equal(t, 5, maxLoop)
}

func TestFinalStatusPrecedence(t *testing.T) {
	entry := func(s ExecutionStatus) ExecutedData { return ExecutedData{Status: s} }

	tests := []struct {
		name    string
		entries []ExecutedData
		want    ExecutionStatus
	}{
		{"empty checkpoint finishes", nil, StatusFinished},
		{"all finished", []ExecutedData{entry(StatusFinished)}, StatusFinished},
		{"stopped wins over finished", []ExecutedData{entry(StatusFinished), entry(StatusStopped)}, StatusStopped},
		{"error wins over stopped", []ExecutedData{entry(StatusStopped), entry(StatusError)}, StatusError},
		{"terminated wins over error", []ExecutedData{entry(StatusError), entry(StatusTerminated)}, StatusTerminated},
		{"terminated anywhere wins", []ExecutedData{entry(StatusTerminated), entry(StatusError), entry(StatusFinished)}, StatusTerminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FinalStatus(tt.entries))
		})
	}
}

func TestFlowErrorFormatting(t *testing.T) {
	err := NewErrorf(ErrCodeNodeExecution, "boom: %d", 42).WithNode("llm_0")
	assert.Equal(t, "[NODE_EXECUTION_ERROR] node llm_0: boom: 42", err.Error())

	plain := NewError(ErrCodeIterationLimit, "limit")
	assert.Equal(t, "[ITERATION_LIMIT] limit", plain.Error())

	cause := NewError(ErrCodeValidation, "inner")
	wrapped := NewError(ErrCodeStore, "outer").WithCause(cause)
	assert.Equal(t, cause, wrapped.Unwrap())
}
