package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/023a424/agentflow/pkg/schema"
)

func newResolver(scope Scope) *Resolver {
	return New(scope, Options{})
}

func TestResolveQuestion(t *testing.T) {
	r := newResolver(Scope{Question: "what is up"})
	got, err := r.ResolveString("Q: {{ question }}")
	require.NoError(t, err)
	assert.Equal(t, "Q: what is up", got)
}

func TestResolveQuestionWithUpload(t *testing.T) {
	r := newResolver(Scope{Question: "summarize", UploadedText: "file body"})
	got, err := r.ResolveString("{{question}}")
	require.NoError(t, err)
	assert.Equal(t, "file body\n\nsummarize", got)
}

func TestResolveFileAttachment(t *testing.T) {
	r := newResolver(Scope{UploadedText: "attachment text"})
	got, err := r.ResolveString("{{ file_attachment }}")
	require.NoError(t, err)
	assert.Equal(t, "attachment text", got)
}

func TestResolveChatHistory(t *testing.T) {
	r := newResolver(Scope{ChatHistory: []schema.ChatTurn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}})
	got, err := r.ResolveString("{{ chat_history }}")
	require.NoError(t, err)
	assert.Equal(t, "user: hi\nassistant: hello", got)
}

func TestResolveFormVarsFlow(t *testing.T) {
	r := newResolver(Scope{
		Form:      map[string]any{"email": "a@b.c"},
		Variables: map[string]any{"apiBase": "https://api"},
		Flow: map[string]any{
			"sessionId": "s1",
			"state":     map[string]any{"count": 3},
		},
	})

	tests := []struct {
		in   string
		want string
	}{
		{"{{ $form.email }}", "a@b.c"},
		{"{{ $vars.apiBase }}/v1", "https://api/v1"},
		{"session {{ $flow.sessionId }}", "session s1"},
		{"count={{ $flow.state.count }}", "count=3"},
	}
	for _, tt := range tests {
		got, err := r.ResolveString(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolveNodeReference(t *testing.T) {
	r := newResolver(Scope{Checkpoint: []schema.ExecutedData{
		{NodeID: "llm_0", Data: schema.NodeOutput{
			"output": map[string]any{"content": "llm says hi"},
		}},
	}})

	got, err := r.ResolveString("prev: {{ llm_0 }}")
	require.NoError(t, err)
	assert.Equal(t, "prev: llm says hi", got)
}

func TestResolveNodeReferenceStripsBackslash(t *testing.T) {
	r := newResolver(Scope{Checkpoint: []schema.ExecutedData{
		{NodeID: "llm_0", Data: schema.NodeOutput{
			"output": map[string]any{"content": "ok"},
		}},
	}})
	got, err := r.ResolveString(`{{ \llm_0 }}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestUnresolvedReferenceStaysLiteral(t *testing.T) {
	r := newResolver(Scope{})
	got, err := r.ResolveString("hello {{ ghost_9 }} world")
	require.NoError(t, err)
	assert.Equal(t, "hello {{ ghost_9 }} world", got)
}

func TestMultipleReferencesLeftToRight(t *testing.T) {
	r := newResolver(Scope{
		Question:  "q",
		Variables: map[string]any{"x": "v"},
	})
	got, err := r.ResolveString("{{ question }}-{{ $vars.x }}-{{ missing }}")
	require.NoError(t, err)
	assert.Equal(t, "q-v-{{ missing }}", got)
}

func TestWholeStringReferencePreservesType(t *testing.T) {
	form := map[string]any{"a": float64(1)}
	r := newResolver(Scope{Form: map[string]any{"payload": form}})
	got, err := r.ResolveString("{{ $form.payload }}")
	require.NoError(t, err)
	assert.Equal(t, form, got)
}

func TestEmbeddedStructuredValueIsJSON(t *testing.T) {
	r := newResolver(Scope{Form: map[string]any{"payload": map[string]any{"a": float64(1)}}})
	got, err := r.ResolveString("data: {{ $form.payload }}")
	require.NoError(t, err)
	assert.Equal(t, `data: {"a":1}`, got)
}

func TestHTMLNormalization(t *testing.T) {
	r := newResolver(Scope{Question: "yo"})
	got, err := r.ResolveString("<p>{{ question }}</p>")
	require.NoError(t, err)
	assert.Equal(t, "yo", got)
}

func TestSkipHTMLNormalization(t *testing.T) {
	r := New(Scope{}, Options{SkipHTMLNormalization: true})
	got, err := r.ResolveString("<p>keep</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>keep</p>", got)
}

func TestResolutionIdempotentWithoutReferences(t *testing.T) {
	r := newResolver(Scope{Question: "q"})
	in := "plain text, no references"
	once, err := r.ResolveString(in)
	require.NoError(t, err)
	twice, err := r.ResolveString(once.(string))
	require.NoError(t, err)
	assert.Equal(t, in, once)
	assert.Equal(t, once, twice)
}

func TestResolveValueRecursion(t *testing.T) {
	r := newResolver(Scope{Question: "q"})
	got, err := r.ResolveValue(map[string]any{
		"list":   []any{"{{ question }}", 5},
		"scalar": 7,
	})
	require.NoError(t, err)
	m := got.(map[string]any)
	assert.Equal(t, "q", m["list"].([]any)[0])
	assert.Equal(t, 5, m["list"].([]any)[1])
	assert.Equal(t, 7, m["scalar"])
}

func TestResolveNodeDataHonorsAcceptVariable(t *testing.T) {
	r := newResolver(Scope{Question: "the q"})
	data := &schema.NodeData{
		ID: "llm_0",
		InputParams: []schema.InputParam{
			{Name: "prompt", AcceptVariable: true},
			{Name: "model", AcceptVariable: false},
		},
		Inputs: map[string]any{
			"prompt": "{{ question }}",
			"model":  "{{ question }}",
		},
	}
	require.NoError(t, r.ResolveNodeData(data))
	assert.Equal(t, "the q", data.Inputs["prompt"])
	assert.Equal(t, "{{ question }}", data.Inputs["model"])
}

func TestUnterminatedReferenceKeptVerbatim(t *testing.T) {
	r := newResolver(Scope{Question: "q"})
	got, err := r.ResolveString("broken {{ question")
	require.NoError(t, err)
	assert.Equal(t, "broken {{ question", got)
}

func TestLatestCheckpointEntryWins(t *testing.T) {
	r := newResolver(Scope{Checkpoint: []schema.ExecutedData{
		{NodeID: "step_0", Data: schema.NodeOutput{"output": map[string]any{"content": "first"}}},
		{NodeID: "step_0", Data: schema.NodeOutput{"output": map[string]any{"content": "second"}}},
	}})
	got, err := r.ResolveString("{{ step_0 }}")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}
