package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELEvaluate(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		expr string
		data map[string]any
		want any
	}{
		{
			name: "state comparison",
			expr: `state.count >= 3`,
			data: map[string]any{"state": map[string]any{"count": 5}},
			want: true,
		},
		{
			name: "input string match",
			expr: `input.value == "yes"`,
			data: map[string]any{"input": map[string]any{"value": "yes"}},
			want: true,
		},
		{
			name: "missing scopes default to empty maps",
			expr: `"flag" in vars`,
			data: nil,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(ctx, tt.expr, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELErrors(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate(context.Background(), "", nil)
	assert.Error(t, err)

	_, err = engine.Evaluate(context.Background(), "state.count >>> 1", nil)
	assert.Error(t, err)
}

func TestCELProgramCacheReuse(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, evalErr := engine.Evaluate(ctx, `1 + 2`, nil)
		require.NoError(t, evalErr)
		assert.Equal(t, int64(3), got)
	}
}

func TestExprEvaluate(t *testing.T) {
	engine := NewExprEngine()
	ctx := context.Background()

	got, err := engine.Evaluate(ctx, `state.count + 1`, map[string]any{
		"state": map[string]any{"count": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = engine.Evaluate(ctx, `input.items | filter(# > 1) | len()`, map[string]any{
		"input": map[string]any{"items": []any{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestExprUndefinedVariablesAllowed(t *testing.T) {
	engine := NewExprEngine()
	got, err := engine.Evaluate(context.Background(), `missing == nil`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestGoJQEvaluate(t *testing.T) {
	engine := NewGoJQEngine()
	ctx := context.Background()

	got, err := engine.Evaluate(ctx, `.input.items | length`, map[string]any{
		"input": map[string]any{"items": []any{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	// Multiple outputs collect into a slice.
	got, err = engine.Evaluate(ctx, `.input.items[]`, map[string]any{
		"input": map[string]any{"items": []any{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)
}

func TestGoJQEnvBlocked(t *testing.T) {
	engine := NewGoJQEngine()
	got, err := engine.Evaluate(context.Background(), `env | length`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestGoJQParseError(t *testing.T) {
	engine := NewGoJQEngine()
	_, err := engine.Evaluate(context.Background(), `.[unclosed`, map[string]any{})
	assert.Error(t, err)
}
