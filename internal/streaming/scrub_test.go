package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/023a424/agentflow/pkg/schema"
)

func TestScrubCheckpointRemovesCredentialKeys(t *testing.T) {
	checkpoint := []schema.ExecutedData{
		{
			NodeID: "llm_0",
			Data: schema.NodeOutput{
				"FLOWISE_CREDENTIAL_ID": "secret",
				"output": map[string]any{
					"content":               "hello",
					"FLOWISE_CREDENTIAL_ID": "nested-secret",
					"tools": []any{
						map[string]any{"name": "search", "FLOWISE_CREDENTIAL_ID": "deep-secret"},
					},
				},
			},
		},
	}

	scrubbed := ScrubCheckpoint(checkpoint)

	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			_, found := val["FLOWISE_CREDENTIAL_ID"]
			assert.False(t, found, "credential key must not survive scrubbing")
			for _, item := range val {
				walk(item)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(map[string]any(scrubbed[0].Data))

	assert.Equal(t, "hello", scrubbed[0].Data.Content())
}

func TestScrubCheckpointDoesNotMutateOriginal(t *testing.T) {
	checkpoint := []schema.ExecutedData{
		{Data: schema.NodeOutput{"FLOWISE_CREDENTIAL_ID": "secret", "output": map[string]any{"content": "x"}}},
	}
	_ = ScrubCheckpoint(checkpoint)

	_, found := checkpoint[0].Data["FLOWISE_CREDENTIAL_ID"]
	require.True(t, found, "original checkpoint stays intact")
}

func TestScrubCheckpointNilData(t *testing.T) {
	scrubbed := ScrubCheckpoint([]schema.ExecutedData{{NodeID: "a"}})
	require.Len(t, scrubbed, 1)
	assert.Nil(t, scrubbed[0].Data)
}
