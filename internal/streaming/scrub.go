package streaming

import "github.com/023a424/agentflow/pkg/schema"

// credentialKey is removed recursively from every streamed checkpoint
// payload. Node inputs may carry bound credential references; they must
// never reach a client.
const credentialKey = "FLOWISE_CREDENTIAL_ID"

// ScrubCheckpoint returns a deep copy of the checkpoint with every
// occurrence of the credential key removed.
func ScrubCheckpoint(checkpoint []schema.ExecutedData) []schema.ExecutedData {
	out := make([]schema.ExecutedData, len(checkpoint))
	for i, entry := range checkpoint {
		out[i] = entry
		if entry.Data != nil {
			out[i].Data = schema.NodeOutput(scrubValue(map[string]any(entry.Data)).(map[string]any))
		}
	}
	return out
}

// scrubValue walks maps and slices, dropping credential keys.
func scrubValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if k == credentialKey {
				continue
			}
			out[k] = scrubValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = scrubValue(item)
		}
		return out
	default:
		return v
	}
}
