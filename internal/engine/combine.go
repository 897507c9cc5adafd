package engine

import (
	"sort"
	"strings"

	"github.com/023a424/agentflow/pkg/schema"
)

// combineInputs merges fan-in inputs from multiple predecessors into one
// input record. order fixes the deterministic positioning (handle-suffix
// order, ties by source ID); predecessors without a delivered input are
// skipped, nil inputs are filtered.
//
// Merge rules:
//   - zero valid inputs → nil
//   - one input → the input verbatim
//   - otherwise {json: {srcId → input.json}, text: input texts joined by
//     newline, binary: {srcId → input.binary}, error: first error}
//   - a primitive (non-object) input contributes {json: {srcId → value}}
//   - if only text was produced, it is wrapped as {json: {text: combined}}
func combineInputs(received map[string]any, order []string) any {
	var srcIDs []string
	seen := make(map[string]bool, len(received))
	for _, id := range order {
		if input, ok := received[id]; ok && input != nil {
			srcIDs = append(srcIDs, id)
			seen[id] = true
		}
	}
	// Inputs delivered outside the edge set (loop-back) stay reachable.
	if len(seen) < len(received) {
		var leftovers []string
		for id, input := range received {
			if !seen[id] && input != nil {
				leftovers = append(leftovers, id)
			}
		}
		sort.Strings(leftovers)
		srcIDs = append(srcIDs, leftovers...)
	}

	switch len(srcIDs) {
	case 0:
		return nil
	case 1:
		return received[srcIDs[0]]
	}

	jsonPart := make(map[string]any)
	binaryPart := make(map[string]any)
	var texts []string
	var firstErr any

	for _, srcID := range srcIDs {
		obj, ok := toObject(received[srcID])
		if !ok {
			jsonPart[srcID] = received[srcID]
			continue
		}

		recognized := false
		if j, ok := obj["json"]; ok {
			jsonPart[srcID] = j
			recognized = true
		}
		if t, ok := obj["text"].(string); ok && t != "" {
			texts = append(texts, t)
			recognized = true
		}
		if b, ok := obj["binary"]; ok {
			binaryPart[srcID] = b
			recognized = true
		}
		if e, ok := obj["error"]; ok && e != nil {
			if firstErr == nil {
				firstErr = e
			}
			recognized = true
		}
		if !recognized {
			// No recognized structure: the whole record is the json value.
			jsonPart[srcID] = obj
		}
	}

	combinedText := strings.Join(texts, "\n")

	if len(jsonPart) == 0 && combinedText != "" {
		jsonPart["text"] = combinedText
	}

	out := map[string]any{"json": jsonPart}
	if combinedText != "" {
		out["text"] = combinedText
	}
	if len(binaryPart) > 0 {
		out["binary"] = binaryPart
	}
	if firstErr != nil {
		out["error"] = firstErr
	}
	return out
}

// toObject unwraps node outputs and plain maps.
func toObject(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case schema.NodeOutput:
		return val, true
	default:
		return nil, false
	}
}
