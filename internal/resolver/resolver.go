// Package resolver substitutes {{...}} references in node input values from
// the layered namespaces available to a running flow: the current question,
// uploaded file content, chat history, runtime form, global variables, the
// flow config, and prior node outputs.
package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaytaylor/html2text"

	"github.com/023a424/agentflow/pkg/schema"
)

// Scope holds the data reachable from variable references.
type Scope struct {
	Question     string
	UploadedText string
	ChatHistory  []schema.ChatTurn
	Form         map[string]any
	Variables    map[string]any // merged static + per-request override variables
	Flow         map[string]any // $flow namespace (chatflowid, chatId, sessionId, state, ...)
	Checkpoint   []schema.ExecutedData
}

// Options tune resolution behavior.
type Options struct {
	// SkipHTMLNormalization disables the HTML-to-text pass applied to every
	// string before substitution. The pass strips rich-text markup but can
	// mangle non-prose inputs (regex patterns, URLs); callers that know
	// their inputs are plain can opt out.
	SkipHTMLNormalization bool
}

// Resolver resolves {{...}} references against a fixed Scope.
type Resolver struct {
	scope Scope
	opts  Options
}

// New creates a Resolver for one node invocation.
func New(scope Scope, opts Options) *Resolver {
	return &Resolver{scope: scope, opts: opts}
}

// ResolveNodeData resolves every input value whose declared parameter has
// acceptVariable set. The node data is mutated in place; callers pass a copy.
func (r *Resolver) ResolveNodeData(data *schema.NodeData) error {
	if data.Inputs == nil {
		return nil
	}
	accepts := make(map[string]bool, len(data.InputParams))
	for _, p := range data.InputParams {
		if p.AcceptVariable {
			accepts[p.Name] = true
		}
	}
	for name, value := range data.Inputs {
		if !accepts[name] {
			continue
		}
		resolved, err := r.ResolveValue(value)
		if err != nil {
			return err
		}
		data.Inputs[name] = resolved
	}
	return nil
}

// ResolveValue recursively resolves references inside strings, slices, and
// maps. Non-string scalars pass through unchanged.
func (r *Resolver) ResolveValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.ResolveString(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := r.ResolveValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := r.ResolveValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveString normalizes the string and replaces every {{ reference }}
// left to right. A reference that does not resolve is left in place
// verbatim. When the whole string is a single reference, the resolved value
// is returned with its original type so structured values survive.
func (r *Resolver) ResolveString(s string) (any, error) {
	normalized := s
	if !r.opts.SkipHTMLNormalization && strings.Contains(s, "<") {
		text, err := html2text.FromString(s, html2text.Options{TextOnly: true})
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeResolve,
				"normalize input text: %s", err.Error()).WithCause(err)
		}
		normalized = text
	}

	// Whole-string reference: preserve the resolved value's type.
	trimmed := strings.TrimSpace(normalized)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		inner := trimmed[2 : len(trimmed)-2]
		if !strings.Contains(inner, "{{") && !strings.Contains(inner, "}}") {
			if val, ok := r.lookup(strings.TrimSpace(inner)); ok {
				return val, nil
			}
			return normalized, nil
		}
	}

	var result strings.Builder
	result.Grow(len(normalized))
	i := 0
	for i < len(normalized) {
		idx := strings.Index(normalized[i:], "{{")
		if idx == -1 {
			result.WriteString(normalized[i:])
			break
		}
		result.WriteString(normalized[i : i+idx])
		start := i + idx + 2
		end := strings.Index(normalized[start:], "}}")
		if end == -1 {
			// Unterminated reference: keep the rest verbatim.
			result.WriteString(normalized[i+idx:])
			break
		}
		end += start

		ref := strings.TrimSpace(normalized[start:end])
		if val, ok := r.lookup(ref); ok {
			result.WriteString(stringify(val))
		} else {
			result.WriteString(normalized[i+idx : end+2])
		}
		i = end + 2
	}
	return result.String(), nil
}

// lookup resolves a single reference. ok is false when the reference is not
// recognized, which leaves the literal in place.
func (r *Resolver) lookup(ref string) (any, bool) {
	// The HTML-to-text pass can leave a stray backslash in front of
	// node-id references; strip it before lookup.
	ref = strings.TrimPrefix(ref, `\`)

	switch {
	case ref == "question":
		if r.scope.UploadedText != "" {
			return r.scope.UploadedText + "\n\n" + r.scope.Question, true
		}
		return r.scope.Question, true

	case ref == "file_attachment":
		return r.scope.UploadedText, true

	case ref == "chat_history":
		return flattenChatHistory(r.scope.ChatHistory), true

	case strings.HasPrefix(ref, "$form."):
		return traverse(r.scope.Form, strings.TrimPrefix(ref, "$form."))

	case strings.HasPrefix(ref, "$vars."):
		return traverse(r.scope.Variables, strings.TrimPrefix(ref, "$vars."))

	case strings.HasPrefix(ref, "$flow."):
		return traverse(r.scope.Flow, strings.TrimPrefix(ref, "$flow."))

	default:
		// Node-id reference: the output.content of the matching
		// checkpoint entry.
		for i := len(r.scope.Checkpoint) - 1; i >= 0; i-- {
			if r.scope.Checkpoint[i].NodeID == ref {
				return r.scope.Checkpoint[i].Data.Content(), true
			}
		}
		return nil, false
	}
}

// traverse walks a dot-delimited path into nested maps. A missing segment
// leaves the reference unresolved rather than failing the node.
func traverse(root map[string]any, path string) (any, bool) {
	if root == nil {
		return nil, false
	}
	if val, ok := root[path]; ok {
		return val, true
	}
	var current any = root
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func flattenChatHistory(turns []schema.ChatTurn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}

// stringify renders a resolved value for embedding inside a larger string.
// Structured values are embedded as JSON.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
