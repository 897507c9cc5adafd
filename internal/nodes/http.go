package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/023a424/agentflow/pkg/schema"
)

// NodeNameHTTP is the logical name of the HTTP request node.
const NodeNameHTTP = "httpAgentflow"

const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
)

// HTTPNode performs an outbound HTTP request with the node's resolved
// method, URL, headers, and body inputs.
type HTTPNode struct {
	// Client overrides the default client (tests).
	Client *http.Client
}

func (n *HTTPNode) Name() string        { return NodeNameHTTP }
func (n *HTTPNode) Description() string { return "Perform an HTTP request" }

func (n *HTTPNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	rawURL := inputString(data, "url")
	if rawURL == "" {
		return nil, schema.NewError(schema.ErrCodeNodeExecution, "http node has no url configured").WithNode(data.ID)
	}
	method := strings.ToUpper(inputString(data, "method"))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if raw, ok := data.Inputs["body"]; ok && raw != nil {
		switch v := raw.(type) {
		case string:
			body = strings.NewReader(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeNodeExecution, "marshal request body: %s", err.Error()).WithNode(data.ID).WithCause(err)
			}
			body = strings.NewReader(string(b))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNodeExecution, "build request: %s", err.Error()).WithNode(data.ID).WithCause(err)
	}
	if headers, ok := data.Inputs["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNodeExecution, "%s %s: %s", method, rawURL, err.Error()).WithNode(data.ID).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxResponseBody))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNodeExecution, "read response: %s", err.Error()).WithNode(data.ID).WithCause(err)
	}

	out := map[string]any{
		schema.FieldContent: string(respBody),
		"statusCode":        resp.StatusCode,
	}
	var parsed any
	if json.Unmarshal(respBody, &parsed) == nil {
		out["json"] = parsed
	}
	return schema.NodeOutput{schema.FieldOutput: out}, nil
}
