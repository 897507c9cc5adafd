// Package nodes defines the node implementation contract and the registry
// the engine dispatches through, plus the builtin node set. External node
// pools implement the same interfaces and register alongside the builtins.
package nodes

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/023a424/agentflow/pkg/schema"
)

// RunParams is the runtime context handed to every node invocation.
type RunParams struct {
	ExecutionID  string
	AgentflowID  string
	ChatID       string
	SessionID    string
	APIMessageID string
	BaseURL      string

	Question     string
	UploadedText string
	Form         map[string]any
	HumanInput   *schema.HumanInput

	State       map[string]any
	ChatHistory []schema.ChatTurn
	Variables   map[string]any

	IsLastNode bool
	Logger     *slog.Logger
}

// Node is an executable unit of a flow. The engine marshals resolved input
// data and the combined predecessor input; everything a node returns flows
// into the checkpoint untouched except for the recognized output fields.
type Node interface {
	Name() string
	Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error)
}

// Info is a summary of a registered node implementation.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Describer is optionally implemented by nodes that carry a description.
type Describer interface {
	Description() string
}

// Registry resolves logical node names to implementations.
type Registry interface {
	Register(node Node) error
	Get(name string) (Node, error)
	Has(name string) bool
	List() []Info
}

// registry is the concrete thread-safe Registry implementation.
type registry struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// NewRegistry creates an empty Registry.
func NewRegistry() Registry {
	return &registry{nodes: make(map[string]Node)}
}

func (r *registry) Register(node Node) error {
	if node == nil {
		return schema.NewError(schema.ErrCodeValidation, "node is nil")
	}
	name := node.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "node name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "node %q already registered", name)
	}
	r.nodes[name] = node
	return nil
}

func (r *registry) Get(name string) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "node %q not registered", name)
	}
	return node, nil
}

func (r *registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[name]
	return ok
}

func (r *registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.nodes))
	for _, n := range r.nodes {
		info := Info{Name: n.Name()}
		if d, ok := n.(Describer); ok {
			info.Description = d.Description()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// inputString reads a string input value, or "".
func inputString(data *schema.NodeData, key string) string {
	if data == nil || data.Inputs == nil {
		return ""
	}
	s, _ := data.Inputs[key].(string)
	return s
}

// inputInt reads a numeric input value, or def.
func inputInt(data *schema.NodeData, key string, def int) int {
	if data == nil || data.Inputs == nil {
		return def
	}
	switch v := data.Inputs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}
