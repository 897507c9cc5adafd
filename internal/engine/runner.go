package engine

import (
	"context"

	"github.com/023a424/agentflow/internal/nodes"
	"github.com/023a424/agentflow/internal/resolver"
	"github.com/023a424/agentflow/pkg/schema"
)

// nodeResult is the outcome of one node invocation.
type nodeResult struct {
	output schema.NodeOutput
	stop   bool
	action *schema.HumanInputAction
}

// runNode executes one ready node: cancellation check, INPROGRESS event,
// input copy + override + variable resolution, dispatch to the registered
// implementation, and the human-input stop protocol.
func (r *run) runNode(ctx context.Context, entry queueEntry, flowNode *schema.FlowNode) (*nodeResult, error) {
	if ctx.Err() != nil {
		return nil, schema.NewError(schema.ErrCodeAborted, "execution aborted").WithNode(flowNode.ID)
	}

	r.str.NodeEvent(ctx, flowNode.ID, flowNode.Data.Label, schema.StatusInProgress, "")

	data := flowNode.Data.Clone()
	if r.params.APIOverrideEnabled {
		applyOverrides(data, r.params.Input.OverrideConfig)
	}

	res := resolver.New(resolver.Scope{
		Question:     r.params.Input.Question,
		UploadedText: r.params.UploadedText,
		ChatHistory:  r.rt.chatHistory,
		Form:         r.rt.form,
		Variables:    r.variables,
		Flow:         r.flowNamespace(),
		Checkpoint:   r.checkpoint,
	}, resolver.Options{})
	if err := res.ResolveNodeData(data); err != nil {
		// Resolver failures fail the owning node.
		return nil, asFlowError(err, flowNode.ID)
	}

	resumingThisNode := r.humanInput != nil && r.humanInput.StartNodeID == flowNode.ID
	isHumanInput := flowNode.Data.Name == schema.NodeNameHumanInput
	isLastNode := len(r.model.Successors(flowNode.ID)) == 0 || (isHumanInput && !resumingThisNode)

	params := nodes.RunParams{
		ExecutionID:  r.executionID,
		AgentflowID:  r.params.AgentflowID,
		ChatID:       r.params.ChatID,
		SessionID:    r.sessionID,
		APIMessageID: r.apiMsgID,
		BaseURL:      r.params.BaseURL,
		Question:     r.params.Input.Question,
		UploadedText: r.params.UploadedText,
		Form:         r.rt.form,
		State:        r.rt.snapshotState(),
		ChatHistory:  r.rt.chatHistory,
		Variables:    r.variables,
		IsLastNode:   isLastNode,
		Logger:       r.logger,
	}
	if resumingThisNode {
		params.HumanInput = r.humanInput
	}

	impl, err := r.params.Registry.Get(flowNode.Data.Name)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNodeExecution,
			"no implementation for node type %q", flowNode.Data.Name).WithNode(flowNode.ID).WithCause(err)
	}

	output, err := impl.Run(ctx, data, entry.data, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, schema.NewError(schema.ErrCodeAborted, "execution aborted").WithNode(flowNode.ID).WithCause(err)
		}
		return nil, asFlowError(err, flowNode.ID)
	}
	if output == nil {
		output = schema.NodeOutput{}
	}

	// Human-input stop: no input was supplied for this node on this call.
	if isHumanInput && !resumingThisNode {
		action := buildHumanInputAction(flowNode.ID, flowNode.Data.Label)
		out, ok := output[schema.FieldOutput].(map[string]any)
		if !ok {
			out = make(map[string]any)
			output[schema.FieldOutput] = out
		}
		out[schema.FieldHumanAction] = action
		return &nodeResult{output: output, stop: true, action: action}, nil
	}
	if isHumanInput && resumingThisNode {
		// Input consumed; a later human-input node in the same call pauses
		// again.
		r.humanInput = nil
	}

	return &nodeResult{output: output}, nil
}

// applyOverrides folds per-request configuration into a node's inputs.
// Only parameters the node already declares are overridable; a map override
// keyed by node ID applies per node, anything else applies globally.
func applyOverrides(data *schema.NodeData, overrideConfig map[string]any) {
	if len(overrideConfig) == 0 {
		return
	}
	declared := make(map[string]bool, len(data.InputParams))
	for _, p := range data.InputParams {
		declared[p.Name] = true
	}
	for key, val := range overrideConfig {
		if key == "vars" || !declared[key] {
			continue
		}
		if data.Inputs == nil {
			data.Inputs = make(map[string]any)
		}
		if perNode, ok := val.(map[string]any); ok {
			if nodeVal, keyed := perNode[data.ID]; keyed {
				data.Inputs[key] = nodeVal
				continue
			}
		}
		data.Inputs[key] = val
	}
}
