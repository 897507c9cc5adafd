package engine

import (
	"context"
	"errors"

	"github.com/023a424/agentflow/internal/logging"
	"github.com/023a424/agentflow/pkg/schema"
)

// schedule drives the ready queue until it drains or the run reaches a
// terminal status, then persists and streams the outcome.
func (r *run) schedule(ctx context.Context) *ExecuteResult {
	status := schema.StatusInProgress
	var flowErr *schema.FlowError
	var pausedAction *schema.HumanInputAction
	iterations := 0

	r.str.FlowStatus(ctx, schema.StatusInProgress)

	for len(r.queue) > 0 && status == schema.StatusInProgress {
		if iterations >= r.limits.MaxIterations {
			flowErr = schema.NewErrorf(schema.ErrCodeIterationLimit,
				"scheduler exceeded %d iterations", r.limits.MaxIterations)
			status = schema.StatusError
			break
		}
		iterations++

		entry := r.queue[0]
		r.queue = r.queue[1:]

		flowNode := r.model.Node(entry.nodeID)
		if flowNode == nil {
			flowErr = schema.NewErrorf(schema.ErrCodeNodeExecution,
				"queued node %s is not in the flow", entry.nodeID).WithNode(entry.nodeID)
			status = schema.StatusError
			break
		}
		if flowNode.Data.Name == schema.NodeNameStickyNote {
			continue
		}

		nodeCtx := logging.WithNodeID(ctx, flowNode.ID)
		res, err := r.runNode(nodeCtx, entry, flowNode)
		if err != nil {
			status = r.failNode(nodeCtx, flowNode, err, &flowErr)
			break
		}

		if res.stop {
			r.appendEntry(flowNode, res.output, schema.StatusStopped)
			r.persistCheckpoint(nodeCtx, schema.StatusStopped)
			r.str.NodeEvent(nodeCtx, flowNode.ID, flowNode.Data.Label, schema.StatusStopped, "")
			r.str.Checkpoint(nodeCtx, r.checkpoint)
			r.str.Action(nodeCtx, res.action)
			pausedAction = res.action
			status = schema.StatusStopped
			break
		}

		r.appendEntry(flowNode, res.output, schema.StatusFinished)
		r.rt.apply(res.output)
		r.str.NodeEvent(nodeCtx, flowNode.ID, flowNode.Data.Label, schema.StatusFinished, "")
		r.str.Checkpoint(nodeCtx, r.checkpoint)

		r.dispatchSuccessors(flowNode, res.output)

		if flowNode.Data.Name == schema.NodeNameLoop {
			r.handleLoopBack(nodeCtx, flowNode, res.output)
		}
	}

	if status == schema.StatusInProgress {
		// Queue drained without an explicit break: fold the checkpoint.
		status = schema.FinalStatus(r.checkpoint)
	}

	r.persistCheckpoint(ctx, status)
	r.str.FlowStatus(ctx, status)

	text := " "
	if len(r.checkpoint) > 0 {
		if content := r.checkpoint[len(r.checkpoint)-1].Data.Content(); content != "" {
			text = content
		}
	}
	chatMessageID := r.writeAPIMessage(ctx, text, pausedAction)

	return &ExecuteResult{
		Text:                  text,
		Question:              r.params.Input.Question,
		Form:                  r.rt.form,
		ChatID:                r.params.ChatID,
		ChatMessageID:         chatMessageID,
		SessionID:             r.sessionID,
		ExecutionID:           r.executionID,
		Status:                status,
		Error:                 flowErr,
		AgentFlowExecutedData: r.checkpoint,
	}
}

// failNode folds a node failure into the checkpoint and events. Aborts map
// to TERMINATED with no error text; everything else is an ERROR entry with
// the node's message.
func (r *run) failNode(ctx context.Context, flowNode *schema.FlowNode, err error, flowErr **schema.FlowError) schema.ExecutionStatus {
	if isAborted(ctx, err) {
		r.appendEntry(flowNode, schema.NodeOutput{}, schema.StatusTerminated)
		r.str.NodeEvent(ctx, flowNode.ID, flowNode.Data.Label, schema.StatusTerminated, "")
		r.str.Checkpoint(ctx, r.checkpoint)
		return schema.StatusTerminated
	}

	fe := asFlowError(err, flowNode.ID)
	*flowErr = fe
	r.appendEntry(flowNode, schema.NodeOutput{schema.FieldError: fe.Message}, schema.StatusError)
	r.str.NodeEvent(ctx, flowNode.ID, flowNode.Data.Label, schema.StatusError, fe.Message)
	r.str.Checkpoint(ctx, r.checkpoint)
	r.telemetry.OnChainError(ctx, r.params.AgentflowID, r.executionID, fe.Message)
	return schema.StatusError
}

// appendEntry appends a checkpoint entry for a node transition.
func (r *run) appendEntry(flowNode *schema.FlowNode, output schema.NodeOutput, status schema.ExecutionStatus) {
	prev := r.model.Predecessors(flowNode.ID)
	if prev == nil {
		prev = []string{}
	}
	r.checkpoint = append(r.checkpoint, schema.ExecutedData{
		NodeID:          flowNode.ID,
		NodeLabel:       flowNode.Data.Label,
		Data:            output,
		PreviousNodeIDs: prev,
		Status:          status,
	})
}

// dispatchSuccessors feeds a finished node's output into the waiting table
// and enqueues every successor that becomes ready. Successors pruned by the
// branch pruner are skipped for this dispatch only.
func (r *run) dispatchSuccessors(flowNode *schema.FlowNode, output schema.NodeOutput) {
	skipped := pruneSuccessors(r.model, flowNode.ID, output)

	seen := make(map[string]bool)
	for _, succ := range r.model.Successors(flowNode.ID) {
		if seen[succ] {
			continue
		}
		seen[succ] = true
		if _, skip := skipped[succ]; skip {
			continue
		}

		w, ok := r.waiting[succ]
		if !ok {
			w = newWaitingNode(r.model, succ)
			r.waiting[succ] = w
		}
		w.receive(flowNode.ID, output)

		if w.ready() {
			delete(r.waiting, succ)
			r.queue = append(r.queue, queueEntry{
				nodeID: succ,
				data:   combineInputs(w.receivedInputs, r.model.SortedPredecessors(succ)),
				inputs: w.receivedInputs,
			})
		}
	}
}

// handleLoopBack re-enqueues the loop target, bounded by the node's
// maxLoopCount (or the engine default). Human input never re-applies on a
// loop-back pass.
func (r *run) handleLoopBack(ctx context.Context, flowNode *schema.FlowNode, output schema.NodeOutput) {
	target, maxLoop, ok := output.LoopTarget()
	if !ok {
		return
	}
	if maxLoop <= 0 {
		maxLoop = r.limits.MaxLoopCount
	}

	count := r.loopCounts[flowNode.ID] + 1
	if count >= maxLoop {
		r.logger.InfoContext(ctx, "loop limit reached", "loop_node", flowNode.ID, "max", maxLoop)
		return
	}
	r.loopCounts[flowNode.ID] = count
	r.queue = append(r.queue, queueEntry{nodeID: target, data: output})
	r.humanInput = nil
}

func isAborted(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		return fe.Code == schema.ErrCodeAborted
	}
	return false
}

// asFlowError normalizes any error into a node-execution FlowError.
func asFlowError(err error, nodeID string) *schema.FlowError {
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		if fe.NodeID == "" {
			fe.NodeID = nodeID
		}
		return fe
	}
	return schema.NewErrorf(schema.ErrCodeNodeExecution, "%s", err.Error()).WithNode(nodeID).WithCause(err)
}
