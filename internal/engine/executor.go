// Package engine interprets an agent flow against a live chat session:
// dependency-driven scheduling with conditional branch pruning, fan-in
// aggregation, durable checkpoint/resume, bounded looping, and event
// streaming coupled to execution state transitions.
//
// The engine is exposed as a function over injected handles; there is no
// process-global state. One call to Execute drives one flow run to a
// terminal status.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/023a424/agentflow/internal/graph"
	"github.com/023a424/agentflow/internal/logging"
	"github.com/023a424/agentflow/internal/nodes"
	"github.com/023a424/agentflow/internal/store"
	"github.com/023a424/agentflow/internal/streaming"
	"github.com/023a424/agentflow/pkg/schema"
)

// ExecuteParams carries everything one flow invocation needs. Store,
// Registry, and Flow are required; the rest defaults sensibly.
type ExecuteParams struct {
	AgentflowID string
	Flow        *schema.FlowData
	Input       schema.RunInput

	ChatID       string
	APIMessageID string
	UploadedText string
	BaseURL      string
	IsInternal   bool

	// APIOverrideEnabled gates applying Input.OverrideConfig to node
	// inputs. Overrides only touch parameters the node declares.
	APIOverrideEnabled bool

	Registry  nodes.Registry
	Store     store.Store
	Hub       streaming.EventHub
	Telemetry Telemetry
	Logger    *slog.Logger
	Limits    Limits
}

// ExecuteResult is the outcome of one flow invocation.
type ExecuteResult struct {
	Text                  string                 `json:"text"`
	Question              string                 `json:"question,omitempty"`
	Form                  map[string]any         `json:"form,omitempty"`
	ChatID                string                 `json:"chatId"`
	ChatMessageID         string                 `json:"chatMessageId"`
	SessionID             string                 `json:"sessionId,omitempty"`
	ExecutionID           string                 `json:"executionId"`
	FollowUpPrompts       json.RawMessage        `json:"followUpPrompts,omitempty"`
	Status                schema.ExecutionStatus `json:"status"`
	Error                 *schema.FlowError      `json:"error,omitempty"`
	AgentFlowExecutedData []schema.ExecutedData  `json:"agentFlowExecutedData"`
}

// queueEntry is one ready node: its ID, the aggregated input payload, and
// the per-predecessor outputs it was aggregated from.
type queueEntry struct {
	nodeID string
	data   any
	inputs map[string]any
}

// run is the per-execution scratch owned by the scheduler.
type run struct {
	params *ExecuteParams
	model  *graph.Model
	limits Limits
	logger *slog.Logger

	str       *streaming.FlowStreamer
	store     store.Store
	telemetry Telemetry

	executionID string
	sessionID   string
	apiMsgID    string

	rt         *runtimeState
	checkpoint []schema.ExecutedData
	variables  map[string]any
	humanInput *schema.HumanInput

	queue      []queueEntry
	waiting    map[string]*waitingNode
	loopCounts map[string]int
}

// Execute runs one flow invocation to a terminal status. Pre-scheduling
// failures (bad input, invalid resume) return an error; runtime node
// failures surface in the result with Status ERROR.
func Execute(ctx context.Context, params ExecuteParams) (*ExecuteResult, error) {
	if params.Store == nil || params.Registry == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "store and registry are required")
	}
	if params.Input.Question != "" && params.Input.Form != nil {
		return nil, schema.NewError(schema.ErrCodeBadInput, "question and form are mutually exclusive")
	}

	model, err := graph.Build(params.Flow)
	if err != nil {
		return nil, err
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.New(logging.NewCorrelationHandler(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}

	telemetry := params.Telemetry
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}

	sessionID := params.Input.SessionID
	if sessionID == "" {
		sessionID = params.ChatID
	}
	apiMsgID := params.APIMessageID
	if apiMsgID == "" {
		apiMsgID = uuid.New().String()
	}

	r := &run{
		params:     &params,
		model:      model,
		limits:     params.Limits.withDefaults(),
		logger:     logger,
		store:      params.Store,
		telemetry:  telemetry,
		sessionID:  sessionID,
		apiMsgID:   apiMsgID,
		rt:         newRuntimeState(params.Input.Form),
		variables:  mergeVariables(ctx, params.Store, params.Input.OverrideConfig),
		humanInput: params.Input.HumanInput,
		waiting:    make(map[string]*waitingNode),
		loopCounts: make(map[string]int),
	}

	if resume := params.Input.HumanInput; resume != nil && resume.StartNodeID != "" {
		if err := r.setupResume(ctx, resume); err != nil {
			return nil, err
		}
	} else {
		if err := r.setupFresh(ctx); err != nil {
			return nil, err
		}
	}

	ctx = logging.WithExecutionID(logging.WithChatID(ctx, params.ChatID), r.executionID)
	r.str = streaming.NewFlowStreamer(params.Hub, params.ChatID, r.executionID)

	r.writeUserMessage(ctx)
	telemetry.OnFlowStart(ctx, params.AgentflowID, r.executionID)

	result := r.schedule(ctx)
	telemetry.OnFlowEnd(ctx, params.AgentflowID, r.executionID, string(result.Status))
	return result, nil
}

// setupFresh creates a new execution and seeds the queue with the starting
// nodes.
func (r *run) setupFresh(ctx context.Context) error {
	starts := r.model.StartingNodes()
	hasStartInput := false
	for _, id := range starts {
		node := r.model.Node(id)
		if node.Data.Name != schema.NodeNameStart {
			continue
		}
		if _, ok := node.Data.Inputs["startInputType"]; ok {
			hasStartInput = true
			break
		}
	}
	if !hasStartInput {
		return schema.NewError(schema.ErrCodeStartInput, "no start node declares startInputType")
	}

	r.executionID = uuid.New().String()
	exec := &store.Execution{
		ID:            r.executionID,
		AgentflowID:   r.params.AgentflowID,
		SessionID:     r.sessionID,
		Status:        schema.StatusInProgress,
		ExecutionData: []schema.ExecutedData{},
	}
	if err := r.store.CreateExecution(ctx, exec); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create execution: %s", err.Error()).WithCause(err)
	}

	for _, id := range starts {
		r.queue = append(r.queue, queueEntry{nodeID: id})
	}
	return nil
}

// setupResume validates a human-input resume, rehydrates runtime state from
// the checkpoint, atomically drops the stale STOPPED entry, and seeds the
// queue with the resumed node.
func (r *run) setupResume(ctx context.Context, resume *schema.HumanInput) error {
	latest, err := r.store.LatestExecution(ctx, r.params.AgentflowID, r.sessionID)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "load latest execution: %s", err.Error()).WithCause(err)
	}
	if latest == nil {
		return schema.NewErrorf(schema.ErrCodeInvalidResume,
			"no execution found for session %s", r.sessionID)
	}
	if latest.Status != schema.StatusStopped {
		return schema.NewErrorf(schema.ErrCodeInvalidResume,
			"cannot resume execution in state %s", latest.Status)
	}

	entryIdx := -1
	for i, entry := range latest.ExecutionData {
		if entry.NodeID == resume.StartNodeID {
			entryIdx = i
		}
	}
	if entryIdx == -1 {
		return schema.NewErrorf(schema.ErrCodeNodeNotInCheckpoint,
			"node %s not found in checkpoint", resume.StartNodeID).WithNode(resume.StartNodeID)
	}

	// Rehydrate runtime state from the last checkpoint entry.
	if last := latest.ExecutionData[len(latest.ExecutionData)-1]; last.Data != nil {
		if state := last.Data.State(); state != nil {
			r.rt.state = state
		}
	}

	// Drop the stale STOPPED entry before anything observes the checkpoint,
	// then seed the queue: the drop and the re-enqueue are one step.
	checkpoint := make([]schema.ExecutedData, 0, len(latest.ExecutionData)-1)
	for i, entry := range latest.ExecutionData {
		if i == entryIdx && entry.Status == schema.StatusStopped {
			continue
		}
		checkpoint = append(checkpoint, entry)
	}
	r.checkpoint = checkpoint
	r.executionID = latest.ID
	r.queue = append(r.queue, queueEntry{nodeID: resume.StartNodeID})

	if err := Transition(latest.Status, schema.StatusInProgress); err != nil {
		return err
	}
	inProgress := schema.StatusInProgress
	if err := r.store.UpdateExecution(ctx, latest.ID, store.ExecutionUpdate{
		Status:        &inProgress,
		ExecutionData: r.checkpoint,
	}); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "resume execution: %s", err.Error()).WithCause(err)
	}

	// The paused API message carried the action prompt; clear it now that
	// the caller answered.
	if err := r.store.ClearLatestMessageAction(ctx, r.params.AgentflowID, r.sessionID); err != nil {
		r.logger.WarnContext(ctx, "clear message action failed", "error", err)
	}
	return nil
}

// mergeVariables loads static variables and overlays per-request overrides
// from overrideConfig.vars.
func mergeVariables(ctx context.Context, s store.Store, overrideConfig map[string]any) map[string]any {
	merged := make(map[string]any)
	if vars, err := s.ListVariables(ctx); err == nil {
		for _, v := range vars {
			merged[v.Name] = v.Value
		}
	}
	if overrideConfig != nil {
		if overrides, ok := overrideConfig["vars"].(map[string]any); ok {
			for k, v := range overrides {
				merged[k] = v
			}
		}
	}
	return merged
}

// flowNamespace builds the $flow variable scope for one node invocation.
func (r *run) flowNamespace() map[string]any {
	ns := map[string]any{
		"chatflowid":   r.params.AgentflowID,
		"chatId":       r.params.ChatID,
		"sessionId":    r.sessionID,
		"apiMessageId": r.apiMsgID,
		"state":        r.rt.snapshotState(),
		"chatHistory":  r.rt.chatHistory,
	}
	for k, v := range r.params.Input.OverrideConfig {
		if _, exists := ns[k]; !exists {
			ns[k] = v
		}
	}
	return ns
}

// writeUserMessage persists the inbound user turn.
func (r *run) writeUserMessage(ctx context.Context) {
	content := r.params.Input.Question
	if content == "" && r.humanInput != nil {
		content = r.humanInput.Feedback
	}
	if content == "" && r.params.Input.Form != nil {
		if b, err := json.Marshal(r.params.Input.Form); err == nil {
			content = string(b)
		}
	}
	msg := &store.ChatMessage{
		ID:          uuid.New().String(),
		Role:        store.RoleUserMessage,
		AgentflowID: r.params.AgentflowID,
		ChatID:      r.params.ChatID,
		SessionID:   r.sessionID,
		Content:     content,
		ExecutionID: r.executionID,
	}
	if err := r.store.CreateChatMessage(ctx, msg); err != nil {
		r.logger.WarnContext(ctx, "persist user message failed", "error", err)
	}
}

// writeAPIMessage persists the assistant turn with the run outcome and the
// pass-through fields of the last checkpoint entry.
func (r *run) writeAPIMessage(ctx context.Context, text string, action *schema.HumanInputAction) string {
	msg := &store.ChatMessage{
		ID:          r.apiMsgID,
		Role:        store.RoleAPIMessage,
		AgentflowID: r.params.AgentflowID,
		ChatID:      r.params.ChatID,
		SessionID:   r.sessionID,
		Content:     text,
		ExecutionID: r.executionID,
	}
	if len(r.checkpoint) > 0 {
		if out := r.checkpoint[len(r.checkpoint)-1].Data.Output(); out != nil {
			msg.SourceDocuments = marshalField(out["sourceDocuments"])
			msg.UsedTools = marshalField(out["usedTools"])
			msg.FileAnnotations = marshalField(out["fileAnnotations"])
			msg.Artifacts = marshalField(out["artifacts"])
		}
	}
	if action != nil {
		msg.Action = marshalField(action)
	}
	if err := r.store.CreateChatMessage(ctx, msg); err != nil {
		r.logger.WarnContext(ctx, "persist api message failed", "error", err)
	}
	return msg.ID
}

func marshalField(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// persistCheckpoint writes the current checkpoint and status. stoppedAt is
// recorded when the run pauses for human input.
func (r *run) persistCheckpoint(ctx context.Context, status schema.ExecutionStatus) {
	update := store.ExecutionUpdate{
		Status:        &status,
		ExecutionData: r.checkpoint,
	}
	if status == schema.StatusStopped {
		now := time.Now().UTC()
		update.StoppedDate = &now
	}
	// A cancelled run still persists its terminal state.
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	// Best-effort: persistence failures are logged, not fatal mid-run.
	if err := r.store.UpdateExecution(ctx, r.executionID, update); err != nil {
		r.logger.ErrorContext(ctx, "persist execution failed", "error", err)
	}
}
