package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/023a424/agentflow/internal/engine"
	"github.com/023a424/agentflow/internal/store"
	"github.com/023a424/agentflow/pkg/schema"
)

// handleRun starts a fresh flow run.
func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentflowID, err := req.RequireString("agentflow_id")
	if err != nil {
		return mcp.NewToolResultError("agentflow_id is required"), nil
	}
	flow, errResult := s.parseFlow(req)
	if errResult != nil {
		return errResult, nil
	}

	chatID := req.GetString("chat_id", "")
	if chatID == "" {
		chatID = uuid.New().String()
	}

	input := schema.RunInput{
		Question:       req.GetString("question", ""),
		SessionID:      req.GetString("session_id", ""),
		OverrideConfig: mcp.ParseStringMap(req, "override_config", nil),
	}
	if form := mcp.ParseStringMap(req, "form", nil); len(form) > 0 {
		input.Form = form
	}

	return s.execute(ctx, engine.ExecuteParams{
		AgentflowID:        agentflowID,
		Flow:               flow,
		Input:              input,
		ChatID:             chatID,
		APIOverrideEnabled: input.OverrideConfig != nil,
	})
}

// handleResume answers a paused human-input node.
func (s *Server) handleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentflowID, err := req.RequireString("agentflow_id")
	if err != nil {
		return mcp.NewToolResultError("agentflow_id is required"), nil
	}
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	startNodeID, err := req.RequireString("start_node_id")
	if err != nil {
		return mcp.NewToolResultError("start_node_id is required"), nil
	}
	flow, errResult := s.parseFlow(req)
	if errResult != nil {
		return errResult, nil
	}

	responseType := req.GetString("response_type", schema.HumanInputProceed)
	chatID := req.GetString("chat_id", sessionID)

	return s.execute(ctx, engine.ExecuteParams{
		AgentflowID: agentflowID,
		Flow:        flow,
		ChatID:      chatID,
		Input: schema.RunInput{
			SessionID: sessionID,
			HumanInput: &schema.HumanInput{
				Type:        responseType,
				StartNodeID: startNodeID,
				Feedback:    req.GetString("feedback", ""),
			},
		},
	})
}

// handleStop cancels an in-flight execution.
func (s *Server) handleStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := req.RequireString("chat_id")
	if err != nil {
		return mcp.NewToolResultError("chat_id is required"), nil
	}

	s.mu.Lock()
	cancel, ok := s.cancels[chatID]
	s.mu.Unlock()
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no run in flight for chat %s", chatID)), nil
	}
	cancel()
	return marshalResult(map[string]any{"ok": true, "chat_id": chatID}), nil
}

// handleExecutionGet fetches one execution record.
func (s *Server) handleExecutionGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}
	exec, getErr := s.store.GetExecution(ctx, executionID)
	if getErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execution lookup failed: %v", getErr)), nil
	}
	return marshalResult(exec), nil
}

// handleExecutionList lists execution records.
func (s *Server) handleExecutionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ExecutionFilter{
		AgentflowID: req.GetString("agentflow_id", ""),
		SessionID:   req.GetString("session_id", ""),
		Limit:       req.GetInt("limit", 50),
	}
	if status := req.GetString("status", ""); status != "" {
		st := schema.ExecutionStatus(status)
		filter.Status = &st
	}
	execs, listErr := s.store.ListExecutions(ctx, filter)
	if listErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execution list failed: %v", listErr)), nil
	}
	return marshalResult(execs), nil
}

// execute runs the engine through the bounded pool with a registered cancel
// handle so agentflow_stop can reach it.
func (s *Server) execute(ctx context.Context, params engine.ExecuteParams) (*mcp.CallToolResult, error) {
	params.Store = s.store
	params.Registry = s.registry
	params.Hub = s.hub
	params.Logger = s.logger
	params.Limits = s.limits

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *engine.ExecuteResult
		err    error
	}
	done := make(chan outcome, 1)

	s.mu.Lock()
	s.cancels[params.ChatID] = cancel
	s.mu.Unlock()

	err := s.pool.Submit(runCtx, func(poolCtx context.Context) error {
		result, execErr := engine.Execute(poolCtx, params)
		done <- outcome{result, execErr}
		return execErr
	})
	if err != nil {
		s.mu.Lock()
		delete(s.cancels, params.ChatID)
		s.mu.Unlock()
		return mcp.NewToolResultError(fmt.Sprintf("run rejected: %v", err)), nil
	}

	out := <-done

	s.mu.Lock()
	delete(s.cancels, params.ChatID)
	s.mu.Unlock()

	if out.err != nil {
		return mcp.NewToolResultError(out.err.Error()), nil
	}
	return marshalResult(out.result), nil
}

// parseFlow validates the flow argument against the flow schema.
func (s *Server) parseFlow(req mcp.CallToolRequest) (*schema.FlowData, *mcp.CallToolResult) {
	raw := mcp.ParseStringMap(req, "flow", nil)
	if len(raw) == 0 {
		return nil, mcp.NewToolResultError("flow is required")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid flow: %v", err))
	}
	flow, err := s.validator.ValidateJSON(b)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return flow, nil
}

func marshalResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}
