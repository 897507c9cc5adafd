// Package mcp exposes the flow engine over the Model Context Protocol:
// running and resuming flows, cancelling in-flight executions, and querying
// execution records.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/023a424/agentflow/internal/engine"
	"github.com/023a424/agentflow/internal/nodes"
	"github.com/023a424/agentflow/internal/store"
	"github.com/023a424/agentflow/internal/streaming"
	"github.com/023a424/agentflow/internal/validation"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Store    store.Store
	Registry nodes.Registry
	Hub      streaming.EventHub
	Logger   *slog.Logger
	Limits   engine.Limits
	// PoolSize caps concurrent flow executions. Default 10.
	PoolSize int
}

// Server wraps an MCP server with flow-engine tool handlers.
type Server struct {
	store     store.Store
	registry  nodes.Registry
	hub       streaming.EventHub
	logger    *slog.Logger
	limits    engine.Limits
	pool      *engine.RunPool
	validator *validation.FlowValidator
	mcpServer *server.MCPServer

	// mu guards cancels: chat ID → cancel func for in-flight runs.
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer creates a Server with all tools registered.
func NewServer(deps ServerDeps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	poolSize := deps.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	validator, err := validation.NewFlowValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:     deps.Store,
		registry:  deps.Registry,
		hub:       deps.Hub,
		logger:    logger,
		limits:    deps.Limits,
		pool:      engine.NewRunPool(poolSize),
		validator: validator,
		cancels:   make(map[string]context.CancelFunc),
	}

	mcpSrv := server.NewMCPServer(
		"agentflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Agentflow executes node-graph agent flows against chat sessions. Use agentflow_run to start a flow, agentflow_resume to answer a paused human-input node, agentflow_stop to cancel an in-flight run, and execution_get/execution_list to inspect checkpoints."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Shutdown waits for in-flight runs to finish.
func (s *Server) Shutdown() {
	s.pool.Shutdown()
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: resumeTool(), Handler: s.handleResume},
		{Tool: stopTool(), Handler: s.handleStop},
		{Tool: executionGetTool(), Handler: s.handleExecutionGet},
		{Tool: executionListTool(), Handler: s.handleExecutionList},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("agentflow_run",
		mcp.WithDescription("Execute an agent flow against a chat session"),
		mcp.WithString("agentflow_id", mcp.Required(), mcp.Description("ID of the flow being run")),
		mcp.WithObject("flow", mcp.Required(), mcp.Description("Serialized flow definition (nodes + edges)")),
		mcp.WithString("chat_id", mcp.Description("Chat ID (default: generated)")),
		mcp.WithString("session_id", mcp.Description("Session ID (default: chat_id)")),
		mcp.WithString("question", mcp.Description("User question input")),
		mcp.WithObject("form", mcp.Description("Form input values (mutually exclusive with question)")),
		mcp.WithObject("override_config", mcp.Description("Per-request configuration overrides")),
	)
}

func resumeTool() mcp.Tool {
	return mcp.NewTool("agentflow_resume",
		mcp.WithDescription("Resume a stopped execution at a human-input node"),
		mcp.WithString("agentflow_id", mcp.Required(), mcp.Description("ID of the flow")),
		mcp.WithObject("flow", mcp.Required(), mcp.Description("Serialized flow definition (nodes + edges)")),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session whose latest execution is resumed")),
		mcp.WithString("start_node_id", mcp.Required(), mcp.Description("The paused human-input node ID")),
		mcp.WithString("response_type", mcp.Description("proceed or reject (default: proceed)")),
		mcp.WithString("feedback", mcp.Description("Reviewer feedback text")),
		mcp.WithString("chat_id", mcp.Description("Chat ID (default: session_id)")),
	)
}

func stopTool() mcp.Tool {
	return mcp.NewTool("agentflow_stop",
		mcp.WithDescription("Cancel an in-flight execution; it terminates within one scheduler tick"),
		mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat ID of the run to cancel")),
	)
}

func executionGetTool() mcp.Tool {
	return mcp.NewTool("execution_get",
		mcp.WithDescription("Fetch one execution record with its checkpoint"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("ID of the execution")),
	)
}

func executionListTool() mcp.Tool {
	return mcp.NewTool("execution_list",
		mcp.WithDescription("List execution records"),
		mcp.WithString("agentflow_id", mcp.Description("Filter by flow ID")),
		mcp.WithString("session_id", mcp.Description("Filter by session ID")),
		mcp.WithString("status", mcp.Description("Filter by status (INPROGRESS, FINISHED, STOPPED, ERROR, TERMINATED)")),
		mcp.WithNumber("limit", mcp.Description("Max rows (default 50)")),
	)
}
