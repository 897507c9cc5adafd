package engine

import "context"

// Telemetry receives engine-level signals when analytic handlers are
// attached. Implementations must not block.
type Telemetry interface {
	OnFlowStart(ctx context.Context, agentflowID, executionID string)
	OnFlowEnd(ctx context.Context, agentflowID, executionID string, status string)
	OnChainError(ctx context.Context, agentflowID, executionID string, message string)
}

// NoopTelemetry discards all signals.
type NoopTelemetry struct{}

func (NoopTelemetry) OnFlowStart(context.Context, string, string)          {}
func (NoopTelemetry) OnFlowEnd(context.Context, string, string, string)    {}
func (NoopTelemetry) OnChainError(context.Context, string, string, string) {}
