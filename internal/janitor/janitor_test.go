package janitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/023a424/agentflow/internal/store"
	"github.com/023a424/agentflow/pkg/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(store.NewMemoryStore(), discardLogger(), Config{Schedule: "not a cron"})
	assert.Error(t, err)
}

func TestSweepTerminatesStaleExecutions(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	stale := &store.Execution{
		ID: "stale", AgentflowID: "f", SessionID: "s",
		Status: schema.StatusInProgress, ExecutionData: []schema.ExecutedData{},
	}
	require.NoError(t, st.CreateExecution(ctx, stale))

	fresh := &store.Execution{
		ID: "fresh", AgentflowID: "f", SessionID: "s2",
		Status: schema.StatusInProgress, ExecutionData: []schema.ExecutedData{},
	}
	require.NoError(t, st.CreateExecution(ctx, fresh))

	finished := &store.Execution{
		ID: "done", AgentflowID: "f", SessionID: "s3",
		Status: schema.StatusFinished, ExecutionData: []schema.ExecutedData{},
	}
	require.NoError(t, st.CreateExecution(ctx, finished))

	// Make only "stale" old enough by using a tiny TTL and waiting it out.
	j, err := New(st, discardLogger(), Config{StaleAfter: 30 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	touched := schema.StatusInProgress
	require.NoError(t, st.UpdateExecution(ctx, "fresh", store.ExecutionUpdate{Status: &touched}))

	j.Sweep(ctx)

	got, err := st.GetExecution(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusTerminated, got.Status)
	require.NotNil(t, got.StoppedDate)

	got, err = st.GetExecution(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusInProgress, got.Status)

	got, err = st.GetExecution(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusFinished, got.Status)
}

func TestStartAndStop(t *testing.T) {
	j, err := New(store.NewMemoryStore(), discardLogger(), Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, j.Start(ctx))
	require.Error(t, j.Start(ctx), "double start rejected")
	j.Stop()
}
