// Package janitor sweeps stale executions in the background. A process
// crash mid-run leaves executions INPROGRESS forever; the janitor marks
// them TERMINATED once they exceed a TTL and periodically compacts the
// store.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/023a424/agentflow/internal/store"
	"github.com/023a424/agentflow/pkg/schema"
)

// DefaultStaleAfter is how long an INPROGRESS execution may go without an
// update before it is considered abandoned.
const DefaultStaleAfter = 24 * time.Hour

// Config tunes the janitor.
type Config struct {
	// Schedule is a standard 5-field cron expression. Default: hourly.
	Schedule string
	// StaleAfter overrides DefaultStaleAfter.
	StaleAfter time.Duration
	// Vacuum compacts the store after each sweep that terminated rows.
	Vacuum bool
}

// Janitor runs the sweep loop.
type Janitor struct {
	store    store.Store
	logger   *slog.Logger
	schedule cron.Schedule
	cfg      Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Janitor. The schedule is parsed eagerly so a bad
// expression fails at startup, not at the first tick.
func New(s store.Store, logger *slog.Logger, cfg Config) (*Janitor, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse janitor schedule %q: %w", cfg.Schedule, err)
	}
	return &Janitor{
		store:    s,
		logger:   logger,
		schedule: sched,
		cfg:      cfg,
	}, nil
}

// Start launches the background loop with a 60s ticker gated by the cron
// schedule.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.done != nil {
		j.mu.Unlock()
		return fmt.Errorf("janitor already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.mu.Unlock()

	go j.loop(loopCtx)
	j.logger.Info("janitor started", "schedule", j.cfg.Schedule, "stale_after", j.cfg.StaleAfter.String())
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	next := j.schedule.Next(time.Now())
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Before(next) {
				continue
			}
			next = j.schedule.Next(now)
			j.Sweep(ctx)
		}
	}
}

// Sweep terminates executions stuck INPROGRESS past the TTL. Exported so
// operators can trigger it on demand.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.cfg.StaleAfter)
	inProgress := schema.StatusInProgress
	stale, err := j.store.ListExecutions(ctx, store.ExecutionFilter{
		Status: &inProgress,
		Before: &cutoff,
	})
	if err != nil {
		j.logger.ErrorContext(ctx, "janitor list executions failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	terminated := schema.StatusTerminated
	swept := 0
	for _, exec := range stale {
		now := time.Now().UTC()
		err := j.store.UpdateExecution(ctx, exec.ID, store.ExecutionUpdate{
			Status:      &terminated,
			StoppedDate: &now,
		})
		if err != nil {
			j.logger.ErrorContext(ctx, "janitor terminate failed", "execution_id", exec.ID, "error", err)
			continue
		}
		swept++
	}
	j.logger.InfoContext(ctx, "janitor sweep complete", "stale", len(stale), "terminated", swept)

	if j.cfg.Vacuum && swept > 0 {
		if err := j.store.Vacuum(ctx); err != nil {
			j.logger.ErrorContext(ctx, "janitor vacuum failed", "error", err)
		}
	}
}
