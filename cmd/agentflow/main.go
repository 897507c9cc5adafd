package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/023a424/agentflow/internal/engine"
	"github.com/023a424/agentflow/internal/janitor"
	"github.com/023a424/agentflow/internal/logging"
	"github.com/023a424/agentflow/internal/nodes"
	"github.com/023a424/agentflow/internal/store"
	"github.com/023a424/agentflow/internal/streaming"
	"github.com/023a424/agentflow/pkg/mcp"
)

func main() {
	cfg := loadConfig()

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(logging.NewCorrelationHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg, logger); err != nil {
		logger.Error("agentflow exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(agentflowDir(), 0o755); err != nil {
		return err
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	registry, err := nodes.Builtin()
	if err != nil {
		return err
	}
	hub := streaming.NewMemoryHub()

	staleAfter, err := time.ParseDuration(cfg.StaleAfter)
	if err != nil {
		staleAfter = janitor.DefaultStaleAfter
	}
	jan, err := janitor.New(st, logger, janitor.Config{
		Schedule:   cfg.JanitorSchedule,
		StaleAfter: staleAfter,
		Vacuum:     true,
	})
	if err != nil {
		return err
	}
	if err := jan.Start(ctx); err != nil {
		return err
	}
	defer jan.Stop()

	// SSE listener for streaming clients.
	if cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /streams/{chatId}", func(w http.ResponseWriter, r *http.Request) {
			streaming.ServeSSE(w, r, hub, streaming.EventFilter{ChatID: r.PathValue("chatId")})
		})
		httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
		go func() {
			logger.Info("sse listener started", "addr", cfg.ListenAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("sse listener failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	srv, err := mcp.NewServer(mcp.ServerDeps{
		Store:    st,
		Registry: registry,
		Hub:      hub,
		Logger:   logger,
		Limits:   engine.LimitsFromEnv(),
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		return err
	}
	defer srv.Shutdown()

	logger.Info("agentflow mcp server started", "db", cfg.DBPath)
	return srv.Serve(ctx)
}
