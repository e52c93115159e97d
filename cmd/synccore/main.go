// Command synccore is a standalone CLI host for the sync engine, useful for
// exercising a full check/ingest/merkle-sync pass against a real folder
// without a host editor attached. It watches one folder on a fixed poll
// cadence and logs every orchestrator and chat gateway event as they fire.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/insien-dev/sync-core/internal/chatgateway"
	"github.com/insien-dev/sync-core/internal/config"
	"github.com/insien-dev/sync-core/internal/gitmeta"
	"github.com/insien-dev/sync-core/internal/localfs"
	"github.com/insien-dev/sync-core/internal/observability"
	"github.com/insien-dev/sync-core/internal/progressbus"
	"github.com/insien-dev/sync-core/internal/sessioncache"
	"github.com/insien-dev/sync-core/internal/syncengine"
	"github.com/insien-dev/sync-core/internal/transport"
)

const version = "0.1.0"

func main() {
	folder := flag.String("folder", ".", "folder to watch and ingest")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		Output:        os.Stdout,
		AddSource:     true,
		SentryEnabled: cfg.Observability.Sentry.DSN != "",
	})

	logger.Info("sync-core starting", "version", version, "folder", *folder)

	metrics := observability.NewMetricsCollector("synccore")

	var tracerProvider *observability.TracerProvider
	if cfg.Observability.Tracing.OTLPEndpoint != "" {
		tracerProvider, err = observability.NewTracerProvider(observability.TracerConfig{
			ServiceName:    "sync-core",
			ServiceVersion: version,
			OTLPEndpoint:   cfg.Observability.Tracing.OTLPEndpoint,
			SamplingRate:   1.0,
			Enabled:        true,
		})
		if err != nil {
			logger.Error("failed to initialize tracing provider", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown tracer provider", "error", err)
			}
		}()
		logger.Info("tracing enabled", "endpoint", cfg.Observability.Tracing.OTLPEndpoint)
	} else {
		tracerProvider, _ = observability.NewTracerProvider(observability.TracerConfig{ServiceName: "sync-core"})
		logger.Info("tracing disabled")
	}

	if cfg.Observability.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Observability.Sentry.DSN,
			TracesSampleRate: 1.0,
		}); err != nil {
			logger.Error("failed to initialize sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
		logger.Info("sentry enabled")
	} else {
		logger.Info("sentry disabled")
	}

	errHandler := observability.NewErrorHandler(logger, metrics, cfg.Observability.Sentry.DSN != "")

	repo := gitmeta.Read(*folder)
	logger.Info("repository metadata", "branch", repo.Branch, "remote", repo.RemoteURL)

	ws := localfs.SingleRootWorkspace{Root: *folder}
	fs := localfs.FileService{}

	bus, err := progressbus.New(progressbus.Config{Addr: cfg.ProgressBus.Redis.Addr})
	if err != nil {
		logger.Error("failed to initialize progress bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	if bus.Enabled() {
		logger.Info("progress bus enabled", "addr", cfg.ProgressBus.Redis.Addr)
	}

	// subscribeTo follows the active project: it tears down the previous
	// window-to-window subscription and opens a new one, so this window
	// also observes onIngestionProgress/onProjectChanged events published
	// by other editor windows sharing the same project. A disabled bus
	// makes this a no-op.
	var subMu sync.Mutex
	var subCancel context.CancelFunc
	subscribeTo := func(projectID string) {
		subMu.Lock()
		defer subMu.Unlock()
		if subCancel != nil {
			subCancel()
			subCancel = nil
		}
		if projectID == "" || !bus.Enabled() {
			return
		}
		subCtx, cancel := context.WithCancel(ctx)
		subCancel = cancel
		events := bus.Subscribe(subCtx, projectID)
		go func() {
			for evt := range events {
				logger.Info("progress bus event received", "kind", evt.Kind, "projectId", evt.ProjectID)
			}
		}()
	}

	orch := syncengine.New(ws, fs, logger, metrics, tracerProvider.Tracer())
	orch.SetProgressBus(bus)
	orch.OnProjectChanged = func(p *syncengine.LocalProjectInfo) {
		if p == nil {
			logger.Info("no active project")
			subscribeTo("")
			return
		}
		logger.Info("active project changed", "projectId", p.ProjectID, "status", p.IngestionStatus)
		subscribeTo(p.ProjectID)
	}
	orch.OnIngestionProgress = func(p syncengine.IngestionProgress) {
		logger.Info("ingestion progress", "projectId", p.ProjectID, "processed", p.Processed, "total", p.Total)
	}
	orch.OnIngestionComplete = func(projectID string) {
		logger.Info("ingestion complete", "projectId", projectID)
	}
	orch.OnIngestionError = func(e syncengine.IngestionError) {
		logger.Error("ingestion error", "projectId", e.ProjectID, "error", e.Error)
	}

	if err := orch.Initialize(ctx, cfg.Backend.URL, cfg.Backend.AuthToken); err != nil {
		logger.Error("failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	var cache chatgateway.SessionCache
	if cfg.SessionCache.Path != "" {
		store, err := sessioncache.NewStore(cfg.SessionCache.Path)
		if err != nil {
			logger.Error("failed to initialize session cache", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		cache = store
	}

	chatClient := transport.New(cfg.Backend.URL, cfg.Backend.AuthToken)
	gateway := chatgateway.New(chatClient, chatgateway.NewRemoteModelService(chatClient), cache, errHandler, orch)
	gateway.OnAvailabilityChanged = func(available bool, projectID string) {
		logger.Info("chat availability changed", "available", available, "projectId", projectID)
	}
	gateway.OnCachedSessions = func(projectID string, sessions []chatgateway.ChatSession) {
		logger.Info("painted cached sessions", "projectId", projectID, "count", len(sessions))
	}
	gateway.OnCachedHistory = func(sessionID string, messages []chatgateway.ChatMessage) {
		logger.Info("painted cached history", "sessionId", sessionID, "count", len(messages))
	}

	ticker := time.NewTicker(orch.PollInterval)
	defer ticker.Stop()

	logger.Info("watching folder", "folder", *folder)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			if err := orch.CheckAndIngestWorkspace(ctx); err != nil {
				logger.Warn("check and ingest failed", "error", err)
			}
		}
	}
}
