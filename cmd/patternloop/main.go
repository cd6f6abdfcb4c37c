package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/patternloop/internal/config"
	"github.com/dshills/patternloop/internal/learning"
	"github.com/dshills/patternloop/internal/mcp"
	"github.com/dshills/patternloop/internal/pipeline"
	"github.com/dshills/patternloop/internal/profiler"
	"github.com/dshills/patternloop/internal/recovery"
	"github.com/dshills/patternloop/internal/statistics"
	"github.com/dshills/patternloop/internal/storage"
	"github.com/dshills/patternloop/internal/telemetry"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("patternloop MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the MCP protocol
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("patternloop starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"db_path", cfg.Storage.Path)

	store, err := openStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var metrics *telemetry.Collectors
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err = telemetry.New(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		if cfg.Metrics.Address != "" {
			go serveMetrics(cfg.Metrics.Address, reg, logger)
		}
	}

	stats := statistics.NewManager(statistics.WithLogger(logger), statistics.WithTelemetry(metrics))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := stats.Load(ctx, store); err != nil {
		// Start empty rather than refuse to serve
		logger.Warn("failed to restore pattern statistics", "error", err)
	} else {
		logger.Info("restored pattern statistics", "patterns", stats.Len())
	}

	prof := profiler.New(profiler.WithLogger(logger))
	prof.Configure(cfg.Profiler.SamplingRate, cfg.Profiler.Enabled)

	rec := recovery.NewEngine(
		recovery.WithLogger(logger),
		recovery.WithTelemetry(metrics),
		recovery.WithStrategies(
			recovery.NewFallbackPatterns(),
			recovery.NewRegexFallback(cfg.Pipeline.RegexCacheSize),
			recovery.NewPartialMatch(),
		))

	learn := learning.NewEngine(
		learning.WithLogger(logger),
		learning.WithTelemetry(metrics),
		learning.WithWorkers(cfg.Pipeline.LearningWorkers))

	runner := pipeline.New(pipeline.NewRegexExecutor(cfg.Pipeline.RegexCacheSize), stats, rec,
		pipeline.WithLogger(logger),
		pipeline.WithProfiler(prof),
		pipeline.WithLearning(learn),
		pipeline.WithStore(store))

	server, err := mcp.NewServer(mcp.Deps{
		Stats:    stats,
		Profiler: prof,
		Recovery: rec,
		Learning: learn,
		Store:    store,
		Logger:   logger,
		Runner:   runner,
		RunConfig: pipeline.Config{
			Workers:          cfg.Pipeline.Workers,
			MaxErrorMessages: cfg.Pipeline.MaxErrorMessages,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if cfg.Storage.FlushInterval > 0 {
		go flushLoop(ctx, stats, store, cfg.Storage.FlushInterval, logger)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case serveErr = <-errChan:
	}
	cancel()

	// Final save uses a fresh context; the serving one is already cancelled
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if err := stats.Save(saveCtx, store); err != nil {
		logger.Warn("failed to save pattern statistics", "error", err)
	}
	if err := prof.SaveReport(saveCtx, store); err != nil {
		logger.Warn("failed to save profiler report", "error", err)
	}

	logger.Info("server stopped")
	return serveErr
}

func openStore(path string) (*storage.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// flushLoop saves statistics whenever the manager reports them stale
func flushLoop(ctx context.Context, stats *statistics.Manager, store storage.KVStore, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !stats.NeedsFlush() {
				continue
			}
			if err := stats.Save(ctx, store); err != nil {
				logger.Warn("periodic flush failed", "error", err)
			}
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server stopped", "error", err)
	}
}
