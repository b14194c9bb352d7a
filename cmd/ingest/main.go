package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brightpitch/fixtureflow/internal/app"
	"github.com/brightpitch/fixtureflow/internal/config"
	"github.com/brightpitch/fixtureflow/internal/ingestconfig"
	"github.com/brightpitch/fixtureflow/internal/observability"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
)

func main() {
	configPath := flag.String("config", envOrDefault("INGEST_CONFIG_PATH", "./ingest.yaml"), "path to the ingestion config YAML file")
	flag.Parse()

	ambientCfg, err := config.Load()
	if err != nil {
		logging.NewJSON(logging.LevelError).ErrorContext(context.Background(), "load ambient config", "error", err)
		os.Exit(1)
	}

	baseLogger := logging.NewJSON(ambientCfg.LogLevel)
	logger, flushLogs, err := observability.InitBetterStackLogger(ambientCfg, baseLogger)
	if err != nil {
		baseLogger.ErrorContext(context.Background(), "init betterstack logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := flushLogs(shutdownCtx); err != nil {
			logger.WarnContext(context.Background(), "flush betterstack logs", "error", err)
		}
	}()

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	pprofServer, err := observability.StartPprofServer(ambientCfg, slogLogger)
	if err != nil {
		logger.ErrorContext(context.Background(), "start pprof server", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := observability.StopPprofServer(pprofServer, slogLogger, 5*time.Second); err != nil {
			logger.WarnContext(context.Background(), "stop pprof server", "error", err)
		}
	}()

	stopPyroscope, err := observability.InitPyroscope(ambientCfg, slogLogger)
	if err != nil {
		logger.ErrorContext(context.Background(), "init pyroscope", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stopPyroscope(); err != nil {
			logger.WarnContext(context.Background(), "stop pyroscope", "error", err)
		}
	}()

	shutdownUptrace, err := observability.InitUptrace(ambientCfg, logger)
	if err != nil {
		logger.ErrorContext(context.Background(), "init uptrace", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownUptrace(shutdownCtx); err != nil {
			logger.WarnContext(context.Background(), "shutdown uptrace", "error", err)
		}
	}()

	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		logger.ErrorContext(context.Background(), "DB_URL is required")
		os.Exit(1)
	}

	snapshot, err := ingestconfig.Load(*configPath)
	if err != nil {
		logger.ErrorContext(context.Background(), "load ingest config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	runtime, closeDB, err := app.NewIngestRuntime(snapshot, dbURL, logger)
	if err != nil {
		logger.ErrorContext(context.Background(), "build ingest runtime", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.WarnContext(context.Background(), "close db", "error", err)
		}
	}()

	runtime.Scheduler.Start()
	logger.InfoContext(context.Background(), "ingest scheduler started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runtime.Scheduler.Stop(shutdownCtx); err != nil {
		logger.ErrorContext(context.Background(), "graceful scheduler shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(context.Background(), "ingest scheduler stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
