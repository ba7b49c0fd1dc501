// Command waved runs the Wavefront execution daemon: the scheduler, its
// storage backends, and the HTTP control API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/wavefront/internal/config"
	"github.com/example/wavefront/internal/events"
	"github.com/example/wavefront/internal/executor"
	"github.com/example/wavefront/internal/objectstore"
	"github.com/example/wavefront/internal/observability"
	"github.com/example/wavefront/internal/scheduler"
	"github.com/example/wavefront/internal/storage"
	"github.com/example/wavefront/internal/storage/sqlite"
	"github.com/example/wavefront/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	logger.Info("initializing sqlite storage", "path", cfg.Storage.SQLitePath)
	store, err := sqlite.New(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return err
	}

	sqliteStore := sqlite.NewStore(store)

	var artifacts storage.ArtifactStore = sqliteStore
	if cfg.Storage.Backend == "minio" {
		logger.Info("initializing object store", "endpoint", cfg.ObjectStore.Endpoint, "bucket", cfg.ObjectStore.Bucket)
		objStore, err := objectstore.New(cfg.ObjectStore)
		if err != nil {
			return err
		}
		if err := objStore.EnsureBucket(context.Background()); err != nil {
			return err
		}
		artifacts = objStore
	}

	var exec executor.Executor
	var validator executor.Validator
	switch cfg.Executor.Mode {
	case "remote":
		logger.Info("using remote executor", "addr", cfg.Executor.RemoteAddr)
		runner, err := executor.NewRemoteRunner(cfg.Executor.RemoteAddr)
		if err != nil {
			return err
		}
		defer runner.Close()
		exec, validator = runner, runner
	default:
		mockCfg := executor.MockConfig{
			ExecutionPassProbability:  cfg.Mock.ExecutionPassProbability,
			ValidationPassProbability: cfg.Mock.ValidationPassProbability,
			ExecutionLatency:          cfg.Mock.ExecutionLatency.Std(),
			ChunkDelay:                cfg.Mock.ChunkDelay.Std(),
		}
		exec = executor.NewMockExecutor(mockCfg)
		validator = executor.NewMockValidator(mockCfg)
	}

	broadcaster := events.NewBroadcaster()

	sched := scheduler.New(scheduler.Config{
		Capacity:             cfg.Scheduler.Capacity,
		MaxFailures:          cfg.Scheduler.MaxFailures,
		SlotRetryLimit:       cfg.Scheduler.SlotRetryLimit,
		SlotBackoffBase:      cfg.Scheduler.SlotBackoffBase.Std(),
		SlotBackoffStep:      cfg.Scheduler.SlotBackoffStep.Std(),
		SlotBackoffMax:       cfg.Scheduler.SlotBackoffMax.Std(),
		FailureBackoff:       cfg.Scheduler.FailureBackoff.Std(),
		SlotFailedHold:       cfg.Scheduler.SlotFailedHold.Std(),
		CompatSaturationDone: cfg.Scheduler.CompatSaturationDone,
	}, scheduler.Deps{
		Logger:    logger,
		Metrics:   metrics,
		Artifacts: artifacts,
		Snapshots: sqliteStore,
		Reports:   sqliteStore,
		Executor:  exec,
		Validator: validator,
		Notifier:  broadcaster,
	})

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics)
		logger.Info("starting metrics server", "addr", cfg.Server.MetricsAddr)
		if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	webServer := web.NewServer(cfg.Server.HTTPAddr, sched, store, broadcaster, logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", "addr", cfg.Server.HTTPAddr)
		if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	if err := sched.Stop(); err == nil {
		<-sched.Done()
	}
	return nil
}
