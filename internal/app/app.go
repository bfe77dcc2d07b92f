// Package app wires configuration, the two external collaborators, and the
// domain packages into a runnable process. Run dispatches on cfg.Mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sentineldb/siemcore/internal/config"
	"github.com/sentineldb/siemcore/internal/httpserver"
	"github.com/sentineldb/siemcore/internal/platform"
	"github.com/sentineldb/siemcore/internal/telemetry"
	"github.com/sentineldb/siemcore/pkg/alert"
	"github.com/sentineldb/siemcore/pkg/coordgateway"
	"github.com/sentineldb/siemcore/pkg/evaluator"
	"github.com/sentineldb/siemcore/pkg/idempotency"
	"github.com/sentineldb/siemcore/pkg/intake"
	"github.com/sentineldb/siemcore/pkg/intel"
	"github.com/sentineldb/siemcore/pkg/parser"
	"github.com/sentineldb/siemcore/pkg/rule"
	"github.com/sentineldb/siemcore/pkg/scheduler"
	"github.com/sentineldb/siemcore/pkg/storegateway"
)

const intelRefreshInterval = 60 * time.Second

// Run is the process entry point: it reads config, dials the store and
// coordination gateways, and starts one of the two run modes.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting siemcore", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	store := storegateway.NewGateway(storegateway.New(storegateway.Config{
		BaseURL:       cfg.StoreURL,
		Database:      cfg.StoreDB,
		User:          cfg.StoreUser,
		Password:      cfg.StorePassword,
		FailThreshold: cfg.CircuitFailThreshold,
		CooldownMs:    cfg.CircuitCooldownMS,
		// RequestTimeout/InsertTimeout left zero: Client.New applies the
		// spec-mandated 5s read / 15s insert defaults.
	}))

	rdb, err := platform.NewRedisClient(ctx, cfg.CoordURL)
	if err != nil {
		return fmt.Errorf("connecting to coordination store: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis client", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, store, rdb, metricsReg)
	case "scheduler":
		return runScheduler(ctx, cfg, logger, store, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *storegateway.Gateway, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	registry := parser.NewRegistry(nil)

	intelSet := intel.NewSet(store)
	if err := intelSet.Refresh(ctx); err != nil {
		logger.Warn("initial threat-intel refresh failed, continuing with an empty snapshot", "error", err)
	}
	go intelSet.Run(ctx, intelRefreshInterval, func(err error) {
		logger.Error("refreshing threat-intel snapshot", "error", err)
	})

	hotCache := coordgateway.NewHotCache(rdb)
	idemp := idempotency.NewEngine(store, hotCache)
	limiter := coordgateway.NewRateLimiter(rdb)
	stream := coordgateway.NewStream(rdb)

	pipeline := intake.NewPipeline(store, registry, intelSet, logger)
	intakeHandler := intake.NewHandler(pipeline, idemp, limiter, cfg.DefaultRateEPS, cfg.DefaultBurstEPS, cfg.IngestWorkers, cfg.IngestQueueLen, logger)

	ruleHandler := rule.NewHandler(store, logger)
	alertHandler := alert.NewHandler(store, stream, stream, logger)

	ev := evaluator.NewEvaluator(store, store)
	sched := scheduler.NewScheduler(store, coordgateway.NewLockManager(rdb), ev, cfg.SchedulerWorkers, tickInterval(cfg), logger)
	schedulerHandler := scheduler.NewHandler(sched)

	srv := httpserver.NewServer(httpserver.Config{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger, store, coordgateway.NewPinger(rdb), metricsReg)

	intakeHandler.Mount(srv.APIRouter)
	ruleHandler.Mount(srv.APIRouter)
	alertHandler.Mount(srv.APIRouter)
	schedulerHandler.Mount(srv.APIRouter)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *storegateway.Gateway, rdb *redis.Client) error {
	ev := evaluator.NewEvaluator(store, store)
	sched := scheduler.NewScheduler(store, coordgateway.NewLockManager(rdb), ev, cfg.SchedulerWorkers, tickInterval(cfg), logger)

	logger.Info("scheduler started", "workers", cfg.SchedulerWorkers, "tick_ms", cfg.TickIntervalMS)
	sched.Run(ctx)
	return nil
}

func tickInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.TickIntervalMS) * time.Millisecond
}
