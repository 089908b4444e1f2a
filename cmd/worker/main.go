// Package main is the entry point of the LearnHub background worker.
//
// The worker keeps derived course data fresh:
//   - reacts to enrollment and review events published on the Redis bus
//   - runs the periodic course stats refresh under a Redis lock, so only one
//     replica works per tick
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/learnhub/learnhub-core/config"
	"github.com/learnhub/learnhub-core/internal/bootstrap"
	"github.com/learnhub/learnhub-core/internal/infrastructure/scheduler"
	"github.com/learnhub/learnhub-core/internal/infrastructure/scheduler/jobs"
	"github.com/learnhub/learnhub-core/pkg/logger"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Observability.LoggerOptions()).With(
		logger.String("app", cfg.App.Name),
		logger.String("process", "worker"),
	)
	log.Info("starting worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("refresh_cron", cfg.Scheduler.RefreshCron),
		logger.String("event_bus", cfg.EventBus.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Infrastructure
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	h := infra.NewHandlers(nil)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Event subscription
	// ─────────────────────────────────────────────────────────────────────────
	// Only the Redis bus carries events from the API; an in-memory bus in
	// this process would never see any.
	if cfg.EventBus.Driver == "redis" {
		bus, err := infra.NewEventBus(false)
		if err != nil {
			return err
		}
		defer func() {
			if err := bus.Close(); err != nil {
				log.Warn("failed to close event bus", logger.Err(err))
			}
		}()

		if err := infra.NewCourseActivityHandler(h).Subscribe(bus); err != nil {
			return fmt.Errorf("subscribe course activity handler: %w", err)
		}
		log.Info("subscribed to course activity events", logger.String("channel", cfg.EventBus.RedisChannel))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Logger = log
		schedCfg.Timezone = cfg.App.Location
		schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
		schedCfg.LockTTL = cfg.Scheduler.LockTTL
		if infra.Cache != nil {
			schedCfg.Locker = infra.Cache
		} else {
			log.Warn("scheduler running without a distributed lock")
		}
		sched := scheduler.New(schedCfg)

		jobCfg := jobs.DefaultRefreshCourseStatsConfig()
		jobCfg.Overlap = cfg.Scheduler.RefreshOverlap
		refresh := jobs.NewRefreshCourseStatsJob(
			h.EnrollmentStore.Enrollments(),
			h.Courses,
			h.RefreshStats,
			timeutil.SystemClock{},
			log,
			jobCfg,
		)
		if err := sched.Register(refresh, cfg.Scheduler.RefreshCron); err != nil {
			return fmt.Errorf("register %s: %w", refresh.Name(), err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("failed to stop scheduler", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	log.Info("worker stopped")
	return nil
}
