// Package main is the entry point of the LearnHub enrollment and stats API.
//
// The API serves enrollment writes and dashboard reads. With the Redis event
// bus it only forwards events and cmd/worker reacts to them; with the
// in-memory bus the API subscribes the course activity handler itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/learnhub/learnhub-core/config"
	"github.com/learnhub/learnhub-core/internal/bootstrap"
	httpserver "github.com/learnhub/learnhub-core/internal/interface/http"
	"github.com/learnhub/learnhub-core/internal/interface/http/handlers"
	"github.com/learnhub/learnhub-core/pkg/logger"
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
		logger.String("process", "api"),
	)
	log.Info("starting api",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
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

	bus, err := infra.NewEventBus(true)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("failed to close event bus", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	h := infra.NewHandlers(bus)

	if cfg.EventBus.Driver != "redis" {
		if err := infra.NewCourseActivityHandler(h).Subscribe(bus); err != nil {
			return fmt.Errorf("subscribe course activity handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	infra.RegisterHealthChecks(health)

	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	serverCfg.BodyLimit = cfg.HTTP.BodyLimit
	serverCfg.Version = cfg.App.Version

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		Enroll:           h.Enroll,
		ReportProgress:   h.ReportProgress,
		IssueCertificate: h.IssueCertificate,
		ChangeStatus:     h.ChangeStatus,
		SubmitReview:     h.SubmitReview,
		Enrollments:      h.Enrollments,
		CourseStats:      h.CourseStats,
		InstructorStats:  h.InstructorStats,
		StudentStats:     h.StudentStats,
		PlatformStats:    h.PlatformStats,
		Features:         cfg.Features,
		HealthChecker:    health,
		Logger:           log,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed")
	return nil
}
