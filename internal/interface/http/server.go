// Package http exposes the enrollment and stats operations as a REST API.
// Identity comes from headers set by the upstream permission layer.
package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/learnhub/learnhub-core/config"
	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/application/query"
	"github.com/learnhub/learnhub-core/internal/interface/http/handlers"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the context handed to application handlers.
	RequestTimeout time.Duration

	// BodyLimit - maximum request body size in bytes.
	BodyLimit int

	// Version is reported by health endpoints.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 10 * time.Second,
		BodyLimit:      1 << 20,
		Version:        "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	Enroll           *command.EnrollHandler
	ReportProgress   *command.ReportLessonProgressHandler
	IssueCertificate *command.IssueCertificateHandler
	ChangeStatus     *command.ChangeStatusHandler
	SubmitReview     *command.SubmitReviewHandler

	// Query Handlers (CQRS Read Side)
	Enrollments     *query.EnrollmentsHandler
	CourseStats     *query.CourseStatsHandler
	InstructorStats *query.InstructorStatsHandler
	StudentStats    *query.StudentStatsHandler
	PlatformStats   *query.PlatformStatsHandler

	// Features gates certificate issuance and review submission. Nil
	// enables everything.
	Features *config.FeatureFlags

	HealthChecker handlers.HealthChecker
	Logger        *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config   Config
	deps     Dependencies
	app      *fiber.App
	validate *validator.Validate
	logger   *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(cfg Config, deps Dependencies) *Server {
	s := &Server{
		config:   cfg,
		deps:     deps,
		validate: newValidator(),
		logger:   deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.logger = s.logger.With(logger.Component("http"))
	if s.deps.HealthChecker == nil {
		s.deps.HealthChecker = handlers.NewCompositeHealthChecker(cfg.Version)
	}

	// Immutable: request values end up in events handled after the response.
	s.app = fiber.New(fiber.Config{
		AppName:               "learnhub-core",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
		Immutable:             true,
	})

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// App exposes the fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ready", s.handleReady)
	s.app.Get("/live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1
	// ─────────────────────────────────────────────────────────────────────────
	v1 := s.app.Group("/api/v1", s.identityMiddleware)

	v1.Post("/courses/:courseId/enroll", s.handleEnroll)
	v1.Post("/courses/:courseId/reviews", s.handleSubmitReview)
	v1.Get("/courses/:courseId/stats", s.handleCourseStats)

	v1.Get("/enrollments", s.handleListEnrollments)
	v1.Get("/enrollments/:id", s.handleGetEnrollment)
	v1.Post("/enrollments/:id/lessons/:lessonId/progress", s.handleReportProgress)
	v1.Post("/enrollments/:id/certificate", s.handleIssueCertificate)
	v1.Patch("/enrollments/:id/status", s.handleChangeStatus)

	v1.Get("/dashboard/instructor", s.handleInstructorDashboard)
	v1.Get("/dashboard/student", s.handleStudentDashboard)
	v1.Get("/dashboard/admin", s.handleAdminDashboard)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.app.Listen(s.config.Address()); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}
