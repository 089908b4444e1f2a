// Package bootstrap opens the infrastructure shared by cmd/api and cmd/worker
// and wires the application handlers on top of it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/learnhub/learnhub-core/config"
	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/application/eventhandler"
	"github.com/learnhub/learnhub-core/internal/application/query"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/infrastructure/messaging"
	"github.com/learnhub/learnhub-core/internal/infrastructure/persistence/postgres"
	rediscache "github.com/learnhub/learnhub-core/internal/infrastructure/persistence/redis"
	"github.com/learnhub/learnhub-core/internal/interface/http/handlers"
	"github.com/learnhub/learnhub-core/pkg/circuitbreaker"
	"github.com/learnhub/learnhub-core/pkg/logger"
	"github.com/learnhub/learnhub-core/pkg/retry"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// EventBus is a bus that owns background resources.
type EventBus interface {
	shared.EventBus
	Close() error
}

// Infra holds the open connections of one process.
type Infra struct {
	Config *config.Config
	Log    *logger.Logger

	DB *postgres.Connection

	// Redis, Cache and StatsCache are nil when Redis is disabled or was
	// unreachable and nothing requires it.
	Redis      *goredis.Client
	Cache      *rediscache.Cache
	StatsCache *rediscache.StatsCache
}

// Open connects to postgres, applies migrations when configured and connects
// to Redis. Postgres is required. Redis is required only by the Redis event
// bus; otherwise an unreachable Redis disables the stats cache.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infra, error) {
	infra := &Infra{Config: cfg, Log: log}

	policy := retry.StartupPolicy(cfg.Database.StartupAttempts)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("dependency not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}

	log.Info("connecting to database")
	db, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, cfg.Database.PostgresConfig())
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	infra.DB = db

	if cfg.Database.AutoMigrate {
		if err := migrate(ctx, db, log); err != nil {
			infra.Close()
			return nil, err
		}
	}

	if cfg.Redis.Disabled {
		log.Info("redis disabled")
		return infra, nil
	}

	log.Info("connecting to redis")
	client, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*goredis.Client, error) {
		return rediscache.NewClient(ctx, cfg.Redis.CacheConfig())
	})
	if err != nil {
		if cfg.EventBus.Driver == "redis" {
			infra.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Warn("redis unavailable, stats cache disabled", logger.Err(err))
		return infra, nil
	}

	infra.Redis = client
	infra.Cache = rediscache.NewCache(client)
	infra.StatsCache = rediscache.NewStatsCache(infra.Cache, cfg.Stats.CacheTTL).
		WithBreaker(circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}))
	return infra, nil
}

func migrate(ctx context.Context, db *postgres.Connection, log *logger.Logger) error {
	log.Info("running database migrations")
	m := postgres.NewMigrator(db)
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	status, err := m.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", logger.Err(err))
		return nil
	}
	applied := 0
	for _, mg := range status {
		if mg.IsApplied {
			applied++
		}
	}
	log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
	return nil
}

// Close releases every open connection.
func (i *Infra) Close() {
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.Log.Warn("failed to close redis", logger.Err(err))
		}
	}
	if i.DB != nil {
		i.Log.Info("closing database connection")
		i.DB.Close()
	}
}

// NewEventBus builds the configured bus. remoteOnly makes a Redis bus
// forward events without running local handlers.
func (i *Infra) NewEventBus(remoteOnly bool) (EventBus, error) {
	local := messaging.InMemoryEventBusConfig{
		AsyncMode:      i.Config.EventBus.Async,
		WorkerPoolSize: i.Config.EventBus.Workers,
		Logger:         i.Log,
		EnableMetrics:  true,
	}

	switch i.Config.EventBus.Driver {
	case "redis":
		if i.Redis == nil {
			return nil, errors.New("redis event bus requires redis")
		}
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(i.Redis),
			ChannelName:    i.Config.EventBus.RedisChannel,
			RemoteOnly:     remoteOnly,
			LocalBusConfig: local,
			Logger:         i.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("redis event bus: %w", err)
		}
		return bus, nil
	default:
		return messaging.NewInMemoryEventBus(local), nil
	}
}

// RegisterHealthChecks adds postgres as a required check and Redis, when
// connected, as an optional one.
func (i *Infra) RegisterHealthChecks(hc *handlers.CompositeHealthChecker) {
	hc.AddCheck("postgres", handlers.PingCheck(i.DB))
	if i.Cache != nil {
		hc.AddOptionalCheck("redis", handlers.PingCheck(i.Cache))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// Handlers are the application handlers bound to postgres.
type Handlers struct {
	Enroll           *command.EnrollHandler
	ReportProgress   *command.ReportLessonProgressHandler
	IssueCertificate *command.IssueCertificateHandler
	ChangeStatus     *command.ChangeStatusHandler
	SubmitReview     *command.SubmitReviewHandler
	RefreshStats     *command.RefreshCourseStatsHandler

	Enrollments     *query.EnrollmentsHandler
	CourseStats     *query.CourseStatsHandler
	InstructorStats *query.InstructorStatsHandler
	StudentStats    *query.StudentStatsHandler
	PlatformStats   *query.PlatformStatsHandler

	// Repositories used by the worker.
	EnrollmentStore *postgres.EnrollmentStore
	Courses         *postgres.CourseRepository
}

// NewHandlers wires every handler. publisher may be nil.
func (i *Infra) NewHandlers(publisher shared.EventPublisher) *Handlers {
	clock := timeutil.SystemClock{}
	policy := i.Config.Stats.Policy()
	features := i.Config.Features

	store := postgres.NewEnrollmentStore(i.DB)
	courses := postgres.NewCourseRepository(i.DB)
	reviews := postgres.NewReviewRepository(i.DB)
	snapshots := postgres.NewSnapshotSource(i.DB)

	opts := command.Options{Clock: clock, Publisher: publisher, Logger: i.Log}

	var cache query.CourseStatsCache
	if i.StatsCache != nil {
		cache = i.StatsCache
	}

	return &Handlers{
		Enroll:           command.NewEnrollHandler(store, courses, opts),
		ReportProgress:   command.NewReportLessonProgressHandler(store, courses, opts),
		IssueCertificate: command.NewIssueCertificateHandler(store, opts),
		ChangeStatus:     command.NewChangeStatusHandler(store, opts),
		SubmitReview:     command.NewSubmitReviewHandler(store.Enrollments(), reviews, opts),
		RefreshStats:     command.NewRefreshCourseStatsHandler(snapshots, courses, policy, opts),

		Enrollments: query.NewEnrollmentsHandler(store),
		CourseStats: query.NewCourseStatsHandler(snapshots, cache, i.Log, query.CourseStatsHandlerConfig{
			Policy:       policy,
			Clock:        clock,
			CacheEnabled: features.Checker(config.FeatureStatsCache),
		}),
		InstructorStats: query.NewInstructorStatsHandler(snapshots, policy, clock),
		StudentStats:    query.NewStudentStatsHandler(snapshots, policy, clock),
		PlatformStats:   query.NewPlatformStatsHandler(snapshots, policy, clock),

		EnrollmentStore: store,
		Courses:         courses,
	}
}

// NewCourseActivityHandler builds the event handler that invalidates and
// recomputes course data after enrollment and review events.
func (i *Infra) NewCourseActivityHandler(h *Handlers) *eventhandler.OnCourseActivityHandler {
	var invalidator eventhandler.CacheInvalidator
	if i.StatsCache != nil {
		invalidator = i.StatsCache
	}

	cfg := eventhandler.DefaultCourseActivityConfig()
	cfg.RefreshEnabled = i.Config.Features.Checker(config.FeatureAsyncCourseRefresh)
	return eventhandler.NewOnCourseActivityHandler(h.RefreshStats, invalidator, i.Log, cfg)
}
