package query

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/pkg/logger"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// CourseStatsCache stores computed course snapshots for a bounded time.
type CourseStatsCache interface {
	// GetCourseStats returns found=false on a miss.
	GetCourseStats(ctx context.Context, courseID string) (snap *stats.CourseStatsSnapshot, found bool, err error)
	SetCourseStats(ctx context.Context, snap *stats.CourseStatsSnapshot) error
	InvalidateCourseStats(ctx context.Context, courseID string) error
}

// CourseStatsQuery asks for one course's stats.
type CourseStatsQuery struct {
	CourseID string

	// BypassCache forces a recompute.
	BypassCache bool
}

// Validate validates the query.
func (q CourseStatsQuery) Validate() error {
	if q.CourseID == "" {
		return shared.NewDomainError("query", "CourseStats", shared.ErrValidation, "course_id is required")
	}
	return nil
}

// CourseStatsHandlerConfig configures CourseStatsHandler.
type CourseStatsHandlerConfig struct {
	Policy stats.Policy
	Clock  timeutil.Clock

	// CacheEnabled is consulted on every call; nil means enabled.
	CacheEnabled func() bool
}

// CourseStatsHandler serves course snapshots, from cache when possible.
type CourseStatsHandler struct {
	snapshots stats.SnapshotSource
	cache     CourseStatsCache
	log       *logger.Logger
	config    CourseStatsHandlerConfig
}

// NewCourseStatsHandler creates a new CourseStatsHandler. cache may be nil.
func NewCourseStatsHandler(snapshots stats.SnapshotSource, cache CourseStatsCache, log *logger.Logger, config CourseStatsHandlerConfig) *CourseStatsHandler {
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CourseStatsHandler{
		snapshots: snapshots,
		cache:     cache,
		log:       log.With(logger.Component("course_stats")),
		config:    config,
	}
}

func (h *CourseStatsHandler) cacheOn() bool {
	if h.cache == nil {
		return false
	}
	return h.config.CacheEnabled == nil || h.config.CacheEnabled()
}

// Handle executes the query. Cache failures degrade to a direct computation.
func (h *CourseStatsHandler) Handle(ctx context.Context, q CourseStatsQuery) (*stats.CourseStatsSnapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	useCache := h.cacheOn()
	if useCache && !q.BypassCache {
		snap, found, err := h.cache.GetCourseStats(ctx, q.CourseID)
		switch {
		case err != nil:
			h.log.Warn("course stats cache read failed", logger.CourseID(q.CourseID), logger.Err(err))
		case found:
			return snap, nil
		}
	}

	in := stats.CourseInput{Now: h.config.Clock.Now()}
	err := h.snapshots.ReadSnapshot(ctx, func(ctx context.Context, r stats.SnapshotReader) error {
		var err error
		if in.Course, err = r.Course(ctx, q.CourseID); err != nil {
			return err
		}
		ids := []string{in.Course.ID}
		if in.Enrollments, err = r.EnrollmentsForCourses(ctx, ids); err != nil {
			return err
		}
		in.Reviews, err = r.ReviewsForCourses(ctx, ids)
		return err
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("course_stats: %w", err)
	}

	snap := stats.BuildCourseStats(in, h.config.Policy)
	if useCache {
		if err := h.cache.SetCourseStats(ctx, &snap); err != nil {
			h.log.Warn("course stats cache write failed", logger.CourseID(q.CourseID), logger.Err(err))
		}
	}
	return &snap, nil
}
