// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH COURSE STATS JOB
// Recomputes cached course and instructor counters for every course that saw
// enrollment or review activity since the previous successful run. The first
// run after start sweeps all courses, so counters left stale by lost events
// are repaired after a worker restart.
// ══════════════════════════════════════════════════════════════════════════════

// ActivitySource lists the courses touched since a point in time.
type ActivitySource interface {
	CourseIDsWithActivitySince(ctx context.Context, since time.Time) ([]string, error)
}

// CourseLister lists every course id.
type CourseLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// CourseRefresher recomputes one course.
type CourseRefresher interface {
	Handle(ctx context.Context, cmd command.RefreshCourseStatsCommand) (*command.RefreshCourseStatsResult, error)
}

// RefreshCourseStatsConfig configures the job.
type RefreshCourseStatsConfig struct {
	// Overlap is subtracted from the watermark so writes committed around
	// the previous run's start are not missed.
	Overlap time.Duration

	// SweepOnFirstRun refreshes every course on the first run.
	SweepOnFirstRun bool
}

// DefaultRefreshCourseStatsConfig returns the default configuration.
func DefaultRefreshCourseStatsConfig() RefreshCourseStatsConfig {
	return RefreshCourseStatsConfig{Overlap: time.Minute, SweepOnFirstRun: true}
}

// RefreshStats summarizes one run.
type RefreshStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Sweep     bool
	Courses   int
	Refreshed int
	Missing   int
	Failed    int
}

// RefreshCourseStatsJob implements scheduler.Job.
type RefreshCourseStatsJob struct {
	activity  ActivitySource
	courses   CourseLister
	refresher CourseRefresher
	clock     timeutil.Clock
	log       *logger.Logger
	config    RefreshCourseStatsConfig

	mu        sync.Mutex
	watermark time.Time
	last      *RefreshStats
}

// NewRefreshCourseStatsJob creates the job. courses may be nil, which turns
// the first-run sweep off.
func NewRefreshCourseStatsJob(
	activity ActivitySource,
	courses CourseLister,
	refresher CourseRefresher,
	clock timeutil.Clock,
	log *logger.Logger,
	config RefreshCourseStatsConfig,
) *RefreshCourseStatsJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if courses == nil {
		config.SweepOnFirstRun = false
	}
	return &RefreshCourseStatsJob{
		activity:  activity,
		courses:   courses,
		refresher: refresher,
		clock:     clock,
		log:       log.With(logger.Component("refresh_course_stats_job")),
		config:    config,
	}
}

// Name returns the job name.
func (j *RefreshCourseStatsJob) Name() string {
	return "refresh_course_stats"
}

// Description returns a human-readable description.
func (j *RefreshCourseStatsJob) Description() string {
	return "Recomputes cached course and instructor counters for recently active courses"
}

// LastStats returns the summary of the previous run, nil before the first.
func (j *RefreshCourseStatsJob) LastStats() *RefreshStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Run refreshes the affected courses. A course that fails does not stop the
// others; the watermark only advances when every course succeeded.
func (j *RefreshCourseStatsJob) Run(ctx context.Context) error {
	startedAt := j.clock.Now()
	st := &RefreshStats{StartedAt: startedAt}

	j.mu.Lock()
	watermark := j.watermark
	j.mu.Unlock()

	ids, sweep, err := j.targets(ctx, watermark)
	if err != nil {
		return err
	}
	st.Sweep = sweep
	st.Courses = len(ids)

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := j.refresher.Handle(ctx, command.RefreshCourseStatsCommand{CourseID: id})
		switch {
		case err == nil:
			st.Refreshed++
		case shared.IsNotFound(err):
			st.Missing++
			j.log.Warn("course vanished before refresh", logger.CourseID(id))
		default:
			st.Failed++
			errs = append(errs, fmt.Errorf("course %s: %w", id, err))
			j.log.Error("course refresh failed", logger.CourseID(id), logger.Err(err))
		}
	}
	st.Duration = j.clock.Now().Sub(startedAt)

	j.mu.Lock()
	j.last = st
	if len(errs) == 0 {
		j.watermark = startedAt
	}
	j.mu.Unlock()

	j.log.Info("course stats refresh finished",
		logger.Bool("sweep", st.Sweep),
		logger.Int("courses", st.Courses),
		logger.Int("refreshed", st.Refreshed),
		logger.Int("failed", st.Failed),
		logger.Duration("duration", st.Duration),
	)

	if len(errs) > 0 {
		return fmt.Errorf("refresh completed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (j *RefreshCourseStatsJob) targets(ctx context.Context, watermark time.Time) ([]string, bool, error) {
	if watermark.IsZero() && j.config.SweepOnFirstRun {
		ids, err := j.courses.ListIDs(ctx)
		if err != nil {
			return nil, true, fmt.Errorf("failed to list courses: %w", err)
		}
		return ids, true, nil
	}

	since := watermark
	if since.IsZero() {
		since = j.clock.Now().Add(-time.Hour)
	}
	ids, err := j.activity.CourseIDsWithActivitySince(ctx, since.Add(-j.config.Overlap))
	if err != nil {
		return nil, false, fmt.Errorf("failed to list active courses: %w", err)
	}
	return ids, false, nil
}
