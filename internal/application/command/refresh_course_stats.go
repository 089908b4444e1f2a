package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH COURSE STATS COMMAND
// Recomputes the cached counters of a course and of its instructor's profile
// from primary rows. Running it twice writes the same values.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshCourseStatsCommand identifies the course to refresh.
type RefreshCourseStatsCommand struct {
	CourseID string
}

// Validate validates the command.
func (c RefreshCourseStatsCommand) Validate() error {
	return required("RefreshCourseStats", "course_id", c.CourseID)
}

// RefreshCourseStatsResult contains the values written.
type RefreshCourseStatsResult struct {
	CourseID string
	Course   course.CachedStats
	Profile  course.InstructorProfile
}

// RefreshCourseStatsHandler handles the RefreshCourseStatsCommand.
type RefreshCourseStatsHandler struct {
	snapshots stats.SnapshotSource
	courses   course.Repository
	policy    stats.Policy
	opts      Options
}

// NewRefreshCourseStatsHandler creates a new RefreshCourseStatsHandler.
func NewRefreshCourseStatsHandler(snapshots stats.SnapshotSource, courses course.Repository, policy stats.Policy, opts Options) *RefreshCourseStatsHandler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(logger.Component("refresh_course_stats"))
	return &RefreshCourseStatsHandler{snapshots: snapshots, courses: courses, policy: policy, opts: opts}
}

// Handle executes the command.
func (h *RefreshCourseStatsHandler) Handle(ctx context.Context, cmd RefreshCourseStatsCommand) (*RefreshCourseStatsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.opts.Clock.Now()
	result := RefreshCourseStatsResult{CourseID: cmd.CourseID}

	err := h.snapshots.ReadSnapshot(ctx, func(ctx context.Context, r stats.SnapshotReader) error {
		c, err := r.Course(ctx, cmd.CourseID)
		if err != nil {
			return err
		}

		enrollments, err := r.EnrollmentsForCourses(ctx, []string{c.ID})
		if err != nil {
			return err
		}
		reviews, err := r.ReviewsForCourses(ctx, []string{c.ID})
		if err != nil {
			return err
		}
		result.Course = stats.CachedCourseStats(enrollments, reviews, h.policy)

		owned, err := r.CoursesByInstructor(ctx, c.InstructorID)
		if err != nil {
			return err
		}
		ids := make([]string, len(owned))
		for i, oc := range owned {
			ids[i] = oc.ID
		}
		allEnrollments, err := r.EnrollmentsForCourses(ctx, ids)
		if err != nil {
			return err
		}
		allReviews, err := r.ReviewsForCourses(ctx, ids)
		if err != nil {
			return err
		}
		result.Profile = stats.InstructorProfileStats(c.InstructorID, owned, allEnrollments, allReviews, h.policy, now)
		return nil
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("refresh_course_stats: read snapshot: %w", err)
	}

	if err := h.courses.SaveCachedStats(ctx, cmd.CourseID, result.Course); err != nil {
		return nil, fmt.Errorf("refresh_course_stats: save course: %w", err)
	}
	if err := h.courses.SaveInstructorProfile(ctx, result.Profile); err != nil {
		return nil, fmt.Errorf("refresh_course_stats: save profile: %w", err)
	}

	h.opts.Logger.Debug("course stats refreshed",
		logger.CourseID(cmd.CourseID),
		logger.InstructorID(result.Profile.UserID),
		logger.Int("total_students", result.Course.TotalStudents),
		logger.Int("total_reviews", result.Course.TotalReviews),
	)
	publish(h.opts.Publisher, h.opts.Logger,
		shared.NewCourseStatsRefreshedEvent(cmd.CourseID, result.Course.TotalStudents, result.Course.TotalReviews, now))

	return &result, nil
}
