// Package query contains read operations (CQRS - Queries).
//
// Dashboard queries compute their rollups on demand inside one read-only
// snapshot, so every number in a response is taken from the same instant.
package query

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INSTRUCTOR STATS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// InstructorStatsQuery asks for one instructor's dashboard.
type InstructorStatsQuery struct {
	InstructorID string
}

// Validate validates the query.
func (q InstructorStatsQuery) Validate() error {
	if q.InstructorID == "" {
		return shared.NewDomainError("query", "InstructorStats", shared.ErrValidation, "instructor_id is required")
	}
	return nil
}

// InstructorStatsHandler handles InstructorStatsQuery.
type InstructorStatsHandler struct {
	snapshots stats.SnapshotSource
	policy    stats.Policy
	clock     timeutil.Clock
}

// NewInstructorStatsHandler creates a new InstructorStatsHandler.
func NewInstructorStatsHandler(snapshots stats.SnapshotSource, policy stats.Policy, clock timeutil.Clock) *InstructorStatsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &InstructorStatsHandler{snapshots: snapshots, policy: policy, clock: clock}
}

// Handle executes the query. An instructor without courses gets a zeroed
// dashboard with six empty revenue buckets.
func (h *InstructorStatsHandler) Handle(ctx context.Context, q InstructorStatsQuery) (*stats.InstructorDashboard, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	in := stats.InstructorInput{InstructorID: q.InstructorID, Now: h.clock.Now()}
	err := h.snapshots.ReadSnapshot(ctx, func(ctx context.Context, r stats.SnapshotReader) error {
		var err error
		if in.Courses, err = r.CoursesByInstructor(ctx, q.InstructorID); err != nil {
			return err
		}
		ids := make([]string, len(in.Courses))
		for i, c := range in.Courses {
			ids[i] = c.ID
		}
		if in.Enrollments, err = r.EnrollmentsForCourses(ctx, ids); err != nil {
			return err
		}
		in.Reviews, err = r.ReviewsForCourses(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("instructor_stats: %w", err)
	}

	d := stats.BuildInstructorDashboard(in, h.policy)
	return &d, nil
}
