package query

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// StudentStatsQuery asks for one student's dashboard.
type StudentStatsQuery struct {
	StudentID string
}

// Validate validates the query.
func (q StudentStatsQuery) Validate() error {
	if q.StudentID == "" {
		return shared.NewDomainError("query", "StudentStats", shared.ErrValidation, "student_id is required")
	}
	return nil
}

// StudentStatsHandler handles StudentStatsQuery.
type StudentStatsHandler struct {
	snapshots stats.SnapshotSource
	policy    stats.Policy
	clock     timeutil.Clock
}

// NewStudentStatsHandler creates a new StudentStatsHandler.
func NewStudentStatsHandler(snapshots stats.SnapshotSource, policy stats.Policy, clock timeutil.Clock) *StudentStatsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &StudentStatsHandler{snapshots: snapshots, policy: policy, clock: clock}
}

// Handle executes the query.
func (h *StudentStatsHandler) Handle(ctx context.Context, q StudentStatsQuery) (*stats.StudentDashboard, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	in := stats.StudentInput{StudentID: q.StudentID, Now: h.clock.Now()}
	err := h.snapshots.ReadSnapshot(ctx, func(ctx context.Context, r stats.SnapshotReader) error {
		var err error
		if in.Enrollments, err = r.EnrollmentsForStudent(ctx, q.StudentID); err != nil {
			return err
		}
		ids := make([]string, len(in.Enrollments))
		for i, e := range in.Enrollments {
			ids[i] = e.CourseID
		}
		in.Courses, err = r.CoursesByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("student_stats: %w", err)
	}

	d := stats.BuildStudentDashboard(in, h.policy)
	return &d, nil
}
