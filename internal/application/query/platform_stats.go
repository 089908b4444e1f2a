package query

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// PlatformStatsHandler builds the admin dashboard.
type PlatformStatsHandler struct {
	snapshots stats.SnapshotSource
	policy    stats.Policy
	clock     timeutil.Clock
}

// NewPlatformStatsHandler creates a new PlatformStatsHandler.
func NewPlatformStatsHandler(snapshots stats.SnapshotSource, policy stats.Policy, clock timeutil.Clock) *PlatformStatsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &PlatformStatsHandler{snapshots: snapshots, policy: policy, clock: clock}
}

// Handle executes the query.
func (h *PlatformStatsHandler) Handle(ctx context.Context) (*stats.PlatformDashboard, error) {
	in := stats.PlatformInput{Now: h.clock.Now()}
	err := h.snapshots.ReadSnapshot(ctx, func(ctx context.Context, r stats.SnapshotReader) error {
		var err error
		if in.Counts, err = r.PlatformCounts(ctx); err != nil {
			return err
		}
		if in.RecentUsers, err = r.RecentUsers(ctx, stats.RecentUsersLimit); err != nil {
			return err
		}
		if in.RecentCourses, err = r.RecentCourses(ctx, stats.RecentCoursesLimit); err != nil {
			return err
		}
		in.TopCourses, err = r.TopCourses(ctx, stats.TopCoursesLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("platform_stats: %w", err)
	}

	d := stats.BuildPlatformDashboard(in, h.policy)
	return &d, nil
}
