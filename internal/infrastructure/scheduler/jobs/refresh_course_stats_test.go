package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fakeActivity struct {
	ids   []string
	since []time.Time
}

func (f *fakeActivity) CourseIDsWithActivitySince(_ context.Context, since time.Time) ([]string, error) {
	f.since = append(f.since, since)
	return f.ids, nil
}

type fakeLister []string

func (f fakeLister) ListIDs(context.Context) ([]string, error) { return f, nil }

type fakeRefresher struct {
	fail      map[string]error
	refreshed []string
}

func (f *fakeRefresher) Handle(_ context.Context, cmd command.RefreshCourseStatsCommand) (*command.RefreshCourseStatsResult, error) {
	if err := f.fail[cmd.CourseID]; err != nil {
		return nil, err
	}
	f.refreshed = append(f.refreshed, cmd.CourseID)
	return &command.RefreshCourseStatsResult{CourseID: cmd.CourseID}, nil
}

func TestRefreshCourseStatsJob_SweepsThenFollowsActivity(t *testing.T) {
	clock := timeutil.NewFixedClock(t0)
	activity := &fakeActivity{ids: []string{"c-2"}}
	refresher := &fakeRefresher{}
	job := NewRefreshCourseStatsJob(activity, fakeLister{"c-1", "c-2", "c-3"}, refresher, clock, nil, DefaultRefreshCourseStatsConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"c-1", "c-2", "c-3"}, refresher.refreshed)
	assert.True(t, job.LastStats().Sweep)
	assert.Empty(t, activity.since)

	clock.Advance(10 * time.Minute)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"c-1", "c-2", "c-3", "c-2"}, refresher.refreshed)
	require.Len(t, activity.since, 1)
	assert.Equal(t, t0.Add(-time.Minute), activity.since[0])
	assert.False(t, job.LastStats().Sweep)
}

func TestRefreshCourseStatsJob_WithoutListerUsesActivity(t *testing.T) {
	activity := &fakeActivity{ids: []string{"c-1"}}
	job := NewRefreshCourseStatsJob(activity, nil, &fakeRefresher{}, timeutil.NewFixedClock(t0), nil, DefaultRefreshCourseStatsConfig())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, activity.since, 1)
	assert.Equal(t, t0.Add(-time.Hour-time.Minute), activity.since[0])
}

func TestRefreshCourseStatsJob_FailureKeepsWatermark(t *testing.T) {
	clock := timeutil.NewFixedClock(t0)
	activity := &fakeActivity{ids: []string{"c-1", "c-2", "c-gone"}}
	refresher := &fakeRefresher{fail: map[string]error{
		"c-1":    errors.New("db down"),
		"c-gone": shared.ErrCourseNotFound,
	}}
	job := NewRefreshCourseStatsJob(activity, nil, refresher, clock, nil, RefreshCourseStatsConfig{})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c-1")

	st := job.LastStats()
	assert.Equal(t, 1, st.Refreshed)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Missing)

	// the next run looks back from the same point again
	clock.Advance(10 * time.Minute)
	_ = job.Run(context.Background())
	require.Len(t, activity.since, 2)
	assert.Equal(t, activity.since[0].Add(10*time.Minute), activity.since[1])
}
