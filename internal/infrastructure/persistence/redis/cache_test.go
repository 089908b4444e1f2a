package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/pkg/circuitbreaker"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "learnhub:course_stats:c-1", CourseStatsKey("c-1"))
	assert.Equal(t, "learnhub:lock:refresh", LockKey("refresh"))
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MaxRetries = -1
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewClient(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

// The cache stores snapshots as JSON; money and percentages must survive it.
func TestCourseStatsSnapshot_JSONRoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	in := stats.CourseStatsSnapshot{
		CourseID:           "c-1",
		TotalStudents:      3,
		AverageRating:      4.5,
		TotalReviews:       2,
		RatingDistribution: [5]int{0, 0, 0, 1, 1},
		MonthlyRevenue: []stats.RevenueBucket{
			{Label: "May 2026", Start: at, End: at.AddDate(0, 0, 30), WindowDays: 30, Revenue: 15000, Enrollments: 3},
		},
		GeneratedAt: at,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out stats.CourseStatsSnapshot
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestStatsCache_BreakerOpensOnUnreachableRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	cb := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithCoolDown(time.Hour))
	sc := NewStatsCache(NewCache(client), time.Minute).WithBreaker(cb)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, found, err := sc.GetCourseStats(ctx, "c-1")
		require.Error(t, err)
		assert.False(t, found)
		assert.False(t, circuitbreaker.IsRejected(err))
	}

	_, _, err := sc.GetCourseStats(ctx, "c-1")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, sc.SetCourseStats(ctx, &stats.CourseStatsSnapshot{CourseID: "c-1"}), circuitbreaker.ErrOpen)
	assert.ErrorIs(t, sc.SetCourseStats(ctx, nil), ErrCacheNilValue)
}
