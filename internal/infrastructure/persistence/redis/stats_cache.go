package redis

import (
	"context"
	"errors"
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/pkg/circuitbreaker"
)

// StatsCache caches course stats snapshots. With a breaker attached, calls
// fail fast with circuitbreaker.ErrOpen while Redis keeps failing.
type StatsCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewStatsCache creates a StatsCache. A non-positive ttl uses TTLCourseStats.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = TTLCourseStats
	}
	return &StatsCache{cache: cache, ttl: ttl}
}

// WithBreaker guards every call with cb. Misses do not count as failures.
func (s *StatsCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *StatsCache {
	s.breaker = cb
	return s
}

func (s *StatsCache) do(ctx context.Context, fn func(context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Execute(ctx, fn)
}

// GetCourseStats returns found=false on a miss.
func (s *StatsCache) GetCourseStats(ctx context.Context, courseID string) (*stats.CourseStatsSnapshot, bool, error) {
	var snap stats.CourseStatsSnapshot
	found := true
	err := s.do(ctx, func(ctx context.Context) error {
		err := s.cache.Get(ctx, CourseStatsKey(courseID), &snap)
		if errors.Is(err, ErrCacheMiss) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &snap, true, nil
}

// SetCourseStats stores the snapshot under its course id.
func (s *StatsCache) SetCourseStats(ctx context.Context, snap *stats.CourseStatsSnapshot) error {
	if snap == nil {
		return ErrCacheNilValue
	}
	return s.do(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, CourseStatsKey(snap.CourseID), snap, s.ttl)
	})
}

// InvalidateCourseStats drops the course's snapshot. It bypasses the breaker:
// a skipped invalidation would leave a stale snapshot for a full TTL.
func (s *StatsCache) InvalidateCourseStats(ctx context.Context, courseID string) error {
	return s.cache.Delete(ctx, CourseStatsKey(courseID))
}
