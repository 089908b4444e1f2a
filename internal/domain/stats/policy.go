package stats

import (
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// Dashboard list sizes.
const (
	RecentEnrollmentsLimit = 5
	RecentReviewsLimit     = 5
	RecentCoursesLimit     = 5
	ContinueLearningLimit  = 3
	RecentUsersLimit       = 5
	TopCoursesLimit        = 5
)

// Policy decides which enrollments count toward student totals, spend,
// average progress and revenue, and how revenue windows are laid out.
// Status breakdowns always report every enrollment.
type Policy struct {
	CountDropped   bool
	CountSuspended bool

	RevenueWindows int
	WindowDays     int
	Location       *time.Location
}

// DefaultPolicy counts every enrollment and reports six 30-day windows in UTC.
func DefaultPolicy() Policy {
	return Policy{
		CountDropped:   true,
		CountSuspended: true,
		RevenueWindows: 6,
		WindowDays:     timeutil.DefaultWindowDays,
		Location:       time.UTC,
	}
}

// Counts reports whether enrollments in status s are included in totals.
func (p Policy) Counts(s enrollment.Status) bool {
	switch s {
	case enrollment.StatusDropped:
		return p.CountDropped
	case enrollment.StatusSuspended:
		return p.CountSuspended
	}
	return true
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
