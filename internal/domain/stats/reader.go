// Package stats computes the read-only rollups behind the instructor, student,
// platform and course dashboards. Rollups are pure functions over rows read
// through a SnapshotReader; handlers in the application layer scope each
// dashboard to one snapshot so all of its numbers agree with each other.
package stats

import (
	"context"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/user"
)

// SnapshotReader reads primary rows from one consistent snapshot.
type SnapshotReader interface {
	// Course returns ErrCourseNotFound if missing.
	Course(ctx context.Context, courseID string) (*course.Course, error)
	CoursesByInstructor(ctx context.Context, instructorID string) ([]*course.Course, error)
	CoursesByIDs(ctx context.Context, ids []string) ([]*course.Course, error)

	EnrollmentsForCourses(ctx context.Context, courseIDs []string) ([]*enrollment.Enrollment, error)
	EnrollmentsForStudent(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error)

	// ReviewsForCourses returns every review of the given courses, approved or not.
	ReviewsForCourses(ctx context.Context, courseIDs []string) ([]*review.Review, error)

	PlatformCounts(ctx context.Context) (PlatformCounts, error)
	RecentUsers(ctx context.Context, limit int) ([]user.User, error)
	RecentCourses(ctx context.Context, limit int) ([]*course.Course, error)

	// TopCourses ranks published courses by enrollment count desc, then
	// created_at asc, then id asc.
	TopCourses(ctx context.Context, limit int) ([]CourseEnrollmentCount, error)
}

// SnapshotSource opens snapshots. fn must not retain r after it returns.
type SnapshotSource interface {
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r SnapshotReader) error) error
}

// PlatformCounts are the grouped counters of the admin dashboard as stored.
// The counting policy is applied afterwards by BuildPlatformDashboard.
type PlatformCounts struct {
	UsersByType         map[user.Type]int
	CoursesByStatus     map[course.Status]int
	EnrollmentsByStatus map[enrollment.Status]int
	RevenueByStatus     map[enrollment.Status]shared.Money
	TotalReviews        int
}

// CourseEnrollmentCount is one row of the top courses ranking.
type CourseEnrollmentCount struct {
	Course      *course.Course
	Enrollments int
}
