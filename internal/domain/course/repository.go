package course

import (
	"context"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// StructureProvider answers the questions the enrollment ledger asks about a
// course. It is backed by the catalog tables.
type StructureProvider interface {
	// LessonCount returns the number of lessons across all sections.
	LessonCount(ctx context.Context, courseID string) (int, error)

	// CoursePrice returns the price new enrollments record (0 for free courses).
	CoursePrice(ctx context.Context, courseID string) (shared.Money, error)

	// CoursePublished reports whether the course accepts enrollments.
	CoursePublished(ctx context.Context, courseID string) (bool, error)

	// HasLesson reports whether lessonID belongs to courseID.
	HasLesson(ctx context.Context, courseID, lessonID string) (bool, error)
}

// Repository reads courses and writes their cached counters.
type Repository interface {
	// GetByID returns ErrCourseNotFound if missing.
	GetByID(ctx context.Context, id string) (*Course, error)

	// ListIDs returns every course id.
	ListIDs(ctx context.Context) ([]string, error)

	// SaveCachedStats overwrites the cached counters of a course.
	SaveCachedStats(ctx context.Context, courseID string, stats CachedStats) error

	// SaveInstructorProfile overwrites the instructor's counters, creating the
	// profile row on first use.
	SaveInstructorProfile(ctx context.Context, profile InstructorProfile) error

	// GetInstructorProfile returns the stored counters.
	GetInstructorProfile(ctx context.Context, userID string) (*InstructorProfile, error)
}
