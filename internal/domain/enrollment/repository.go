package enrollment

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence (postgres and memory).
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores enrollments.
type Repository interface {
	// Create inserts a new enrollment.
	// Returns ErrAlreadyEnrolled when (student, course) already exists.
	Create(ctx context.Context, e *Enrollment) error

	// GetByID returns an enrollment without locking it.
	// Returns ErrEnrollmentNotFound if missing.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// GetForUpdate loads an enrollment and holds its write lock until the
	// surrounding transaction ends. Only valid inside Store.WithinTx.
	GetForUpdate(ctx context.Context, id string) (*Enrollment, error)

	// FindByStudentAndCourse returns the enrollment of a student in a course.
	// Returns ErrEnrollmentNotFound if missing.
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*Enrollment, error)

	// Update writes the mutable fields when the stored version equals
	// e.Version, then increments e.Version.
	// Returns ErrConcurrencyConflict on a version mismatch.
	Update(ctx context.Context, e *Enrollment) error

	// ListByStudent returns the student's enrollments, newest first.
	ListByStudent(ctx context.Context, studentID string, opts ListOptions) ([]*Enrollment, error)

	// CourseIDsWithActivitySince returns courses whose enrollments changed after since.
	CourseIDsWithActivitySince(ctx context.Context, since time.Time) ([]string, error)
}

// ProgressStore stores per-lesson progress.
type ProgressStore interface {
	CompletionCounter

	// RecordLessonProgress creates the record on first touch and merges the
	// report into it afterwards (see LessonProgress.Apply).
	// Returns a not-found error if the enrollment or lesson does not exist.
	RecordLessonProgress(ctx context.Context, enrollmentID, lessonID string, r ProgressReport) (*LessonProgress, error)

	// ListByEnrollment returns all lesson records of an enrollment.
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*LessonProgress, error)
}

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Enrollments() Repository
	Progress() ProgressStore
}

// Store is the entry point to enrollment persistence. Its own repositories run
// outside any transaction; WithinTx runs fn in a single transaction that is
// committed when fn returns nil and rolled back otherwise.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ListOptions controls pagination.
type ListOptions struct {
	Offset int
	Limit  int
	Status Status
}

// DefaultListOptions returns the default page.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50}
}

// Normalize clamps the page bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 || o.Limit > 200 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
