package query

import (
	"context"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// EnrollmentView is an enrollment with its lesson records.
type EnrollmentView struct {
	Enrollment *enrollment.Enrollment
	Lessons    []*enrollment.LessonProgress
}

// GetEnrollmentQuery asks for one enrollment. When StudentID is set the
// enrollment must belong to that student.
type GetEnrollmentQuery struct {
	EnrollmentID string
	StudentID    string
}

// ListEnrollmentsQuery asks for a student's enrollments.
type ListEnrollmentsQuery struct {
	StudentID string
	Status    string
	Offset    int
	Limit     int
}

// EnrollmentsHandler serves enrollment reads.
type EnrollmentsHandler struct {
	store enrollment.Store
}

// NewEnrollmentsHandler creates a new EnrollmentsHandler.
func NewEnrollmentsHandler(store enrollment.Store) *EnrollmentsHandler {
	return &EnrollmentsHandler{store: store}
}

// Get returns one enrollment with its lesson progress.
func (h *EnrollmentsHandler) Get(ctx context.Context, q GetEnrollmentQuery) (*EnrollmentView, error) {
	if q.EnrollmentID == "" {
		return nil, shared.NewDomainError("query", "GetEnrollment", shared.ErrValidation, "enrollment_id is required")
	}
	e, err := h.store.Enrollments().GetByID(ctx, q.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if q.StudentID != "" && e.StudentID != q.StudentID {
		// Someone else's enrollment looks missing to the caller.
		return nil, shared.ErrEnrollmentNotFound
	}
	lessons, err := h.store.Progress().ListByEnrollment(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	return &EnrollmentView{Enrollment: e, Lessons: lessons}, nil
}

// List returns a page of the student's enrollments.
func (h *EnrollmentsHandler) List(ctx context.Context, q ListEnrollmentsQuery) ([]*enrollment.Enrollment, error) {
	if q.StudentID == "" {
		return nil, shared.NewDomainError("query", "ListEnrollments", shared.ErrValidation, "student_id is required")
	}
	opts := enrollment.ListOptions{Offset: q.Offset, Limit: q.Limit}
	if q.Status != "" {
		s, err := enrollment.ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		opts.Status = s
	}
	return h.store.Enrollments().ListByStudent(ctx, q.StudentID, opts.Normalize())
}
