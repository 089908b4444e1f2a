package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COMMAND
// Creates the (student, course) enrollment with the course price snapshotted.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand contains the data to enroll a student.
type EnrollCommand struct {
	StudentID string
	CourseID  string

	// PaymentMethod and TransactionID are recorded as given; payment itself
	// happens upstream.
	PaymentMethod string
	TransactionID string

	CorrelationID string
}

// Validate validates the command.
func (c EnrollCommand) Validate() error {
	if err := required("Enroll", "student_id", c.StudentID); err != nil {
		return err
	}
	return required("Enroll", "course_id", c.CourseID)
}

// EnrollResult contains the created enrollment.
type EnrollResult struct {
	Enrollment *enrollment.Enrollment
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EnrollHandler handles the EnrollCommand.
type EnrollHandler struct {
	store   enrollment.Store
	courses course.StructureProvider
	opts    Options
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(store enrollment.Store, courses course.StructureProvider, opts Options) *EnrollHandler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(logger.Component("enroll"))
	return &EnrollHandler{store: store, courses: courses, opts: opts}
}

// Handle executes the enroll command.
// Errors: ErrCourseNotFound, ErrCourseNotAvailable, ErrAlreadyEnrolled.
func (h *EnrollHandler) Handle(ctx context.Context, cmd EnrollCommand) (*EnrollResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := h.opts.Logger.With(logger.StudentID(cmd.StudentID), logger.CourseID(cmd.CourseID))

	published, err := h.courses.CoursePublished(ctx, cmd.CourseID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, logRejected(log, "Enroll", err)
		}
		return nil, fmt.Errorf("enroll: check course: %w", err)
	}
	if !published {
		return nil, logRejected(log, "Enroll", shared.ErrCourseNotAvailable.Detail("course %s is not published", cmd.CourseID))
	}

	price, err := h.courses.CoursePrice(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("enroll: course price: %w", err)
	}

	now := h.opts.Clock.Now()
	e, err := enrollment.NewEnrollment(enrollment.NewEnrollmentParams{
		ID:            h.opts.NewID(),
		StudentID:     cmd.StudentID,
		CourseID:      cmd.CourseID,
		AmountPaid:    price,
		PaymentMethod: cmd.PaymentMethod,
		TransactionID: cmd.TransactionID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	if err := h.store.Enrollments().Create(ctx, e); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, logRejected(log, "Enroll", err)
		}
		return nil, fmt.Errorf("enroll: create: %w", err)
	}

	log.Info("enrollment created",
		logger.EnrollmentID(e.ID),
		logger.String("amount_paid", e.AmountPaid.String()),
	)

	ev := shared.NewEnrollmentCreatedEvent(e.ID, e.StudentID, e.CourseID, e.AmountPaid, now)
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	publish(h.opts.Publisher, log, ev)

	return &EnrollResult{Enrollment: e}, nil
}
