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
// REPORT LESSON PROGRESS COMMAND
// Records one lesson report and recomputes the enrollment percentage under
// the enrollment's write lock. Reaching exactly 100% completes the enrollment.
// ══════════════════════════════════════════════════════════════════════════════

// ReportLessonProgressCommand contains one lesson progress report.
type ReportLessonProgressCommand struct {
	EnrollmentID string
	LessonID     string

	// CompletionPct is the lesson completion in percent (0..100).
	CompletionPct float64
	IsCompleted   bool

	// MinutesDelta is added to the lesson's accumulated time. Must be >= 0.
	MinutesDelta int

	CorrelationID string
}

// Validate validates the command.
func (c ReportLessonProgressCommand) Validate() error {
	if err := required("ReportProgress", "enrollment_id", c.EnrollmentID); err != nil {
		return err
	}
	if err := required("ReportProgress", "lesson_id", c.LessonID); err != nil {
		return err
	}
	if c.MinutesDelta < 0 {
		return shared.ErrNegativeMinutes
	}
	_, err := shared.NewPercentage(c.CompletionPct)
	return err
}

// ReportLessonProgressResult contains the updated state.
type ReportLessonProgressResult struct {
	Enrollment       *enrollment.Enrollment
	Lesson           *enrollment.LessonProgress
	PreviousProgress shared.Percentage

	// CompletedNow is true when this report moved the enrollment to completed.
	CompletedNow bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReportLessonProgressHandler handles the ReportLessonProgressCommand.
type ReportLessonProgressHandler struct {
	store      enrollment.Store
	courses    course.StructureProvider
	calculator *enrollment.Calculator
	opts       Options
}

// NewReportLessonProgressHandler creates a new ReportLessonProgressHandler.
func NewReportLessonProgressHandler(store enrollment.Store, courses course.StructureProvider, opts Options) *ReportLessonProgressHandler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(logger.Component("report_progress"))
	return &ReportLessonProgressHandler{
		store:      store,
		courses:    courses,
		calculator: enrollment.NewCalculator(courses),
		opts:       opts,
	}
}

// Handle executes the command.
// Errors: ErrEnrollmentNotFound, ErrLessonNotFound, ErrEnrollmentInactive,
// ErrConcurrencyConflict, validation errors.
func (h *ReportLessonProgressHandler) Handle(ctx context.Context, cmd ReportLessonProgressCommand) (*ReportLessonProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	pct, _ := shared.NewPercentage(cmd.CompletionPct)
	log := h.opts.Logger.With(logger.EnrollmentID(cmd.EnrollmentID), logger.LessonID(cmd.LessonID))

	now := h.opts.Clock.Now()
	report := enrollment.ProgressReport{
		CompletionPct: pct,
		IsCompleted:   cmd.IsCompleted,
		MinutesDelta:  cmd.MinutesDelta,
		At:            now,
	}

	var result ReportLessonProgressResult
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx enrollment.Tx) error {
		e, err := tx.Enrollments().GetForUpdate(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		if err := e.EnsureAcceptsProgress(); err != nil {
			return err
		}

		ok, err := h.courses.HasLesson(ctx, e.CourseID, cmd.LessonID)
		if err != nil {
			return fmt.Errorf("lookup lesson: %w", err)
		}
		if !ok {
			return shared.ErrLessonNotFound.Detail("lesson %s is not part of course %s", cmd.LessonID, e.CourseID)
		}

		lp, err := tx.Progress().RecordLessonProgress(ctx, e.ID, cmd.LessonID, report)
		if err != nil {
			return err
		}

		newPct, err := h.calculator.ComputeProgress(ctx, tx.Progress(), e)
		if err != nil {
			return err
		}

		result.PreviousProgress = e.Progress
		result.CompletedNow = e.ApplyProgress(newPct, now)
		if err := tx.Enrollments().Update(ctx, e); err != nil {
			return err
		}

		result.Enrollment = e
		result.Lesson = lp
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, logRejected(log, "ReportProgress", err)
		}
		return nil, fmt.Errorf("report_progress: %w", err)
	}

	e := result.Enrollment
	log.Info("lesson progress recorded",
		logger.String("progress", e.Progress.String()),
		logger.Int("time_spent_minutes", result.Lesson.TimeSpentMinutes),
		logger.Bool("completed_now", result.CompletedNow),
	)

	events := []shared.Event{
		shared.NewProgressUpdatedEvent(e.ID, e.CourseID, cmd.LessonID, result.PreviousProgress, e.Progress, now),
	}
	if result.CompletedNow {
		events = append(events, shared.NewEnrollmentCompletedEvent(e.ID, e.StudentID, e.CourseID, now))
	}
	publish(h.opts.Publisher, log, events...)

	return &result, nil
}

// isBusinessError reports whether err is part of the domain taxonomy rather
// than an infrastructure failure.
func isBusinessError(err error) bool {
	return shared.IsNotFound(err) ||
		shared.IsAlreadyExists(err) ||
		shared.IsValidation(err) ||
		shared.IsInvalidState(err) ||
		shared.IsPrecondition(err) ||
		shared.IsConflict(err)
}
