package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT REVIEW COMMAND
// Only enrolled students may review, once per course.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitReviewCommand contains a course review.
type SubmitReviewCommand struct {
	StudentID     string
	CourseID      string
	Rating        int
	Title         string
	Comment       string
	CorrelationID string
}

// Validate validates the command.
func (c SubmitReviewCommand) Validate() error {
	if err := required("SubmitReview", "student_id", c.StudentID); err != nil {
		return err
	}
	if err := required("SubmitReview", "course_id", c.CourseID); err != nil {
		return err
	}
	return shared.ValidateRating(c.Rating)
}

// SubmitReviewResult contains the stored review.
type SubmitReviewResult struct {
	Review *review.Review
}

// SubmitReviewHandler handles the SubmitReviewCommand.
type SubmitReviewHandler struct {
	enrollments enrollment.Repository
	reviews     review.Repository
	opts        Options
}

// NewSubmitReviewHandler creates a new SubmitReviewHandler.
func NewSubmitReviewHandler(enrollments enrollment.Repository, reviews review.Repository, opts Options) *SubmitReviewHandler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(logger.Component("submit_review"))
	return &SubmitReviewHandler{enrollments: enrollments, reviews: reviews, opts: opts}
}

// Handle executes the command.
// Errors: ErrNotEnrolled, ErrReviewExists, ErrInvalidRating.
func (h *SubmitReviewHandler) Handle(ctx context.Context, cmd SubmitReviewCommand) (*SubmitReviewResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := h.opts.Logger.With(logger.StudentID(cmd.StudentID), logger.CourseID(cmd.CourseID))

	if _, err := h.enrollments.FindByStudentAndCourse(ctx, cmd.StudentID, cmd.CourseID); err != nil {
		if shared.IsNotFound(err) {
			return nil, logRejected(log, "SubmitReview", shared.ErrNotEnrolled)
		}
		return nil, fmt.Errorf("submit_review: lookup enrollment: %w", err)
	}

	now := h.opts.Clock.Now()
	r, err := review.NewReview(review.NewReviewParams{
		ID:        h.opts.NewID(),
		CourseID:  cmd.CourseID,
		StudentID: cmd.StudentID,
		Rating:    cmd.Rating,
		Title:     cmd.Title,
		Comment:   cmd.Comment,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	if err := h.reviews.Create(ctx, r); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, logRejected(log, "SubmitReview", err)
		}
		return nil, fmt.Errorf("submit_review: create: %w", err)
	}

	log.Info("review submitted", logger.Int("rating", r.Rating))
	publish(h.opts.Publisher, log, shared.NewReviewSubmittedEvent(r.ID, r.CourseID, r.StudentID, r.Rating, now))

	return &SubmitReviewResult{Review: r}, nil
}
