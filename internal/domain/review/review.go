// Package review holds the minimal review record the rollups need. Review text
// lives in the catalog service; only the rating, the approval flag and the
// authoring relation are kept here.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// Review is one student's rating of one course.
type Review struct {
	ID         string
	CourseID   string
	StudentID  string
	Rating     int
	Title      string
	Comment    string
	IsApproved bool
	CreatedAt  time.Time
}

// NewReviewParams holds the inputs of NewReview.
type NewReviewParams struct {
	ID        string
	CourseID  string
	StudentID string
	Rating    int
	Title     string
	Comment   string
	Now       time.Time
}

// NewReview validates and creates an approved review.
func NewReview(p NewReviewParams) (*Review, error) {
	if err := shared.ValidateRating(p.Rating); err != nil {
		return nil, err
	}
	if p.CourseID == "" || p.StudentID == "" {
		return nil, shared.NewDomainError("review", "Create", shared.ErrInvalidID, "course and student ids are required")
	}
	return &Review{
		ID:         p.ID,
		CourseID:   p.CourseID,
		StudentID:  p.StudentID,
		Rating:     p.Rating,
		Title:      strings.TrimSpace(p.Title),
		Comment:    strings.TrimSpace(p.Comment),
		IsApproved: true,
		CreatedAt:  p.Now,
	}, nil
}

// RatingPoint is the projection the stats aggregator consumes.
type RatingPoint struct {
	Rating    int
	CreatedAt time.Time
}

// Repository stores reviews.
type Repository interface {
	// Create returns ErrReviewExists when the student already reviewed the course.
	Create(ctx context.Context, r *Review) error

	// ReviewsFor returns the approved ratings of a course.
	ReviewsFor(ctx context.Context, courseID string) ([]RatingPoint, error)
}
