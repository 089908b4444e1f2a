package enrollment

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// LessonCounter reports how many lessons a course has across all its sections.
type LessonCounter interface {
	LessonCount(ctx context.Context, courseID string) (int, error)
}

// CompletionCounter reports how many lessons of an enrollment are completed.
type CompletionCounter interface {
	CompletedLessonCount(ctx context.Context, enrollmentID string) (int, error)
}

// Calculator derives an enrollment's completion percentage from primary rows.
// Nothing is cached between calls.
type Calculator struct {
	lessons LessonCounter
}

// NewCalculator creates a Calculator backed by the course structure.
func NewCalculator(lessons LessonCounter) *Calculator {
	return &Calculator{lessons: lessons}
}

// ComputeProgress returns completed/total as a percentage rounded half-up to
// two decimals. A course without lessons yields 0.
func (c *Calculator) ComputeProgress(ctx context.Context, completions CompletionCounter, e *Enrollment) (shared.Percentage, error) {
	total, err := c.lessons.LessonCount(ctx, e.CourseID)
	if err != nil {
		return 0, fmt.Errorf("count lessons of course %s: %w", e.CourseID, err)
	}
	if total == 0 {
		return shared.MinPercentage, nil
	}

	completed, err := completions.CompletedLessonCount(ctx, e.ID)
	if err != nil {
		return 0, fmt.Errorf("count completed lessons of enrollment %s: %w", e.ID, err)
	}
	return shared.PercentageOf(completed, total), nil
}
