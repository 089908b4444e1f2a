package enrollment

import (
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// LessonProgress is one student's progress on one lesson of an enrollment.
// Its key is (EnrollmentID, LessonID).
type LessonProgress struct {
	EnrollmentID string
	LessonID     string

	IsCompleted          bool
	CompletionPercentage shared.Percentage

	// TimeSpentMinutes only ever grows; reports add to it.
	TimeSpentMinutes int

	StartedAt      time.Time
	CompletedAt    *time.Time
	LastAccessedAt time.Time
}

// ProgressReport is a single progress update sent by a client.
type ProgressReport struct {
	CompletionPct shared.Percentage
	IsCompleted   bool
	MinutesDelta  int
	At            time.Time
}

// Validate checks the report fields.
func (r ProgressReport) Validate() error {
	if r.MinutesDelta < 0 {
		return shared.ErrNegativeMinutes
	}
	if !r.CompletionPct.IsValid() {
		return shared.ErrInvalidPercentage
	}
	return nil
}

// NewLessonProgress starts tracking a lesson on first touch.
func NewLessonProgress(enrollmentID, lessonID string, at time.Time) *LessonProgress {
	return &LessonProgress{
		EnrollmentID:   enrollmentID,
		LessonID:       lessonID,
		StartedAt:      at,
		LastAccessedAt: at,
	}
}

// Apply merges a report: minutes accumulate, completion fields are
// last-write-wins. CompletedAt is stamped on the first completion and cleared
// when the lesson is reported incomplete again.
func (lp *LessonProgress) Apply(r ProgressReport) {
	lp.TimeSpentMinutes += r.MinutesDelta
	lp.CompletionPercentage = r.CompletionPct
	lp.LastAccessedAt = r.At

	switch {
	case r.IsCompleted && !lp.IsCompleted:
		lp.CompletedAt = timePtr(r.At)
	case !r.IsCompleted:
		lp.CompletedAt = nil
	}
	lp.IsCompleted = r.IsCompleted
}

// Clone returns a deep copy.
func (lp *LessonProgress) Clone() *LessonProgress {
	c := *lp
	c.CompletedAt = copyTime(lp.CompletedAt)
	return &c
}
