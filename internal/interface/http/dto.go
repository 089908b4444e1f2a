package http

import (
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollRequest is the optional body of POST /courses/:courseId/enroll.
type EnrollRequest struct {
	PaymentMethod string `json:"payment_method" validate:"omitempty,max=50"`
	TransactionID string `json:"transaction_id" validate:"omitempty,max=100"`
}

// ProgressRequest is the body of a lesson progress report.
type ProgressRequest struct {
	CompletionPercentage *float64 `json:"completion_percentage" validate:"required,gte=0,lte=100"`
	IsCompleted          bool     `json:"is_completed"`
	MinutesSpent         int      `json:"minutes_spent" validate:"gte=0"`
}

// ChangeStatusRequest is the body of PATCH /enrollments/:id/status.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active completed dropped suspended"`
}

// ReviewRequest is the body of POST /courses/:courseId/reviews.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Title   string `json:"title" validate:"max=200"`
	Comment string `json:"comment" validate:"max=5000"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentResponse is the wire form of an enrollment.
type EnrollmentResponse struct {
	ID                  string            `json:"id"`
	StudentID           string            `json:"student_id"`
	CourseID            string            `json:"course_id"`
	Status              string            `json:"status"`
	Progress            shared.Percentage `json:"progress_percentage"`
	AmountPaid          shared.Money      `json:"amount_paid"`
	PaymentMethod       string            `json:"payment_method,omitempty"`
	CertificateIssued   bool              `json:"certificate_issued"`
	CertificateNumber   string            `json:"certificate_number,omitempty"`
	CertificateIssuedAt *time.Time        `json:"certificate_issued_at,omitempty"`
	EnrolledAt          time.Time         `json:"enrolled_at"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
	LastAccessedAt      *time.Time        `json:"last_accessed_at,omitempty"`

	Lessons []LessonProgressResponse `json:"lessons,omitempty"`
}

// LessonProgressResponse is the wire form of one lesson's progress.
type LessonProgressResponse struct {
	LessonID             string            `json:"lesson_id"`
	IsCompleted          bool              `json:"is_completed"`
	CompletionPercentage shared.Percentage `json:"completion_percentage"`
	TimeSpentMinutes     int               `json:"time_spent_minutes"`
	StartedAt            time.Time         `json:"started_at"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	LastAccessedAt       time.Time         `json:"last_accessed_at"`
}

// ProgressResponse is returned by a lesson progress report.
type ProgressResponse struct {
	Enrollment       EnrollmentResponse     `json:"enrollment"`
	Lesson           LessonProgressResponse `json:"lesson"`
	PreviousProgress shared.Percentage      `json:"previous_progress_percentage"`
	CompletedNow     bool                   `json:"completed_now"`
}

// ReviewResponse is the wire form of a review.
type ReviewResponse struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	StudentID  string    `json:"student_id"`
	Rating     int       `json:"rating"`
	Title      string    `json:"title,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

func toEnrollmentResponse(e *enrollment.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:                  e.ID,
		StudentID:           e.StudentID,
		CourseID:            e.CourseID,
		Status:              e.Status.String(),
		Progress:            e.Progress,
		AmountPaid:          e.AmountPaid,
		PaymentMethod:       e.PaymentMethod,
		CertificateIssued:   e.CertificateIssued,
		CertificateNumber:   e.CertificateNumber,
		CertificateIssuedAt: timeOrNil(e.CertificateIssuedAt),
		EnrolledAt:          e.EnrolledAt.UTC(),
		CompletedAt:         timeOrNil(e.CompletedAt),
		LastAccessedAt:      timeOrNil(e.LastAccessedAt),
	}
}

func toLessonProgressResponse(lp *enrollment.LessonProgress) LessonProgressResponse {
	return LessonProgressResponse{
		LessonID:             lp.LessonID,
		IsCompleted:          lp.IsCompleted,
		CompletionPercentage: lp.CompletionPercentage,
		TimeSpentMinutes:     lp.TimeSpentMinutes,
		StartedAt:            lp.StartedAt.UTC(),
		CompletedAt:          timeOrNil(lp.CompletedAt),
		LastAccessedAt:       lp.LastAccessedAt.UTC(),
	}
}

func toReviewResponse(r *review.Review) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		CourseID:   r.CourseID,
		StudentID:  r.StudentID,
		Rating:     r.Rating,
		Title:      r.Title,
		Comment:    r.Comment,
		IsApproved: r.IsApproved,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
