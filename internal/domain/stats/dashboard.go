package stats

import (
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED BLOCKS
// ══════════════════════════════════════════════════════════════════════════════

// RevenueBucket is the revenue of enrollments started inside one fixed-length
// window. Label is the calendar month of Start; the window is WindowDays long
// and does not follow month boundaries.
type RevenueBucket struct {
	Label       string       `json:"label"`
	Start       time.Time    `json:"start"`
	End         time.Time    `json:"end"`
	WindowDays  int          `json:"window_days"`
	Revenue     shared.Money `json:"revenue"`
	Enrollments int          `json:"enrollments"`
}

// CourseCounts breaks courses down by publication status.
type CourseCounts struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Draft     int `json:"draft"`
	Archived  int `json:"archived"`
}

// EnrollmentCounts breaks enrollments down by lifecycle status.
type EnrollmentCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Dropped   int `json:"dropped"`
	Suspended int `json:"suspended"`
}

func (c *EnrollmentCounts) add(s enrollment.Status, n int) {
	c.Total += n
	switch s {
	case enrollment.StatusActive:
		c.Active += n
	case enrollment.StatusCompleted:
		c.Completed += n
	case enrollment.StatusDropped:
		c.Dropped += n
	case enrollment.StatusSuspended:
		c.Suspended += n
	}
}

// EnrollmentItem is an enrollment row in a dashboard list.
type EnrollmentItem struct {
	EnrollmentID   string            `json:"enrollment_id"`
	StudentID      string            `json:"student_id"`
	CourseID       string            `json:"course_id"`
	CourseTitle    string            `json:"course_title"`
	Status         enrollment.Status `json:"status"`
	Progress       shared.Percentage `json:"progress"`
	EnrolledAt     time.Time         `json:"enrolled_at"`
	LastAccessedAt *time.Time        `json:"last_accessed_at,omitempty"`
}

// ReviewItem is a review row in a dashboard list.
type ReviewItem struct {
	ReviewID    string    `json:"review_id"`
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	StudentID   string    `json:"student_id"`
	Rating      int       `json:"rating"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

// CourseItem is a course row in a dashboard list.
type CourseItem struct {
	CourseID     string    `json:"course_id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	InstructorID string    `json:"instructor_id"`
	Status       string    `json:"status"`
	Enrollments  int       `json:"enrollments,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserItem is a user row in a dashboard list.
type UserItem struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Type     string    `json:"type"`
	JoinedAt time.Time `json:"joined_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARDS
// ══════════════════════════════════════════════════════════════════════════════

// InstructorDashboard summarizes one instructor's courses.
type InstructorDashboard struct {
	InstructorID      string           `json:"instructor_id"`
	Courses           CourseCounts     `json:"courses"`
	TotalStudents     int              `json:"total_students"`
	Enrollments       EnrollmentCounts `json:"enrollments"`
	TotalRevenue      shared.Money     `json:"total_revenue"`
	AverageRating     float64          `json:"average_rating"`
	TotalReviews      int              `json:"total_reviews"`
	RecentEnrollments []EnrollmentItem `json:"recent_enrollments"`
	RecentReviews     []ReviewItem     `json:"recent_reviews"`
	MonthlyRevenue    []RevenueBucket  `json:"monthly_revenue"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// StudentDashboard summarizes one student's learning.
type StudentDashboard struct {
	StudentID          string            `json:"student_id"`
	Enrollments        EnrollmentCounts  `json:"enrollments"`
	CertificatesEarned int               `json:"certificates_earned"`
	TotalSpent         shared.Money      `json:"total_spent"`
	AverageProgress    shared.Percentage `json:"average_progress"`
	RecentCourses      []EnrollmentItem  `json:"recent_courses"`
	ContinueLearning   []EnrollmentItem  `json:"continue_learning"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// UserCounts breaks users down by type.
type UserCounts struct {
	Total       int `json:"total"`
	Students    int `json:"students"`
	Instructors int `json:"instructors"`
	Admins      int `json:"admins"`
}

// PlatformDashboard is the admin overview.
type PlatformDashboard struct {
	Users         UserCounts       `json:"users"`
	Courses       CourseCounts     `json:"courses"`
	Enrollments   EnrollmentCounts `json:"enrollments"`
	TotalRevenue  shared.Money     `json:"total_revenue"`
	TotalReviews  int              `json:"total_reviews"`
	RecentUsers   []UserItem       `json:"recent_users"`
	RecentCourses []CourseItem     `json:"recent_courses"`
	TopCourses    []CourseItem     `json:"top_courses"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// CourseStatsSnapshot is the per-course rollup served (and cached) by the
// course stats endpoint. RatingDistribution[i] counts (i+1)-star reviews.
type CourseStatsSnapshot struct {
	CourseID           string           `json:"course_id"`
	TotalStudents      int              `json:"total_students"`
	AverageRating      float64          `json:"average_rating"`
	TotalReviews       int              `json:"total_reviews"`
	RatingDistribution [5]int           `json:"rating_distribution"`
	Enrollments        EnrollmentCounts `json:"enrollments"`
	MonthlyRevenue     []RevenueBucket  `json:"monthly_revenue"`
	GeneratedAt        time.Time        `json:"generated_at"`
}
