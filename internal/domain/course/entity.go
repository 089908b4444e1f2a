// Package course mirrors the catalog data the enrollment core reads: courses,
// their lesson structure, and the denormalized counters cached on courses and
// instructor profiles. Course CRUD itself belongs to the catalog service.
package course

import (
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// Status is the publication state of a course.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Course is a read-only view of a catalog course.
type Course struct {
	ID           string
	InstructorID string
	Title        string
	Slug         string
	Status       Status
	Price        shared.Money
	IsFree       bool
	CreatedAt    time.Time
	PublishedAt  *time.Time

	// Cached counters, written only by the stats refresher.
	TotalStudents int
	AverageRating float64
	TotalReviews  int
}

// IsPublished reports whether students may enroll.
func (c *Course) IsPublished() bool {
	return c.Status == StatusPublished
}

// EnrollmentPrice is the amount a new enrollment records as paid.
func (c *Course) EnrollmentPrice() shared.Money {
	if c.IsFree {
		return 0
	}
	return c.Price
}

// Section groups lessons inside a course.
type Section struct {
	ID       string
	CourseID string
	Title    string
	Order    int
}

// Lesson is the unit of progress tracking.
type Lesson struct {
	ID        string
	SectionID string
	CourseID  string
	Title     string
	Order     int
}

// CachedStats are the denormalized counters stored on a course row.
type CachedStats struct {
	TotalStudents int
	AverageRating float64
	TotalReviews  int
}

// InstructorProfile holds the instructor-level counters.
type InstructorProfile struct {
	UserID        string
	TotalStudents int
	TotalCourses  int
	AverageRating float64
	UpdatedAt     time.Time
}
