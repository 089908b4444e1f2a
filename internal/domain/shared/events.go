// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Ledger writes publish them after commit; the stats
// refresher and the cache invalidator consume them.
const (
	// Enrollment events
	EventEnrollmentCreated   EventType = "enrollment.created"
	EventProgressUpdated     EventType = "enrollment.progress_updated"
	EventEnrollmentCompleted EventType = "enrollment.completed"
	EventCertificateIssued   EventType = "enrollment.certificate_issued"
	EventStatusChanged       EventType = "enrollment.status_changed"

	// Review events
	EventReviewSubmitted EventType = "review.submitted"

	// Stats events
	EventCourseStatsRefreshed EventType = "stats.course_refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// CourseScoped is implemented by events that affect one course's rollups.
type CourseScoped interface {
	CourseRef() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at the given instant.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// Correlation returns the correlation ID, empty when unset.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentCreatedEvent is emitted when a student enrolls in a course.
type EnrollmentCreatedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	CourseID   string `json:"course_id"`
	AmountPaid Money  `json:"amount_paid"`
}

// Payload implements Event interface.
func (e EnrollmentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"course_id":   e.CourseID,
		"amount_paid": e.AmountPaid.String(),
	}
}

// CourseRef implements CourseScoped.
func (e EnrollmentCreatedEvent) CourseRef() string { return e.CourseID }

// NewEnrollmentCreatedEvent creates a new EnrollmentCreatedEvent.
func NewEnrollmentCreatedEvent(enrollmentID, studentID, courseID string, paid Money, at time.Time) EnrollmentCreatedEvent {
	return EnrollmentCreatedEvent{
		BaseEvent:  NewBaseEvent(EventEnrollmentCreated, enrollmentID, at),
		StudentID:  studentID,
		CourseID:   courseID,
		AmountPaid: paid,
	}
}

// ProgressUpdatedEvent is emitted after a lesson progress report is applied.
type ProgressUpdatedEvent struct {
	BaseEvent
	CourseID    string     `json:"course_id"`
	LessonID    string     `json:"lesson_id"`
	OldProgress Percentage `json:"old_progress"`
	NewProgress Percentage `json:"new_progress"`
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":    e.CourseID,
		"lesson_id":    e.LessonID,
		"old_progress": e.OldProgress.String(),
		"new_progress": e.NewProgress.String(),
	}
}

// CourseRef implements CourseScoped.
func (e ProgressUpdatedEvent) CourseRef() string { return e.CourseID }

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(enrollmentID, courseID, lessonID string, oldP, newP Percentage, at time.Time) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent:   NewBaseEvent(EventProgressUpdated, enrollmentID, at),
		CourseID:    courseID,
		LessonID:    lessonID,
		OldProgress: oldP,
		NewProgress: newP,
	}
}

// EnrollmentCompletedEvent is emitted when progress reaches 100 on an active enrollment.
type EnrollmentCompletedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
}

// Payload implements Event interface.
func (e EnrollmentCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"course_id":  e.CourseID,
	}
}

// CourseRef implements CourseScoped.
func (e EnrollmentCompletedEvent) CourseRef() string { return e.CourseID }

// NewEnrollmentCompletedEvent creates a new EnrollmentCompletedEvent.
func NewEnrollmentCompletedEvent(enrollmentID, studentID, courseID string, at time.Time) EnrollmentCompletedEvent {
	return EnrollmentCompletedEvent{
		BaseEvent: NewBaseEvent(EventEnrollmentCompleted, enrollmentID, at),
		StudentID: studentID,
		CourseID:  courseID,
	}
}

// CertificateIssuedEvent is emitted the first time a certificate is issued.
type CertificateIssuedEvent struct {
	BaseEvent
	StudentID         string `json:"student_id"`
	CourseID          string `json:"course_id"`
	CertificateNumber string `json:"certificate_number"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":         e.StudentID,
		"course_id":          e.CourseID,
		"certificate_number": e.CertificateNumber,
	}
}

// CourseRef implements CourseScoped.
func (e CertificateIssuedEvent) CourseRef() string { return e.CourseID }

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(enrollmentID, studentID, courseID, number string, at time.Time) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:         NewBaseEvent(EventCertificateIssued, enrollmentID, at),
		StudentID:         studentID,
		CourseID:          courseID,
		CertificateNumber: number,
	}
}

// StatusChangedEvent is emitted on administrative status changes.
type StatusChangedEvent struct {
	BaseEvent
	CourseID  string `json:"course_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// Payload implements Event interface.
func (e StatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":  e.CourseID,
		"old_status": e.OldStatus,
		"new_status": e.NewStatus,
	}
}

// CourseRef implements CourseScoped.
func (e StatusChangedEvent) CourseRef() string { return e.CourseID }

// NewStatusChangedEvent creates a new StatusChangedEvent.
func NewStatusChangedEvent(enrollmentID, courseID, oldStatus, newStatus string, at time.Time) StatusChangedEvent {
	return StatusChangedEvent{
		BaseEvent: NewBaseEvent(EventStatusChanged, enrollmentID, at),
		CourseID:  courseID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Review & Stats Events
// ═══════════════════════════════════════════════════════════════════════════

// ReviewSubmittedEvent is emitted when a student reviews a course.
type ReviewSubmittedEvent struct {
	BaseEvent
	CourseID  string `json:"course_id"`
	StudentID string `json:"student_id"`
	Rating    int    `json:"rating"`
}

// Payload implements Event interface.
func (e ReviewSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":  e.CourseID,
		"student_id": e.StudentID,
		"rating":     e.Rating,
	}
}

// CourseRef implements CourseScoped.
func (e ReviewSubmittedEvent) CourseRef() string { return e.CourseID }

// NewReviewSubmittedEvent creates a new ReviewSubmittedEvent.
func NewReviewSubmittedEvent(reviewID, courseID, studentID string, rating int, at time.Time) ReviewSubmittedEvent {
	return ReviewSubmittedEvent{
		BaseEvent: NewBaseEvent(EventReviewSubmitted, reviewID, at),
		CourseID:  courseID,
		StudentID: studentID,
		Rating:    rating,
	}
}

// CourseStatsRefreshedEvent is emitted after cached course counters were recomputed.
type CourseStatsRefreshedEvent struct {
	BaseEvent
	TotalStudents int `json:"total_students"`
	TotalReviews  int `json:"total_reviews"`
}

// Payload implements Event interface.
func (e CourseStatsRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"total_students": e.TotalStudents,
		"total_reviews":  e.TotalReviews,
	}
}

// CourseRef implements CourseScoped.
func (e CourseStatsRefreshedEvent) CourseRef() string { return e.AggregateId }

// NewCourseStatsRefreshedEvent creates a new CourseStatsRefreshedEvent.
func NewCourseStatsRefreshedEvent(courseID string, students, reviews int, at time.Time) CourseStatsRefreshedEvent {
	return CourseStatsRefreshedEvent{
		BaseEvent:     NewBaseEvent(EventCourseStatsRefreshed, courseID, at),
		TotalStudents: students,
		TotalReviews:  reviews,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
