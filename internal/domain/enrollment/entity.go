package enrollment

import (
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of an enrollment.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDropped   Status = "dropped"
	StatusSuspended Status = "suspended"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusActive, StatusCompleted, StatusDropped, StatusSuspended}

// IsValid checks if the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusDropped, StatusSuspended:
		return true
	}
	return false
}

// AcceptsProgress reports whether lesson progress may be recorded.
func (s Status) AcceptsProgress() bool {
	return s == StatusActive || s == StatusCompleted
}

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", shared.ErrInvalidStatus.Detail("unknown enrollment status %q", raw)
	}
	return s, nil
}

// administrative transitions allowed by ChangeStatus
var adminTransitions = map[Status][]Status{
	StatusActive:    {StatusSuspended, StatusDropped},
	StatusSuspended: {StatusActive, StatusDropped},
}

// CanTransitionTo reports whether an administrator may move s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range adminTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment binds a student to a course.
type Enrollment struct {
	ID        string
	StudentID string
	CourseID  string
	Status    Status

	// Progress is the share of the course's lessons completed.
	Progress shared.Percentage

	// AmountPaid is the course price snapshotted at enrollment time (0 if free).
	AmountPaid    shared.Money
	PaymentMethod string
	TransactionID string

	CertificateIssued   bool
	CertificateIssuedAt *time.Time
	CertificateNumber   string

	EnrolledAt     time.Time
	CompletedAt    *time.Time
	LastAccessedAt *time.Time
	UpdatedAt      time.Time

	// Version is bumped by the repository on every successful update.
	Version int
}

// NewEnrollmentParams holds the inputs of NewEnrollment.
type NewEnrollmentParams struct {
	ID            string
	StudentID     string
	CourseID      string
	AmountPaid    shared.Money
	PaymentMethod string
	TransactionID string
	Now           time.Time
}

// NewEnrollment creates an active enrollment with zero progress.
func NewEnrollment(p NewEnrollmentParams) (*Enrollment, error) {
	if p.ID == "" || p.StudentID == "" || p.CourseID == "" {
		return nil, shared.NewDomainError("enrollment", "Create", shared.ErrInvalidID, "enrollment, student and course ids are required")
	}
	if p.AmountPaid < 0 {
		return nil, shared.NewDomainError("enrollment", "Create", shared.ErrNegativeValue, "amount paid cannot be negative")
	}
	return &Enrollment{
		ID:            p.ID,
		StudentID:     p.StudentID,
		CourseID:      p.CourseID,
		Status:        StatusActive,
		Progress:      shared.MinPercentage,
		AmountPaid:    p.AmountPaid,
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		EnrolledAt:    p.Now,
		UpdatedAt:     p.Now,
		Version:       1,
	}, nil
}

// EnsureAcceptsProgress rejects progress reports on dropped or suspended enrollments.
func (e *Enrollment) EnsureAcceptsProgress() error {
	if !e.Status.AcceptsProgress() {
		return shared.ErrEnrollmentInactive.Detail("enrollment %s is %s", e.ID, e.Status)
	}
	return nil
}

// ApplyProgress stores a freshly computed percentage and touches the access
// time. It returns true when this call moved the enrollment to completed.
func (e *Enrollment) ApplyProgress(p shared.Percentage, now time.Time) bool {
	e.Progress = p
	e.LastAccessedAt = timePtr(now)
	e.UpdatedAt = now

	if p.IsComplete() && e.Status == StatusActive {
		e.Status = StatusCompleted
		e.CompletedAt = timePtr(now)
		return true
	}
	return false
}

// IssueCertificate marks the certificate as issued. It is idempotent: the
// second and later calls return false and leave the original stamp.
func (e *Enrollment) IssueCertificate(number string, now time.Time) (bool, error) {
	if e.Status != StatusCompleted {
		return false, shared.ErrNotCompleted.Detail("enrollment %s is %s", e.ID, e.Status)
	}
	if e.CertificateIssued {
		return false, nil
	}
	e.CertificateIssued = true
	e.CertificateIssuedAt = timePtr(now)
	e.CertificateNumber = number
	e.UpdatedAt = now
	return true, nil
}

// ChangeStatus applies an administrative transition.
func (e *Enrollment) ChangeStatus(target Status, now time.Time) error {
	if !target.IsValid() {
		return shared.ErrInvalidStatus.Detail("unknown enrollment status %q", target)
	}
	if !e.Status.CanTransitionTo(target) {
		return shared.ErrInvalidTransition.Detail("cannot move enrollment %s from %s to %s", e.ID, e.Status, target)
	}
	e.Status = target
	e.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (e *Enrollment) Clone() *Enrollment {
	c := *e
	c.CertificateIssuedAt = copyTime(e.CertificateIssuedAt)
	c.CompletedAt = copyTime(e.CompletedAt)
	c.LastAccessedAt = copyTime(e.LastAccessedAt)
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
