package command_test

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
)

func (f *fixture) enroll(t *testing.T, studentID, courseID string) *enrollment.Enrollment {
	t.Helper()
	res, err := command.NewEnrollHandler(f.store, f.store, f.opts).Handle(context.Background(), command.EnrollCommand{
		StudentID: studentID,
		CourseID:  courseID,
	})
	require.NoError(t, err)
	return res.Enrollment
}

func (f *fixture) report(enrollmentID, lessonID string, pct float64, done bool, minutes int) (*command.ReportLessonProgressResult, error) {
	return command.NewReportLessonProgressHandler(f.store, f.store, f.opts).Handle(context.Background(), command.ReportLessonProgressCommand{
		EnrollmentID:  enrollmentID,
		LessonID:      lessonID,
		CompletionPct: pct,
		IsCompleted:   done,
		MinutesDelta:  minutes,
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// Enroll
// ═══════════════════════════════════════════════════════════════════════════

func TestEnroll_SnapshotsPrice(t *testing.T) {
	f := newFixture(t)

	e := f.enroll(t, "s-1", "c-go")

	assert.Equal(t, enrollment.StatusActive, e.Status)
	assert.Equal(t, shared.Money(5000), e.AmountPaid)
	assert.Equal(t, shared.Percentage(0), e.Progress)
	assert.Equal(t, t0, e.EnrolledAt)
	assert.Equal(t, []shared.EventType{shared.EventEnrollmentCreated}, f.events.types())

	stored, err := f.store.Enrollments().FindByStudentAndCourse(context.Background(), "s-1", "c-go")
	require.NoError(t, err)
	assert.Equal(t, e.ID, stored.ID)
}

func TestEnroll_FreeCourseRecordsZero(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-empty")
	assert.True(t, e.AmountPaid.IsZero())
}

func TestEnroll_Rejections(t *testing.T) {
	f := newFixture(t)
	h := command.NewEnrollHandler(f.store, f.store, f.opts)
	ctx := context.Background()
	f.enroll(t, "s-1", "c-go")

	tests := []struct {
		name string
		cmd  command.EnrollCommand
		want error
	}{
		{"duplicate", command.EnrollCommand{StudentID: "s-1", CourseID: "c-go"}, shared.ErrAlreadyEnrolled},
		{"missing course", command.EnrollCommand{StudentID: "s-1", CourseID: "nope"}, shared.ErrCourseNotFound},
		{"draft course", command.EnrollCommand{StudentID: "s-1", CourseID: "c-draft"}, shared.ErrCourseNotAvailable},
		{"no student", command.EnrollCommand{CourseID: "c-go"}, shared.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Len(t, f.events.types(), 1)
}

func TestEnroll_ConcurrentDuplicatesCreateOne(t *testing.T) {
	f := newFixture(t)
	h := command.NewEnrollHandler(f.store, f.store, f.opts)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.Handle(context.Background(), command.EnrollCommand{StudentID: "s-1", CourseID: "c-go"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, shared.ErrAlreadyEnrolled)
	}
	assert.Equal(t, 1, ok)
}

// ═══════════════════════════════════════════════════════════════════════════
// Report lesson progress
// ═══════════════════════════════════════════════════════════════════════════

func TestReportProgress_QuarterStepsToCompletion(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-go")

	res, err := f.report(e.ID, "l-1", 100, true, 5)
	require.NoError(t, err)
	assert.Equal(t, "25.00", res.Enrollment.Progress.String())
	assert.False(t, res.CompletedNow)

	for i, lesson := range []string{"l-2", "l-3"} {
		f.clock.Advance(time.Minute)
		res, err = f.report(e.ID, lesson, 100, true, 5)
		require.NoError(t, err)
		assert.Equal(t, shared.Percentage(2500*(i+2)), res.Enrollment.Progress)
	}

	f.clock.Advance(time.Minute)
	res, err = f.report(e.ID, "l-4", 100, true, 5)
	require.NoError(t, err)
	assert.True(t, res.CompletedNow)
	assert.Equal(t, shared.MaxPercentage, res.Enrollment.Progress)
	assert.Equal(t, enrollment.StatusCompleted, res.Enrollment.Status)
	require.NotNil(t, res.Enrollment.CompletedAt)
	assert.Equal(t, f.clock.Now(), *res.Enrollment.CompletedAt)
	assert.Equal(t, 5, res.Enrollment.Version)

	types := f.events.types()
	assert.Equal(t, shared.EventEnrollmentCompleted, types[len(types)-1])
}

func TestReportProgress_PartialDoesNotCount(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-go")

	res, err := f.report(e.ID, "l-1", 60, false, 3)
	require.NoError(t, err)
	assert.Equal(t, shared.Percentage(0), res.Enrollment.Progress)
	assert.Equal(t, shared.Percentage(6000), res.Lesson.CompletionPercentage)
	assert.Nil(t, res.Lesson.CompletedAt)
}

func TestReportProgress_MinutesAccumulate(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-go")

	_, err := f.report(e.ID, "l-1", 40, false, 10)
	require.NoError(t, err)
	res, err := f.report(e.ID, "l-1", 80, false, 15)
	require.NoError(t, err)

	assert.Equal(t, 25, res.Lesson.TimeSpentMinutes)
	assert.Equal(t, t0, res.Lesson.StartedAt)
}

func TestReportProgress_RepeatedCompletionIsStable(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-go")

	_, err := f.report(e.ID, "l-1", 100, true, 1)
	require.NoError(t, err)
	res, err := f.report(e.ID, "l-1", 100, true, 1)
	require.NoError(t, err)
	assert.Equal(t, shared.Percentage(2500), res.Enrollment.Progress)
}

func TestReportProgress_CompletedEnrollmentKeepsStatus(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-go")
	for _, l := range []string{"l-1", "l-2", "l-3", "l-4"} {
		_, err := f.report(e.ID, l, 100, true, 1)
		require.NoError(t, err)
	}

	res, err := f.report(e.ID, "l-2", 50, false, 2)
	require.NoError(t, err)
	assert.Equal(t, shared.Percentage(7500), res.Enrollment.Progress)
	assert.Equal(t, enrollment.StatusCompleted, res.Enrollment.Status)
	assert.False(t, res.CompletedNow)
}

func TestReportProgress_Rejections(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-go")
	dropped := f.enroll(t, "s-2", "c-go")
	_, err := command.NewChangeStatusHandler(f.store, f.opts).Handle(context.Background(), command.ChangeStatusCommand{
		EnrollmentID: dropped.ID, Status: "dropped",
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		enrollment string
		lesson     string
		pct        float64
		minutes    int
		want       error
	}{
		{"unknown enrollment", "missing", "l-1", 10, 0, shared.ErrEnrollmentNotFound},
		{"lesson of another course", e.ID, "l-draft", 10, 0, shared.ErrLessonNotFound},
		{"unknown lesson", e.ID, "l-99", 10, 0, shared.ErrLessonNotFound},
		{"negative minutes", e.ID, "l-1", 10, -1, shared.ErrNegativeMinutes},
		{"percentage above range", e.ID, "l-1", 100.5, 0, shared.ErrInvalidPercentage},
		{"dropped enrollment", dropped.ID, "l-1", 10, 0, shared.ErrEnrollmentInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.report(tt.enrollment, tt.lesson, tt.pct, false, tt.minutes)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// nothing was written for the rejected reports
	lessons, err := f.store.Progress().ListByEnrollment(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

func TestReportProgress_ConcurrentReportsAllCount(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-go")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.report(e.ID, fmt.Sprintf("l-%d", i+1), 100, true, 5)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := f.store.Enrollments().GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.MaxPercentage, got.Progress)
	assert.Equal(t, enrollment.StatusCompleted, got.Status)
	assert.Equal(t, 5, got.Version)

	completed := 0
	for _, typ := range f.events.types() {
		if typ == shared.EventEnrollmentCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestReportProgress_LocksArePerEnrollment(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "s-1", "c-go")
	b := f.enroll(t, "s-2", "c-go")

	locked := make(chan struct{})
	release := make(chan struct{})
	held := make(chan error, 1)
	go func() {
		held <- f.store.WithinTx(context.Background(), func(ctx context.Context, tx enrollment.Tx) error {
			if _, err := tx.Enrollments().GetForUpdate(ctx, a.ID); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer func() {
		close(release)
		require.NoError(t, <-held)
	}()

	handler := command.NewReportLessonProgressHandler(f.store, f.store, f.opts)
	report := func(enrollmentID string, wait time.Duration) error {
		ctx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()
		_, err := handler.Handle(ctx, command.ReportLessonProgressCommand{
			EnrollmentID: enrollmentID, LessonID: "l-1", CompletionPct: 100, IsCompleted: true, MinutesDelta: 5,
		})
		return err
	}

	require.NoError(t, report(b.ID, 5*time.Second), "another enrollment's lock must not block")
	assert.ErrorIs(t, report(a.ID, 50*time.Millisecond), context.DeadlineExceeded)
}

func TestComputeProgress_ZeroLessonCourse(t *testing.T) {
	f := newFixture(t)
	e := f.enroll(t, "s-1", "c-empty")

	pct, err := enrollment.NewCalculator(f.store).ComputeProgress(context.Background(), f.store.Progress(), e)
	require.NoError(t, err)
	assert.Equal(t, shared.Percentage(0), pct)
}

// ═══════════════════════════════════════════════════════════════════════════
// Certificates and status
// ═══════════════════════════════════════════════════════════════════════════

var certificatePattern = regexp.MustCompile(`^CERT-20260504-[0-9A-F]{8}$`)

func TestIssueCertificate(t *testing.T) {
	f := newFixture(t)
	h := command.NewIssueCertificateHandler(f.store, f.opts)
	ctx := context.Background()
	e := f.enroll(t, "s-1", "c-go")

	_, err := h.Handle(ctx, command.IssueCertificateCommand{EnrollmentID: e.ID})
	assert.ErrorIs(t, err, shared.ErrNotCompleted)

	for _, l := range []string{"l-1", "l-2", "l-3", "l-4"} {
		_, err := f.report(e.ID, l, 100, true, 1)
		require.NoError(t, err)
	}

	first, err := h.Handle(ctx, command.IssueCertificateCommand{EnrollmentID: e.ID})
	require.NoError(t, err)
	assert.True(t, first.Issued)
	assert.True(t, first.Enrollment.CertificateIssued)
	assert.Regexp(t, certificatePattern, first.Enrollment.CertificateNumber)

	f.clock.Advance(24 * time.Hour)
	second, err := h.Handle(ctx, command.IssueCertificateCommand{EnrollmentID: e.ID})
	require.NoError(t, err)
	assert.False(t, second.Issued)
	assert.Equal(t, first.Enrollment.CertificateNumber, second.Enrollment.CertificateNumber)
	assert.Equal(t, *first.Enrollment.CertificateIssuedAt, *second.Enrollment.CertificateIssuedAt)

	issued := 0
	for _, typ := range f.events.types() {
		if typ == shared.EventCertificateIssued {
			issued++
		}
	}
	assert.Equal(t, 1, issued)
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	h := command.NewChangeStatusHandler(f.store, f.opts)
	ctx := context.Background()
	e := f.enroll(t, "s-1", "c-go")

	res, err := h.Handle(ctx, command.ChangeStatusCommand{EnrollmentID: e.ID, Status: "suspended", ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusActive, res.PreviousStatus)
	assert.Equal(t, enrollment.StatusSuspended, res.Enrollment.Status)

	_, err = f.report(e.ID, "l-1", 100, true, 1)
	assert.ErrorIs(t, err, shared.ErrEnrollmentInactive)

	_, err = h.Handle(ctx, command.ChangeStatusCommand{EnrollmentID: e.ID, Status: "completed"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = h.Handle(ctx, command.ChangeStatusCommand{EnrollmentID: e.ID, Status: "paused"})
	assert.True(t, shared.IsValidation(err))

	res, err = h.Handle(ctx, command.ChangeStatusCommand{EnrollmentID: e.ID, Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusActive, res.Enrollment.Status)
}

// ═══════════════════════════════════════════════════════════════════════════
// Reviews and cached counters
// ═══════════════════════════════════════════════════════════════════════════

func TestSubmitReview(t *testing.T) {
	f := newFixture(t)
	h := command.NewSubmitReviewHandler(f.store.Enrollments(), f.store.Reviews(), f.opts)
	ctx := context.Background()

	_, err := h.Handle(ctx, command.SubmitReviewCommand{StudentID: "s-1", CourseID: "c-go", Rating: 5})
	assert.ErrorIs(t, err, shared.ErrNotEnrolled)

	f.enroll(t, "s-1", "c-go")
	res, err := h.Handle(ctx, command.SubmitReviewCommand{StudentID: "s-1", CourseID: "c-go", Rating: 5, Title: "  Great  "})
	require.NoError(t, err)
	assert.Equal(t, "Great", res.Review.Title)
	assert.True(t, res.Review.IsApproved)

	_, err = h.Handle(ctx, command.SubmitReviewCommand{StudentID: "s-1", CourseID: "c-go", Rating: 4})
	assert.ErrorIs(t, err, shared.ErrReviewExists)

	_, err = h.Handle(ctx, command.SubmitReviewCommand{StudentID: "s-1", CourseID: "c-go", Rating: 6})
	assert.ErrorIs(t, err, shared.ErrInvalidRating)
}

func TestRefreshCourseStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, s := range []string{"s-1", "s-2", "s-3"} {
		f.enroll(t, s, "c-go")
	}
	f.enroll(t, "s-1", "c-empty")
	review := command.NewSubmitReviewHandler(f.store.Enrollments(), f.store.Reviews(), f.opts)
	for s, rating := range map[string]int{"s-1": 4, "s-2": 5} {
		_, err := review.Handle(ctx, command.SubmitReviewCommand{StudentID: s, CourseID: "c-go", Rating: rating})
		require.NoError(t, err)
	}

	h := command.NewRefreshCourseStatsHandler(f.store, f.store.Courses(), stats.DefaultPolicy(), f.opts)
	res, err := h.Handle(ctx, command.RefreshCourseStatsCommand{CourseID: "c-go"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Course.TotalStudents)
	assert.Equal(t, 2, res.Course.TotalReviews)
	assert.InDelta(t, 4.5, res.Course.AverageRating, 1e-9)
	assert.Equal(t, "i-1", res.Profile.UserID)
	assert.Equal(t, 2, res.Profile.TotalCourses)
	assert.Equal(t, 3, res.Profile.TotalStudents)

	c, err := f.store.Courses().GetByID(ctx, "c-go")
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalStudents)
	assert.Equal(t, 2, c.TotalReviews)

	profile, err := f.store.Courses().GetInstructorProfile(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 3, profile.TotalStudents)

	_, err = h.Handle(ctx, command.RefreshCourseStatsCommand{CourseID: "missing"})
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
}
