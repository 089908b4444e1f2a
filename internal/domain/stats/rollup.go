package stats

import (
	"sort"
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/user"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INSTRUCTOR
// ══════════════════════════════════════════════════════════════════════════════

// InstructorInput is the snapshot data of one instructor's dashboard.
type InstructorInput struct {
	InstructorID string
	Courses      []*course.Course
	Enrollments  []*enrollment.Enrollment
	Reviews      []*review.Review
	Now          time.Time
}

// BuildInstructorDashboard computes the instructor rollup.
func BuildInstructorDashboard(in InstructorInput, p Policy) InstructorDashboard {
	titles := courseTitles(in.Courses)

	d := InstructorDashboard{
		InstructorID: in.InstructorID,
		Courses:      countCourses(in.Courses),
		GeneratedAt:  in.Now,
	}

	students := make(map[string]struct{})
	for _, e := range in.Enrollments {
		d.Enrollments.add(e.Status, 1)
		if !p.Counts(e.Status) {
			continue
		}
		students[e.StudentID] = struct{}{}
		d.TotalRevenue = d.TotalRevenue.Add(e.AmountPaid)
	}
	d.TotalStudents = len(students)

	d.AverageRating, d.TotalReviews, _ = ratingSummary(in.Reviews)
	d.RecentEnrollments = recentEnrollments(in.Enrollments, titles, RecentEnrollmentsLimit)
	d.RecentReviews = recentReviews(in.Reviews, titles, RecentReviewsLimit)
	d.MonthlyRevenue = RevenueBuckets(in.Enrollments, in.Now, p)
	return d
}

// RevenueBuckets sums counted enrollment payments per revenue window, oldest
// window first. A payment lands in every window whose closed range contains
// its enrollment time.
func RevenueBuckets(enrollments []*enrollment.Enrollment, now time.Time, p Policy) []RevenueBucket {
	windows := timeutil.RevenueWindows(now, p.location(), p.RevenueWindows, p.WindowDays)
	days := p.WindowDays
	if days <= 0 {
		days = timeutil.DefaultWindowDays
	}

	buckets := make([]RevenueBucket, len(windows))
	for i, w := range windows {
		b := RevenueBucket{Label: w.Label, Start: w.Start, End: w.End, WindowDays: days}
		for _, e := range enrollments {
			if !p.Counts(e.Status) || !w.Contains(e.EnrolledAt) {
				continue
			}
			b.Revenue = b.Revenue.Add(e.AmountPaid)
			b.Enrollments++
		}
		buckets[i] = b
	}
	return buckets
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// StudentInput is the snapshot data of one student's dashboard.
type StudentInput struct {
	StudentID   string
	Enrollments []*enrollment.Enrollment
	Courses     []*course.Course
	Now         time.Time
}

// BuildStudentDashboard computes the student rollup.
func BuildStudentDashboard(in StudentInput, p Policy) StudentDashboard {
	titles := courseTitles(in.Courses)

	d := StudentDashboard{StudentID: in.StudentID, GeneratedAt: in.Now}

	var progress []shared.Percentage
	for _, e := range in.Enrollments {
		d.Enrollments.add(e.Status, 1)
		if e.CertificateIssued {
			d.CertificatesEarned++
		}
		if !p.Counts(e.Status) {
			continue
		}
		d.TotalSpent = d.TotalSpent.Add(e.AmountPaid)
		progress = append(progress, e.Progress)
	}
	d.AverageProgress = shared.AveragePercentage(progress)

	byAccess := make([]*enrollment.Enrollment, len(in.Enrollments))
	copy(byAccess, in.Enrollments)
	sort.SliceStable(byAccess, func(i, j int) bool { return accessedBefore(byAccess[j], byAccess[i]) })

	d.RecentCourses = make([]EnrollmentItem, 0, RecentCoursesLimit)
	d.ContinueLearning = make([]EnrollmentItem, 0, ContinueLearningLimit)
	for _, e := range byAccess {
		if len(d.RecentCourses) < RecentCoursesLimit {
			d.RecentCourses = append(d.RecentCourses, enrollmentItem(e, titles))
		}
		if len(d.ContinueLearning) < ContinueLearningLimit &&
			e.Status == enrollment.StatusActive && !e.Progress.IsComplete() {
			d.ContinueLearning = append(d.ContinueLearning, enrollmentItem(e, titles))
		}
	}
	return d
}

// accessedBefore orders by last access ascending with never-accessed
// enrollments first, so a descending sort puts them last.
func accessedBefore(a, b *enrollment.Enrollment) bool {
	switch {
	case a.LastAccessedAt == nil && b.LastAccessedAt == nil:
		return tieBefore(b, a)
	case a.LastAccessedAt == nil:
		return true
	case b.LastAccessedAt == nil:
		return false
	case a.LastAccessedAt.Equal(*b.LastAccessedAt):
		return tieBefore(b, a)
	}
	return a.LastAccessedAt.Before(*b.LastAccessedAt)
}

// tieBefore breaks ties by enrollment time desc, then id asc.
func tieBefore(a, b *enrollment.Enrollment) bool {
	if !a.EnrolledAt.Equal(b.EnrolledAt) {
		return a.EnrolledAt.After(b.EnrolledAt)
	}
	return a.ID < b.ID
}

// ══════════════════════════════════════════════════════════════════════════════
// PLATFORM
// ══════════════════════════════════════════════════════════════════════════════

// PlatformInput is the snapshot data of the admin dashboard.
type PlatformInput struct {
	Counts        PlatformCounts
	RecentUsers   []user.User
	RecentCourses []*course.Course
	TopCourses    []CourseEnrollmentCount
	Now           time.Time
}

// BuildPlatformDashboard computes the admin rollup.
func BuildPlatformDashboard(in PlatformInput, p Policy) PlatformDashboard {
	d := PlatformDashboard{GeneratedAt: in.Now, TotalReviews: in.Counts.TotalReviews}

	for t, n := range in.Counts.UsersByType {
		d.Users.Total += n
		switch t {
		case user.TypeStudent:
			d.Users.Students += n
		case user.TypeInstructor:
			d.Users.Instructors += n
		case user.TypeAdmin:
			d.Users.Admins += n
		}
	}
	for s, n := range in.Counts.CoursesByStatus {
		addCourse(&d.Courses, s, n)
	}
	for s, n := range in.Counts.EnrollmentsByStatus {
		d.Enrollments.add(s, n)
	}
	for s, amount := range in.Counts.RevenueByStatus {
		if p.Counts(s) {
			d.TotalRevenue = d.TotalRevenue.Add(amount)
		}
	}

	d.RecentUsers = make([]UserItem, 0, len(in.RecentUsers))
	for _, u := range in.RecentUsers {
		d.RecentUsers = append(d.RecentUsers, UserItem{
			UserID:   u.ID,
			Name:     u.FullName(),
			Email:    u.Email,
			Type:     string(u.Type),
			JoinedAt: u.JoinedAt,
		})
	}
	d.RecentCourses = make([]CourseItem, 0, len(in.RecentCourses))
	for _, c := range in.RecentCourses {
		d.RecentCourses = append(d.RecentCourses, courseItem(c, 0))
	}
	d.TopCourses = make([]CourseItem, 0, len(in.TopCourses))
	for _, tc := range in.TopCourses {
		d.TopCourses = append(d.TopCourses, courseItem(tc.Course, tc.Enrollments))
	}
	return d
}

// RankTopCourses orders published courses by enrollment count desc, then
// creation time asc, then id asc, and keeps the first limit entries.
func RankTopCourses(counts []CourseEnrollmentCount, limit int) []CourseEnrollmentCount {
	ranked := make([]CourseEnrollmentCount, 0, len(counts))
	for _, c := range counts {
		if c.Course != nil && c.Course.IsPublished() {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Enrollments != b.Enrollments {
			return a.Enrollments > b.Enrollments
		}
		if !a.Course.CreatedAt.Equal(b.Course.CreatedAt) {
			return a.Course.CreatedAt.Before(b.Course.CreatedAt)
		}
		return a.Course.ID < b.Course.ID
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE
// ══════════════════════════════════════════════════════════════════════════════

// CourseInput is the snapshot data of one course's stats.
type CourseInput struct {
	Course      *course.Course
	Enrollments []*enrollment.Enrollment
	Reviews     []*review.Review
	Now         time.Time
}

// BuildCourseStats computes the per-course snapshot.
func BuildCourseStats(in CourseInput, p Policy) CourseStatsSnapshot {
	s := CourseStatsSnapshot{CourseID: in.Course.ID, GeneratedAt: in.Now}
	for _, e := range in.Enrollments {
		s.Enrollments.add(e.Status, 1)
	}
	s.TotalStudents = countStudents(in.Enrollments, p)
	s.AverageRating, s.TotalReviews, s.RatingDistribution = ratingSummary(in.Reviews)
	s.MonthlyRevenue = RevenueBuckets(in.Enrollments, in.Now, p)
	return s
}

// CachedCourseStats recomputes the denormalized counters of one course.
func CachedCourseStats(enrollments []*enrollment.Enrollment, reviews []*review.Review, p Policy) course.CachedStats {
	avg, n, _ := ratingSummary(reviews)
	return course.CachedStats{
		TotalStudents: countStudents(enrollments, p),
		AverageRating: avg,
		TotalReviews:  n,
	}
}

// InstructorProfileStats recomputes an instructor's profile counters from all
// of the instructor's courses.
func InstructorProfileStats(instructorID string, courses []*course.Course, enrollments []*enrollment.Enrollment, reviews []*review.Review, p Policy, now time.Time) course.InstructorProfile {
	avg, _, _ := ratingSummary(reviews)
	return course.InstructorProfile{
		UserID:        instructorID,
		TotalStudents: countStudents(enrollments, p),
		TotalCourses:  len(courses),
		AverageRating: avg,
		UpdatedAt:     now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func countStudents(enrollments []*enrollment.Enrollment, p Policy) int {
	students := make(map[string]struct{}, len(enrollments))
	for _, e := range enrollments {
		if p.Counts(e.Status) {
			students[e.StudentID] = struct{}{}
		}
	}
	return len(students)
}

// ratingSummary averages approved reviews and builds the star distribution.
// Unapproved reviews are left out of every review count, platform totals
// included.
func ratingSummary(reviews []*review.Review) (avg float64, count int, dist [5]int) {
	sum := 0
	for _, r := range reviews {
		if !r.IsApproved || shared.ValidateRating(r.Rating) != nil {
			continue
		}
		sum += r.Rating
		count++
		dist[r.Rating-1]++
	}
	return shared.AverageRating(sum, count), count, dist
}

func countCourses(courses []*course.Course) CourseCounts {
	var c CourseCounts
	for _, crs := range courses {
		addCourse(&c, crs.Status, 1)
	}
	return c
}

func addCourse(c *CourseCounts, s course.Status, n int) {
	c.Total += n
	switch s {
	case course.StatusPublished:
		c.Published += n
	case course.StatusDraft:
		c.Draft += n
	case course.StatusArchived:
		c.Archived += n
	}
}

func courseTitles(courses []*course.Course) map[string]string {
	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	return titles
}

func recentEnrollments(enrollments []*enrollment.Enrollment, titles map[string]string, limit int) []EnrollmentItem {
	sorted := make([]*enrollment.Enrollment, len(enrollments))
	copy(sorted, enrollments)
	sort.SliceStable(sorted, func(i, j int) bool { return tieBefore(sorted[i], sorted[j]) })

	items := make([]EnrollmentItem, 0, limit)
	for _, e := range sorted {
		if len(items) == limit {
			break
		}
		items = append(items, enrollmentItem(e, titles))
	}
	return items
}

func recentReviews(reviews []*review.Review, titles map[string]string, limit int) []ReviewItem {
	sorted := make([]*review.Review, 0, len(reviews))
	for _, r := range reviews {
		if r.IsApproved {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	items := make([]ReviewItem, 0, limit)
	for _, r := range sorted {
		if len(items) == limit {
			break
		}
		items = append(items, ReviewItem{
			ReviewID:    r.ID,
			CourseID:    r.CourseID,
			CourseTitle: titles[r.CourseID],
			StudentID:   r.StudentID,
			Rating:      r.Rating,
			Title:       r.Title,
			CreatedAt:   r.CreatedAt,
		})
	}
	return items
}

func enrollmentItem(e *enrollment.Enrollment, titles map[string]string) EnrollmentItem {
	return EnrollmentItem{
		EnrollmentID:   e.ID,
		StudentID:      e.StudentID,
		CourseID:       e.CourseID,
		CourseTitle:    titles[e.CourseID],
		Status:         e.Status,
		Progress:       e.Progress,
		EnrolledAt:     e.EnrolledAt,
		LastAccessedAt: e.LastAccessedAt,
	}
}

func courseItem(c *course.Course, enrollments int) CourseItem {
	return CourseItem{
		CourseID:     c.ID,
		Title:        c.Title,
		Slug:         c.Slug,
		InstructorID: c.InstructorID,
		Status:       string(c.Status),
		Enrollments:  enrollments,
		CreatedAt:    c.CreatedAt,
	}
}
