package memory

import (
	"context"
	"sort"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/internal/domain/user"
)

// ReadSnapshot implements stats.SnapshotSource. Commits wait until fn returns,
// so everything fn reads belongs to one state of the store.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r stats.SnapshotReader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, snapshot{s})
}

// snapshot methods run under the read lock taken by ReadSnapshot and must
// not lock again.
type snapshot struct{ s *Store }

func (r snapshot) Course(_ context.Context, courseID string) (*course.Course, error) {
	c, err := r.s.courseLocked(courseID)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (r snapshot) CoursesByInstructor(_ context.Context, instructorID string) ([]*course.Course, error) {
	var out []*course.Course
	for _, c := range r.s.courses {
		if c.InstructorID == instructorID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sortCourses(out, false)
	return out, nil
}

func (r snapshot) CoursesByIDs(_ context.Context, ids []string) ([]*course.Course, error) {
	out := make([]*course.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.s.courses[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r snapshot) EnrollmentsForCourses(_ context.Context, courseIDs []string) ([]*enrollment.Enrollment, error) {
	want := idSet(courseIDs)
	var out []*enrollment.Enrollment
	for _, e := range r.s.enrollments {
		if _, ok := want[e.CourseID]; ok {
			out = append(out, e.Clone())
		}
	}
	sortEnrollments(out)
	return out, nil
}

func (r snapshot) EnrollmentsForStudent(_ context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	for _, e := range r.s.enrollments {
		if e.StudentID == studentID {
			out = append(out, e.Clone())
		}
	}
	sortEnrollments(out)
	return out, nil
}

func (r snapshot) ReviewsForCourses(_ context.Context, courseIDs []string) ([]*review.Review, error) {
	want := idSet(courseIDs)
	var out []*review.Review
	for _, rv := range r.s.reviews {
		if _, ok := want[rv.CourseID]; ok {
			cp := *rv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r snapshot) PlatformCounts(_ context.Context) (stats.PlatformCounts, error) {
	pc := stats.PlatformCounts{
		UsersByType:         make(map[user.Type]int),
		CoursesByStatus:     make(map[course.Status]int),
		EnrollmentsByStatus: make(map[enrollment.Status]int),
		RevenueByStatus:     make(map[enrollment.Status]shared.Money),
	}
	for _, rv := range r.s.reviews {
		if rv.IsApproved {
			pc.TotalReviews++
		}
	}
	for _, u := range r.s.users {
		pc.UsersByType[u.Type]++
	}
	for _, c := range r.s.courses {
		pc.CoursesByStatus[c.Status]++
	}
	for _, e := range r.s.enrollments {
		pc.EnrollmentsByStatus[e.Status]++
		pc.RevenueByStatus[e.Status] = pc.RevenueByStatus[e.Status].Add(e.AmountPaid)
	}
	return pc, nil
}

func (r snapshot) RecentUsers(_ context.Context, limit int) ([]user.User, error) {
	out := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.After(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r snapshot) RecentCourses(_ context.Context, limit int) ([]*course.Course, error) {
	out := make([]*course.Course, 0, len(r.s.courses))
	for _, c := range r.s.courses {
		cp := *c
		out = append(out, &cp)
	}
	sortCourses(out, true)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r snapshot) TopCourses(_ context.Context, limit int) ([]stats.CourseEnrollmentCount, error) {
	perCourse := make(map[string]int, len(r.s.courses))
	for _, e := range r.s.enrollments {
		perCourse[e.CourseID]++
	}
	counts := make([]stats.CourseEnrollmentCount, 0, len(r.s.courses))
	for _, c := range r.s.courses {
		cp := *c
		counts = append(counts, stats.CourseEnrollmentCount{Course: &cp, Enrollments: perCourse[c.ID]})
	}
	return stats.RankTopCourses(counts, limit), nil
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortCourses(cs []*course.Course, newestFirst bool) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			if newestFirst {
				return cs[i].CreatedAt.After(cs[j].CreatedAt)
			}
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

func sortEnrollments(es []*enrollment.Enrollment) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].EnrolledAt.Equal(es[j].EnrolledAt) {
			return es[i].EnrolledAt.After(es[j].EnrolledAt)
		}
		return es[i].ID < es[j].ID
	})
}
