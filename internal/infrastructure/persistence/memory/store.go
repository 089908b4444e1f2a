// Package memory is an in-process implementation of the persistence
// contracts. It mirrors the postgres semantics that matter to the ledger:
// per-enrollment write locks held for a transaction's lifetime, a unique
// (student, course) constraint, optimistic version checks, and snapshot reads.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/user"
)

type pairKey struct{ a, b string }

// Store holds all data in maps guarded by one RWMutex. Enrollment write
// locks are separate so that writers of different enrollments never wait on
// each other except for the short commit section.
type Store struct {
	mu sync.RWMutex

	enrollments     map[string]*enrollment.Enrollment
	byStudentCourse map[pairKey]string
	progress        map[string]map[string]*enrollment.LessonProgress

	courses  map[string]*course.Course
	lessons  map[string]course.Lesson
	reviews  map[string]*review.Review
	reviewBy map[pairKey]string
	users    map[string]user.User
	profiles map[string]course.InstructorProfile

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		enrollments:     make(map[string]*enrollment.Enrollment),
		byStudentCourse: make(map[pairKey]string),
		progress:        make(map[string]map[string]*enrollment.LessonProgress),
		courses:         make(map[string]*course.Course),
		lessons:         make(map[string]course.Lesson),
		reviews:         make(map[string]*review.Review),
		reviewBy:        make(map[pairKey]string),
		users:           make(map[string]user.User),
		profiles:        make(map[string]course.InstructorProfile),
		locks:           make(map[string]chan struct{}),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog seeding
// ─────────────────────────────────────────────────────────────────────────────

// AddCourse inserts or replaces a course.
func (s *Store) AddCourse(c course.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = &c
}

// AddLesson attaches a lesson to its course.
func (s *Store) AddLesson(l course.Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = l
}

// AddUser inserts or replaces a user.
func (s *Store) AddUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// ─────────────────────────────────────────────────────────────────────────────
// course.StructureProvider
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) courseLocked(id string) (*course.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound.Detail("course %s not found", id)
	}
	return c, nil
}

// LessonCount implements course.StructureProvider.
func (s *Store) LessonCount(_ context.Context, courseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.courseLocked(courseID); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range s.lessons {
		if l.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// CoursePrice implements course.StructureProvider.
func (s *Store) CoursePrice(_ context.Context, courseID string) (shared.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.courseLocked(courseID)
	if err != nil {
		return 0, err
	}
	return c.EnrollmentPrice(), nil
}

// CoursePublished implements course.StructureProvider.
func (s *Store) CoursePublished(_ context.Context, courseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.courseLocked(courseID)
	if err != nil {
		return false, err
	}
	return c.IsPublished(), nil
}

// HasLesson implements course.StructureProvider.
func (s *Store) HasLesson(_ context.Context, courseID, lessonID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[lessonID]
	return ok && l.CourseID == courseID, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// course.Repository
// ─────────────────────────────────────────────────────────────────────────────

// Courses returns the store as a course.Repository.
func (s *Store) Courses() course.Repository { return courseRepo{s} }

type courseRepo struct{ s *Store }

func (r courseRepo) GetByID(_ context.Context, id string) (*course.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, err := r.s.courseLocked(id)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (r courseRepo) ListIDs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]string, 0, len(r.s.courses))
	for id := range r.s.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r courseRepo) SaveCachedStats(_ context.Context, courseID string, st course.CachedStats) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, err := r.s.courseLocked(courseID)
	if err != nil {
		return err
	}
	c.TotalStudents = st.TotalStudents
	c.AverageRating = st.AverageRating
	c.TotalReviews = st.TotalReviews
	return nil
}

func (r courseRepo) SaveInstructorProfile(_ context.Context, p course.InstructorProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.profiles[p.UserID] = p
	return nil
}

func (r courseRepo) GetInstructorProfile(_ context.Context, userID string) (*course.InstructorProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, shared.ErrUserNotFound.Detail("no instructor profile for %s", userID)
	}
	return &p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// review.Repository
// ─────────────────────────────────────────────────────────────────────────────

// Reviews returns the store as a review.Repository.
func (s *Store) Reviews() review.Repository { return reviewRepo{s} }

type reviewRepo struct{ s *Store }

func (r reviewRepo) Create(_ context.Context, rv *review.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey{rv.CourseID, rv.StudentID}
	if _, dup := r.s.reviewBy[key]; dup {
		return shared.ErrReviewExists
	}
	cp := *rv
	r.s.reviews[rv.ID] = &cp
	r.s.reviewBy[key] = rv.ID
	return nil
}

func (r reviewRepo) ReviewsFor(_ context.Context, courseID string) ([]review.RatingPoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []review.RatingPoint
	for _, rv := range r.s.reviews {
		if rv.CourseID == courseID && rv.IsApproved {
			out = append(out, review.RatingPoint{Rating: rv.Rating, CreatedAt: rv.CreatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
