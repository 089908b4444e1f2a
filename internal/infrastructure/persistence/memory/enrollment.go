package memory

import (
	"context"
	"sort"
	"time"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// enrollment.Store
// ─────────────────────────────────────────────────────────────────────────────

// Enrollments implements enrollment.Tx outside any transaction.
func (s *Store) Enrollments() enrollment.Repository { return autoEnrollments{s} }

// Progress implements enrollment.Tx outside any transaction.
func (s *Store) Progress() enrollment.ProgressStore { return autoProgress{s} }

// WithinTx implements enrollment.Store. Pending writes become visible to
// other readers only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx enrollment.Tx) error) error {
	t := &tx{
		s:           s,
		held:        make(map[string]chan struct{}),
		enrollments: make(map[string]*enrollment.Enrollment),
		progress:    make(map[pairKey]*enrollment.LessonProgress),
	}
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) lockFor(id string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *Store) getLocked(id string) (*enrollment.Enrollment, error) {
	e, ok := s.enrollments[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound.Detail("enrollment %s not found", id)
	}
	return e.Clone(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transaction
// ─────────────────────────────────────────────────────────────────────────────

type tx struct {
	s           *Store
	held        map[string]chan struct{}
	enrollments map[string]*enrollment.Enrollment
	progress    map[pairKey]*enrollment.LessonProgress
}

func (t *tx) Enrollments() enrollment.Repository  { return txEnrollments{t} }
func (t *tx) Progress() enrollment.ProgressStore { return txProgress{t} }

// acquire takes the enrollment's write lock for the rest of the transaction.
func (t *tx) acquire(ctx context.Context, id string) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	ch := t.s.lockFor(id)
	select {
	case ch <- struct{}{}:
		t.held[id] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *tx) release() {
	for id, ch := range t.held {
		<-ch
		delete(t.held, id)
	}
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, e := range t.enrollments {
		t.s.enrollments[id] = e
	}
	for key, lp := range t.progress {
		byLesson, ok := t.s.progress[key.a]
		if !ok {
			byLesson = make(map[string]*enrollment.LessonProgress)
			t.s.progress[key.a] = byLesson
		}
		byLesson[key.b] = lp
	}
}

func (t *tx) enrollment(id string) (*enrollment.Enrollment, error) {
	if e, ok := t.enrollments[id]; ok {
		return e.Clone(), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.getLocked(id)
}

type txEnrollments struct{ t *tx }

func (r txEnrollments) Create(ctx context.Context, e *enrollment.Enrollment) error {
	return autoEnrollments{r.t.s}.Create(ctx, e)
}

func (r txEnrollments) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	return r.t.enrollment(id)
}

func (r txEnrollments) GetForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	if err := r.t.acquire(ctx, id); err != nil {
		return nil, err
	}
	return r.t.enrollment(id)
}

func (r txEnrollments) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	return autoEnrollments{r.t.s}.FindByStudentAndCourse(ctx, studentID, courseID)
}

func (r txEnrollments) Update(ctx context.Context, e *enrollment.Enrollment) error {
	if err := r.t.acquire(ctx, e.ID); err != nil {
		return err
	}
	current, err := r.t.enrollment(e.ID)
	if err != nil {
		return err
	}
	if current.Version != e.Version {
		return shared.ErrConcurrencyConflict.Detail("enrollment %s is at version %d, update was based on %d", e.ID, current.Version, e.Version)
	}
	e.Version++
	r.t.enrollments[e.ID] = e.Clone()
	return nil
}

func (r txEnrollments) ListByStudent(ctx context.Context, studentID string, opts enrollment.ListOptions) ([]*enrollment.Enrollment, error) {
	return autoEnrollments{r.t.s}.ListByStudent(ctx, studentID, opts)
}

func (r txEnrollments) CourseIDsWithActivitySince(ctx context.Context, since time.Time) ([]string, error) {
	return autoEnrollments{r.t.s}.CourseIDsWithActivitySince(ctx, since)
}

type txProgress struct{ t *tx }

func (p txProgress) RecordLessonProgress(_ context.Context, enrollmentID, lessonID string, rep enrollment.ProgressReport) (*enrollment.LessonProgress, error) {
	if err := rep.Validate(); err != nil {
		return nil, err
	}
	if _, err := p.t.enrollment(enrollmentID); err != nil {
		return nil, err
	}

	key := pairKey{enrollmentID, lessonID}
	lp, ok := p.t.progress[key]
	if !ok {
		p.t.s.mu.RLock()
		if _, exists := p.t.s.lessons[lessonID]; !exists {
			p.t.s.mu.RUnlock()
			return nil, shared.ErrLessonNotFound.Detail("lesson %s not found", lessonID)
		}
		if stored, found := p.t.s.progress[enrollmentID][lessonID]; found {
			lp = stored.Clone()
		}
		p.t.s.mu.RUnlock()

		if lp == nil {
			lp = enrollment.NewLessonProgress(enrollmentID, lessonID, rep.At)
		}
		p.t.progress[key] = lp
	}

	lp.Apply(rep)
	return lp.Clone(), nil
}

func (p txProgress) CompletedLessonCount(_ context.Context, enrollmentID string) (int, error) {
	p.t.s.mu.RLock()
	completed := make(map[string]bool, len(p.t.s.progress[enrollmentID]))
	for lessonID, lp := range p.t.s.progress[enrollmentID] {
		completed[lessonID] = lp.IsCompleted
	}
	p.t.s.mu.RUnlock()

	for key, lp := range p.t.progress {
		if key.a == enrollmentID {
			completed[key.b] = lp.IsCompleted
		}
	}

	n := 0
	for _, done := range completed {
		if done {
			n++
		}
	}
	return n, nil
}

func (p txProgress) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*enrollment.LessonProgress, error) {
	merged := make(map[string]*enrollment.LessonProgress)
	p.t.s.mu.RLock()
	for lessonID, lp := range p.t.s.progress[enrollmentID] {
		merged[lessonID] = lp.Clone()
	}
	p.t.s.mu.RUnlock()
	for key, lp := range p.t.progress {
		if key.a == enrollmentID {
			merged[key.b] = lp.Clone()
		}
	}
	return sortedLessons(merged), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Autocommit repositories
// ─────────────────────────────────────────────────────────────────────────────

type autoEnrollments struct{ s *Store }

func (r autoEnrollments) Create(_ context.Context, e *enrollment.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := pairKey{e.StudentID, e.CourseID}
	if _, dup := r.s.byStudentCourse[key]; dup {
		return shared.ErrAlreadyEnrolled
	}
	if _, dup := r.s.enrollments[e.ID]; dup {
		return shared.NewDomainError("enrollment", "Create", shared.ErrAlreadyExists, "enrollment id already used")
	}
	if _, ok := r.s.courses[e.CourseID]; !ok {
		return shared.ErrCourseNotFound.Detail("course %s not found", e.CourseID)
	}
	r.s.enrollments[e.ID] = e.Clone()
	r.s.byStudentCourse[key] = e.ID
	return nil
}

func (r autoEnrollments) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.getLocked(id)
}

func (r autoEnrollments) GetForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	return r.GetByID(ctx, id)
}

func (r autoEnrollments) FindByStudentAndCourse(_ context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byStudentCourse[pairKey{studentID, courseID}]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound.Detail("student %s is not enrolled in %s", studentID, courseID)
	}
	return r.s.getLocked(id)
}

func (r autoEnrollments) Update(ctx context.Context, e *enrollment.Enrollment) error {
	return r.s.WithinTx(ctx, func(ctx context.Context, t enrollment.Tx) error {
		return t.Enrollments().Update(ctx, e)
	})
}

func (r autoEnrollments) ListByStudent(_ context.Context, studentID string, opts enrollment.ListOptions) ([]*enrollment.Enrollment, error) {
	r.s.mu.RLock()
	var all []*enrollment.Enrollment
	for _, e := range r.s.enrollments {
		if e.StudentID == studentID && (opts.Status == "" || e.Status == opts.Status) {
			all = append(all, e.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].EnrolledAt.Equal(all[j].EnrolledAt) {
			return all[i].EnrolledAt.After(all[j].EnrolledAt)
		}
		return all[i].ID < all[j].ID
	})

	opts = opts.Normalize()
	if opts.Offset >= len(all) {
		return []*enrollment.Enrollment{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

func (r autoEnrollments) CourseIDsWithActivitySince(_ context.Context, since time.Time) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range r.s.enrollments {
		if e.UpdatedAt.After(since) {
			seen[e.CourseID] = struct{}{}
		}
	}
	for _, rv := range r.s.reviews {
		if rv.CreatedAt.After(since) {
			seen[rv.CourseID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type autoProgress struct{ s *Store }

func (p autoProgress) RecordLessonProgress(ctx context.Context, enrollmentID, lessonID string, rep enrollment.ProgressReport) (*enrollment.LessonProgress, error) {
	var out *enrollment.LessonProgress
	err := p.s.WithinTx(ctx, func(ctx context.Context, t enrollment.Tx) error {
		var err error
		out, err = t.Progress().RecordLessonProgress(ctx, enrollmentID, lessonID, rep)
		return err
	})
	return out, err
}

func (p autoProgress) CompletedLessonCount(_ context.Context, enrollmentID string) (int, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	n := 0
	for _, lp := range p.s.progress[enrollmentID] {
		if lp.IsCompleted {
			n++
		}
	}
	return n, nil
}

func (p autoProgress) ListByEnrollment(_ context.Context, enrollmentID string) ([]*enrollment.LessonProgress, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	merged := make(map[string]*enrollment.LessonProgress, len(p.s.progress[enrollmentID]))
	for lessonID, lp := range p.s.progress[enrollmentID] {
		merged[lessonID] = lp.Clone()
	}
	return sortedLessons(merged), nil
}

func sortedLessons(m map[string]*enrollment.LessonProgress) []*enrollment.LessonProgress {
	out := make([]*enrollment.LessonProgress, 0, len(m))
	for _, lp := range m {
		out = append(out, lp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].LessonID < out[j].LessonID
	})
	return out
}
