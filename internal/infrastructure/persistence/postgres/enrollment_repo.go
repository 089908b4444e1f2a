package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT STORE
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentStore implements enrollment.Store. Outside WithinTx every call
// autocommits; inside it the same repositories run on the transaction and
// GetForUpdate takes a row lock held until commit.
type EnrollmentStore struct {
	conn *Connection
}

// NewEnrollmentStore creates an EnrollmentStore.
func NewEnrollmentStore(conn *Connection) *EnrollmentStore {
	return &EnrollmentStore{conn: conn}
}

// Enrollments implements enrollment.Tx.
func (s *EnrollmentStore) Enrollments() enrollment.Repository {
	return &EnrollmentRepository{q: s.conn, store: s}
}

// Progress implements enrollment.Tx.
func (s *EnrollmentStore) Progress() enrollment.ProgressStore {
	return &ProgressRepository{q: s.conn, store: s}
}

// WithinTx implements enrollment.Store.
func (s *EnrollmentStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx enrollment.Tx) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, boundTx{q: tx})
	})
}

type boundTx struct{ q Querier }

func (t boundTx) Enrollments() enrollment.Repository  { return &EnrollmentRepository{q: t.q} }
func (t boundTx) Progress() enrollment.ProgressStore { return &ProgressRepository{q: t.q} }

// ─────────────────────────────────────────────────────────────────────────────
// Enrollments
// ─────────────────────────────────────────────────────────────────────────────

// EnrollmentRepository implements enrollment.Repository. store is nil when
// the repository is bound to a transaction.
type EnrollmentRepository struct {
	q     Querier
	store *EnrollmentStore
}

const enrollmentColumns = `
	id, student_id, course_id, status, progress, amount_paid, payment_method,
	transaction_id, certificate_issued, certificate_issued_at, certificate_number,
	enrolled_at, completed_at, last_accessed_at, updated_at, version`

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.q.Exec(ctx, query,
		e.ID,
		e.StudentID,
		e.CourseID,
		string(e.Status),
		e.Progress.Hundredths(),
		e.AmountPaid.Cents(),
		e.PaymentMethod,
		e.TransactionID,
		e.CertificateIssued,
		e.CertificateIssuedAt,
		nullString(e.CertificateNumber),
		e.EnrolledAt,
		e.CompletedAt,
		e.LastAccessedAt,
		e.UpdatedAt,
		e.Version,
	)
	if err != nil {
		code, constraint := pgCode(err)
		switch {
		case code == codeUniqueViolation && constraint == "enrollments_pkey":
			return shared.NewDomainError("enrollment", "Create", shared.ErrAlreadyExists, "enrollment id already used")
		case code == codeUniqueViolation:
			return shared.ErrAlreadyEnrolled
		case code == codeForeignKeyViolation && constraint == "enrollments_student_id_fkey":
			return shared.ErrUserNotFound.Detail("student %s not found", e.StudentID)
		case code == codeForeignKeyViolation:
			return shared.ErrCourseNotFound.Detail("course %s not found", e.CourseID)
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// GetByID returns an enrollment by id.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	return scanEnrollment(row, id)
}

// GetForUpdate reads the enrollment and locks its row until the surrounding
// transaction ends. Outside a transaction it behaves like GetByID.
func (r *EnrollmentRepository) GetForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	if r.store != nil {
		return r.GetByID(ctx, id)
	}
	row := r.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id)
	return scanEnrollment(row, id)
}

// FindByStudentAndCourse returns the student's enrollment in a course.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID)
	e, err := scanEnrollment(row, "")
	if err != nil && shared.IsNotFound(err) {
		return nil, shared.ErrEnrollmentNotFound.Detail("student %s is not enrolled in %s", studentID, courseID)
	}
	return e, err
}

// Update writes every mutable field when the stored version still matches
// e.Version, then bumps e.Version.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			status = $1,
			progress = $2,
			certificate_issued = $3,
			certificate_issued_at = $4,
			certificate_number = $5,
			completed_at = $6,
			last_accessed_at = $7,
			updated_at = $8,
			version = version + 1
		WHERE id = $9 AND version = $10
	`

	result, err := r.q.Exec(ctx, query,
		string(e.Status),
		e.Progress.Hundredths(),
		e.CertificateIssued,
		e.CertificateIssuedAt,
		nullString(e.CertificateNumber),
		e.CompletedAt,
		e.LastAccessedAt,
		e.UpdatedAt,
		e.ID,
		e.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Tell a missing row apart from a stale version.
		var version int
		err := r.q.QueryRow(ctx, `SELECT version FROM enrollments WHERE id = $1`, e.ID).Scan(&version)
		if IsNoRows(err) {
			return shared.ErrEnrollmentNotFound.Detail("enrollment %s not found", e.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to read enrollment version: %w", err)
		}
		return shared.ErrConcurrencyConflict.Detail("enrollment %s is at version %d, update was based on %d", e.ID, version, e.Version)
	}

	e.Version++
	return nil
}

// ListByStudent pages through a student's enrollments, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string, opts enrollment.ListOptions) ([]*enrollment.Enrollment, error) {
	opts = opts.Normalize()
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE student_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY enrolled_at DESC, id ASC
		OFFSET $3 LIMIT $4
	`

	rows, err := r.q.Query(ctx, query, studentID, string(opts.Status), opts.Offset, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return collectEnrollments(rows)
}

// CourseIDsWithActivitySince lists courses whose enrollments changed or
// that received a review after since.
func (r *EnrollmentRepository) CourseIDsWithActivitySince(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT course_id FROM enrollments WHERE updated_at > $1
		UNION
		SELECT course_id FROM reviews WHERE created_at > $1
		ORDER BY 1
	`

	rows, err := r.q.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query course activity: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan course ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lesson progress
// ─────────────────────────────────────────────────────────────────────────────

// ProgressRepository implements enrollment.ProgressStore.
type ProgressRepository struct {
	q     Querier
	store *EnrollmentStore
}

const progressColumns = `
	enrollment_id, lesson_id, is_completed, completion_percentage,
	time_spent_minutes, started_at, completed_at, last_accessed_at`

// RecordLessonProgress locks the (enrollment, lesson) row, applies the report
// and writes it back. Outside a transaction it opens one.
func (r *ProgressRepository) RecordLessonProgress(ctx context.Context, enrollmentID, lessonID string, rep enrollment.ProgressReport) (*enrollment.LessonProgress, error) {
	if r.store != nil {
		var out *enrollment.LessonProgress
		err := r.store.WithinTx(ctx, func(ctx context.Context, tx enrollment.Tx) error {
			var err error
			out, err = tx.Progress().RecordLessonProgress(ctx, enrollmentID, lessonID, rep)
			return err
		})
		return out, err
	}

	if err := rep.Validate(); err != nil {
		return nil, err
	}

	row := r.q.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress WHERE enrollment_id = $1 AND lesson_id = $2 FOR UPDATE`,
		enrollmentID, lessonID)
	lp, err := scanLessonProgress(row)
	switch {
	case IsNoRows(err):
		lp = enrollment.NewLessonProgress(enrollmentID, lessonID, rep.At)
	case err != nil:
		return nil, fmt.Errorf("failed to read lesson progress: %w", err)
	}

	lp.Apply(rep)

	upsert := `
		INSERT INTO lesson_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
			is_completed = EXCLUDED.is_completed,
			completion_percentage = EXCLUDED.completion_percentage,
			time_spent_minutes = EXCLUDED.time_spent_minutes,
			completed_at = EXCLUDED.completed_at,
			last_accessed_at = EXCLUDED.last_accessed_at
	`
	_, err = r.q.Exec(ctx, upsert,
		lp.EnrollmentID,
		lp.LessonID,
		lp.IsCompleted,
		lp.CompletionPercentage.Hundredths(),
		lp.TimeSpentMinutes,
		lp.StartedAt,
		lp.CompletedAt,
		lp.LastAccessedAt,
	)
	if err != nil {
		_, constraint := pgCode(err)
		switch {
		case IsForeignKeyViolation(err) && constraint == "lesson_progress_lesson_id_fkey":
			return nil, shared.ErrLessonNotFound.Detail("lesson %s not found", lessonID)
		case IsForeignKeyViolation(err):
			return nil, shared.ErrEnrollmentNotFound.Detail("enrollment %s not found", enrollmentID)
		}
		return nil, fmt.Errorf("failed to save lesson progress: %w", err)
	}
	return lp, nil
}

// CompletedLessonCount counts the enrollment's completed lessons.
func (r *ProgressRepository) CompletedLessonCount(ctx context.Context, enrollmentID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id = $1 AND is_completed`,
		enrollmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	return n, nil
}

// ListByEnrollment returns the enrollment's progress rows in start order.
func (r *ProgressRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*enrollment.LessonProgress, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress WHERE enrollment_id = $1 ORDER BY started_at, lesson_id`,
		enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	defer rows.Close()

	out := []*enrollment.LessonProgress{}
	for rows.Next() {
		lp, err := scanLessonProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson progress: %w", err)
		}
		out = append(out, lp)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanEnrollment(row pgx.Row, id string) (*enrollment.Enrollment, error) {
	var (
		e          enrollment.Enrollment
		status     string
		progress   int
		amountPaid int64
		certNumber *string
	)
	err := row.Scan(
		&e.ID,
		&e.StudentID,
		&e.CourseID,
		&status,
		&progress,
		&amountPaid,
		&e.PaymentMethod,
		&e.TransactionID,
		&e.CertificateIssued,
		&e.CertificateIssuedAt,
		&certNumber,
		&e.EnrolledAt,
		&e.CompletedAt,
		&e.LastAccessedAt,
		&e.UpdatedAt,
		&e.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound.Detail("enrollment %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	e.Status = enrollment.Status(status)
	e.Progress = shared.Percentage(progress)
	e.AmountPaid = shared.Money(amountPaid)
	if certNumber != nil {
		e.CertificateNumber = *certNumber
	}
	return &e, nil
}

func collectEnrollments(rows pgx.Rows) ([]*enrollment.Enrollment, error) {
	defer rows.Close()

	out := []*enrollment.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanLessonProgress(row pgx.Row) (*enrollment.LessonProgress, error) {
	var (
		lp  enrollment.LessonProgress
		pct int
	)
	err := row.Scan(
		&lp.EnrollmentID,
		&lp.LessonID,
		&lp.IsCompleted,
		&pct,
		&lp.TimeSpentMinutes,
		&lp.StartedAt,
		&lp.CompletedAt,
		&lp.LastAccessedAt,
	)
	if err != nil {
		return nil, err
	}
	lp.CompletionPercentage = shared.Percentage(pct)
	return &lp, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
