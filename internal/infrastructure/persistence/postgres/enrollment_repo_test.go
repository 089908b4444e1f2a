package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Querier stub
// ═══════════════════════════════════════════════════════════════════════════

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *int:
			*d = v.(int)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

type stubQuerier struct {
	execTag string
	execErr error
	row     stubRow
	execs   int
}

func (q *stubQuerier) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	q.execs++
	return pgconn.NewCommandTag(q.execTag), q.execErr
}

func (q *stubQuerier) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("query not stubbed")
}

func (q *stubQuerier) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return q.row
}

var repoNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newTestEnrollment(t *testing.T) *enrollment.Enrollment {
	t.Helper()
	e, err := enrollment.NewEnrollment(enrollment.NewEnrollmentParams{
		ID: "e-1", StudentID: "s-1", CourseID: "c-1", AmountPaid: 5000, Now: repoNow,
	})
	require.NoError(t, err)
	return e
}

func pgErr(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

// ═══════════════════════════════════════════════════════════════════════════
// Error mapping
// ═══════════════════════════════════════════════════════════════════════════

func TestPgCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantCode       string
		wantConstraint string
	}{
		{"unique", pgErr("23505", "enrollments_student_id_course_id_key"), "23505", "enrollments_student_id_course_id_key"},
		{"wrapped foreign key", fmt.Errorf("exec: %w", pgErr("23503", "lesson_progress_lesson_id_fkey")), "23503", "lesson_progress_lesson_id_fkey"},
		{"not a postgres error", errors.New("connection reset"), "", ""},
		{"nil", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, constraint := pgCode(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantConstraint, constraint)
		})
	}
}

func TestEnrollmentRepository_CreateMapsConstraintErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "duplicate student and course",
			err:  pgErr(codeUniqueViolation, "enrollments_student_id_course_id_key"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrAlreadyEnrolled)
			},
		},
		{
			name: "duplicate id",
			err:  pgErr(codeUniqueViolation, "enrollments_pkey"),
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsAlreadyExists(err))
				assert.NotErrorIs(t, err, shared.ErrAlreadyEnrolled)
			},
		},
		{
			name: "unknown student",
			err:  pgErr(codeForeignKeyViolation, "enrollments_student_id_fkey"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrUserNotFound)
			},
		},
		{
			name: "unknown course",
			err:  pgErr(codeForeignKeyViolation, "enrollments_course_id_fkey"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrCourseNotFound)
			},
		},
		{
			name: "infrastructure failure",
			err:  errors.New("connection reset"),
			check: func(t *testing.T, err error) {
				assert.False(t, shared.IsNotFound(err) || shared.IsAlreadyExists(err))
				assert.Contains(t, err.Error(), "connection reset")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &EnrollmentRepository{q: &stubQuerier{execErr: tt.err}}
			err := repo.Create(context.Background(), newTestEnrollment(t))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestEnrollmentRepository_UpdateVersionCheck(t *testing.T) {
	t.Run("stale version is a conflict", func(t *testing.T) {
		e := newTestEnrollment(t)
		repo := &EnrollmentRepository{q: &stubQuerier{execTag: "UPDATE 0", row: stubRow{values: []any{e.Version + 1}}}}

		err := repo.Update(context.Background(), e)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.True(t, shared.IsConflict(err))
		assert.Equal(t, 1, e.Version)
	})

	t.Run("missing row is not found", func(t *testing.T) {
		e := newTestEnrollment(t)
		repo := &EnrollmentRepository{q: &stubQuerier{execTag: "UPDATE 0", row: stubRow{err: pgx.ErrNoRows}}}

		assert.ErrorIs(t, repo.Update(context.Background(), e), shared.ErrEnrollmentNotFound)
	})

	t.Run("matching version bumps it", func(t *testing.T) {
		e := newTestEnrollment(t)
		repo := &EnrollmentRepository{q: &stubQuerier{execTag: "UPDATE 1"}}

		require.NoError(t, repo.Update(context.Background(), e))
		assert.Equal(t, 2, e.Version)
	})
}

func TestProgressRepository_RecordMapsForeignKeys(t *testing.T) {
	report := enrollment.ProgressReport{CompletionPct: 5000, MinutesDelta: 10, At: repoNow}

	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"unknown lesson", "lesson_progress_lesson_id_fkey", shared.ErrLessonNotFound},
		{"unknown enrollment", "lesson_progress_enrollment_id_fkey", shared.ErrEnrollmentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &stubQuerier{
				row:     stubRow{err: pgx.ErrNoRows},
				execErr: pgErr(codeForeignKeyViolation, tt.constraint),
			}
			repo := &ProgressRepository{q: q}

			_, err := repo.RecordLessonProgress(context.Background(), "e-1", "l-1", report)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, q.execs)
		})
	}
}

func TestProgressRepository_RecordRejectsInvalidReportWithoutWriting(t *testing.T) {
	q := &stubQuerier{row: stubRow{err: pgx.ErrNoRows}}
	repo := &ProgressRepository{q: q}

	_, err := repo.RecordLessonProgress(context.Background(), "e-1", "l-1",
		enrollment.ProgressReport{CompletionPct: 5000, MinutesDelta: -1, At: repoNow})
	assert.ErrorIs(t, err, shared.ErrNegativeMinutes)
	assert.Zero(t, q.execs)
}
