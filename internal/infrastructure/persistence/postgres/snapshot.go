package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotSource implements stats.SnapshotSource with a REPEATABLE READ,
// read-only transaction per snapshot.
type SnapshotSource struct {
	conn *Connection
}

// NewSnapshotSource creates a SnapshotSource.
func NewSnapshotSource(conn *Connection) *SnapshotSource {
	return &SnapshotSource{conn: conn}
}

// ReadSnapshot runs fn against one consistent view of the database.
func (s *SnapshotSource) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r stats.SnapshotReader) error) error {
	return s.conn.WithTx(ctx, SnapshotTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, snapshotReader{q: tx})
	})
}

type snapshotReader struct{ q Querier }

func (r snapshotReader) Course(ctx context.Context, courseID string) (*course.Course, error) {
	c, err := scanCourse(r.q.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, courseID))
	if err != nil {
		return nil, courseErr(err, courseID, "get course")
	}
	return c, nil
}

func (r snapshotReader) CoursesByInstructor(ctx context.Context, instructorID string) ([]*course.Course, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE instructor_id = $1 ORDER BY created_at, id`,
		instructorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instructor courses: %w", err)
	}
	return collectCourses(rows)
}

func (r snapshotReader) CoursesByIDs(ctx context.Context, ids []string) ([]*course.Course, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ANY($1) ORDER BY created_at, id`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return collectCourses(rows)
}

func (r snapshotReader) EnrollmentsForCourses(ctx context.Context, courseIDs []string) ([]*enrollment.Enrollment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE course_id = ANY($1) ORDER BY enrolled_at DESC, id`,
		courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list course enrollments: %w", err)
	}
	return collectEnrollments(rows)
}

func (r snapshotReader) EnrollmentsForStudent(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC, id`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student enrollments: %w", err)
	}
	return collectEnrollments(rows)
}

func (r snapshotReader) ReviewsForCourses(ctx context.Context, courseIDs []string) ([]*review.Review, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE course_id = ANY($1) ORDER BY created_at DESC, id`,
		courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	out := []*review.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// PlatformCounts reads every grouped count in one round trip per table.
func (r snapshotReader) PlatformCounts(ctx context.Context) (stats.PlatformCounts, error) {
	pc := stats.PlatformCounts{
		UsersByType:         make(map[user.Type]int),
		CoursesByStatus:     make(map[course.Status]int),
		EnrollmentsByStatus: make(map[enrollment.Status]int),
		RevenueByStatus:     make(map[enrollment.Status]shared.Money),
	}

	err := r.grouped(ctx, `SELECT user_type, COUNT(*), 0 FROM users GROUP BY user_type`,
		func(key string, n int, _ int64) { pc.UsersByType[user.Type(key)] = n })
	if err != nil {
		return pc, err
	}
	err = r.grouped(ctx, `SELECT status, COUNT(*), 0 FROM courses GROUP BY status`,
		func(key string, n int, _ int64) { pc.CoursesByStatus[course.Status(key)] = n })
	if err != nil {
		return pc, err
	}
	err = r.grouped(ctx, `SELECT status, COUNT(*), COALESCE(SUM(amount_paid), 0) FROM enrollments GROUP BY status`,
		func(key string, n int, sum int64) {
			pc.EnrollmentsByStatus[enrollment.Status(key)] = n
			pc.RevenueByStatus[enrollment.Status(key)] = shared.Money(sum)
		})
	if err != nil {
		return pc, err
	}

	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE is_approved`).Scan(&pc.TotalReviews); err != nil {
		return pc, fmt.Errorf("failed to count reviews: %w", err)
	}
	return pc, nil
}

func (r snapshotReader) grouped(ctx context.Context, query string, fn func(key string, n int, sum int64)) error {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run grouped count: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
			sum int64
		)
		if err := rows.Scan(&key, &n, &sum); err != nil {
			return fmt.Errorf("failed to scan grouped count: %w", err)
		}
		fn(key, n, sum)
	}
	return rows.Err()
}

func (r snapshotReader) RecentUsers(ctx context.Context, limit int) ([]user.User, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_type, first_name, last_name, email, joined_at
		FROM users ORDER BY joined_at DESC, id LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent users: %w", err)
	}
	defer rows.Close()

	out := []user.User{}
	for rows.Next() {
		var (
			u        user.User
			userType string
		)
		if err := rows.Scan(&u.ID, &userType, &u.FirstName, &u.LastName, &u.Email, &u.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Type = user.Type(userType)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r snapshotReader) RecentCourses(ctx context.Context, limit int) ([]*course.Course, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent courses: %w", err)
	}
	return collectCourses(rows)
}

// TopCourses counts enrollments per published course in SQL and leaves the
// tie-break ordering to stats.RankTopCourses.
func (r snapshotReader) TopCourses(ctx context.Context, limit int) ([]stats.CourseEnrollmentCount, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+prefixed("c.", courseColumns)+`, COUNT(e.id)
		FROM courses c
		LEFT JOIN enrollments e ON e.course_id = c.id
		WHERE c.status = 'published'
		GROUP BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count course enrollments: %w", err)
	}
	defer rows.Close()

	var counts []stats.CourseEnrollmentCount
	for rows.Next() {
		var (
			c      course.Course
			status string
			price  int64
			n      int
		)
		err := rows.Scan(
			&c.ID, &c.InstructorID, &c.Title, &c.Slug, &status, &price, &c.IsFree,
			&c.CreatedAt, &c.PublishedAt, &c.TotalStudents, &c.AverageRating, &c.TotalReviews,
			&n,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course count: %w", err)
		}
		c.Status = course.Status(status)
		c.Price = shared.Money(price)
		counts = append(counts, stats.CourseEnrollmentCount{Course: &c, Enrollments: n})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats.RankTopCourses(counts, limit), nil
}
