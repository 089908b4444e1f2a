package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository and course.StructureProvider.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

const courseColumns = `
	id, instructor_id, title, slug, status, price, is_free, created_at,
	published_at, total_students, average_rating, total_reviews`

// ─────────────────────────────────────────────────────────────────────────────
// Structure
// ─────────────────────────────────────────────────────────────────────────────

// LessonCount returns how many lessons the course has.
func (r *CourseRepository) LessonCount(ctx context.Context, courseID string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM lessons WHERE course_id = c.id) FROM courses c WHERE c.id = $1`,
		courseID).Scan(&n)
	if err != nil {
		return 0, courseErr(err, courseID, "count lessons")
	}
	return n, nil
}

// CoursePrice returns the price a new enrollment pays: zero for free courses.
func (r *CourseRepository) CoursePrice(ctx context.Context, courseID string) (shared.Money, error) {
	var (
		price  int64
		isFree bool
	)
	err := r.conn.QueryRow(ctx, `SELECT price, is_free FROM courses WHERE id = $1`, courseID).Scan(&price, &isFree)
	if err != nil {
		return 0, courseErr(err, courseID, "read price")
	}
	c := course.Course{Price: shared.Money(price), IsFree: isFree}
	return c.EnrollmentPrice(), nil
}

// CoursePublished reports whether the course accepts enrollments.
func (r *CourseRepository) CoursePublished(ctx context.Context, courseID string) (bool, error) {
	var status string
	err := r.conn.QueryRow(ctx, `SELECT status FROM courses WHERE id = $1`, courseID).Scan(&status)
	if err != nil {
		return false, courseErr(err, courseID, "read status")
	}
	return course.Status(status) == course.StatusPublished, nil
}

// HasLesson reports whether lessonID belongs to the course.
func (r *CourseRepository) HasLesson(ctx context.Context, courseID, lessonID string) (bool, error) {
	var ok bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lessons WHERE id = $1 AND course_id = $2)`,
		lessonID, courseID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to look up lesson: %w", err)
	}
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Courses and cached stats
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a course by id.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*course.Course, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	c, err := scanCourse(row)
	if err != nil {
		return nil, courseErr(err, id, "get course")
	}
	return c, nil
}

// ListIDs returns every course id in ascending order.
func (r *CourseRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT id FROM courses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan course ids: %w", err)
	}
	return ids, nil
}

// SaveCachedStats overwrites the course's derived counters.
func (r *CourseRepository) SaveCachedStats(ctx context.Context, courseID string, st course.CachedStats) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE courses SET
			total_students = $1,
			average_rating = $2,
			total_reviews = $3
		WHERE id = $4
	`, st.TotalStudents, st.AverageRating, st.TotalReviews, courseID)
	if err != nil {
		return fmt.Errorf("failed to save course stats: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCourseNotFound.Detail("course %s not found", courseID)
	}
	return nil
}

// SaveInstructorProfile upserts the instructor's aggregate profile.
func (r *CourseRepository) SaveInstructorProfile(ctx context.Context, p course.InstructorProfile) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO instructor_profiles (user_id, total_students, total_courses, average_rating, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			total_students = EXCLUDED.total_students,
			total_courses = EXCLUDED.total_courses,
			average_rating = EXCLUDED.average_rating,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.TotalStudents, p.TotalCourses, p.AverageRating, p.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrUserNotFound.Detail("instructor %s not found", p.UserID)
		}
		return fmt.Errorf("failed to save instructor profile: %w", err)
	}
	return nil
}

// GetInstructorProfile returns the instructor's aggregate profile.
func (r *CourseRepository) GetInstructorProfile(ctx context.Context, userID string) (*course.InstructorProfile, error) {
	var p course.InstructorProfile
	err := r.conn.QueryRow(ctx, `
		SELECT user_id, total_students, total_courses, average_rating, updated_at
		FROM instructor_profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.TotalStudents, &p.TotalCourses, &p.AverageRating, &p.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound.Detail("no instructor profile for %s", userID)
		}
		return nil, fmt.Errorf("failed to get instructor profile: %w", err)
	}
	return &p, nil
}

func scanCourse(row pgx.Row) (*course.Course, error) {
	var (
		c      course.Course
		status string
		price  int64
	)
	err := row.Scan(
		&c.ID,
		&c.InstructorID,
		&c.Title,
		&c.Slug,
		&status,
		&price,
		&c.IsFree,
		&c.CreatedAt,
		&c.PublishedAt,
		&c.TotalStudents,
		&c.AverageRating,
		&c.TotalReviews,
	)
	if err != nil {
		return nil, err
	}
	c.Status = course.Status(status)
	c.Price = shared.Money(price)
	return &c, nil
}

func collectCourses(rows pgx.Rows) ([]*course.Course, error) {
	defer rows.Close()

	out := []*course.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// prefixed qualifies each column of a column list with a table alias.
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func courseErr(err error, courseID, op string) error {
	if IsNoRows(err) {
		return shared.ErrCourseNotFound.Detail("course %s not found", courseID)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ReviewRepository implements review.Repository.
type ReviewRepository struct {
	conn *Connection
}

// NewReviewRepository creates a ReviewRepository.
func NewReviewRepository(conn *Connection) *ReviewRepository {
	return &ReviewRepository{conn: conn}
}

const reviewColumns = `id, course_id, student_id, rating, title, comment, is_approved, created_at`

// Create inserts a review. A second review by the same student for the same
// course is rejected with ErrReviewExists.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rv.ID, rv.CourseID, rv.StudentID, rv.Rating, rv.Title, rv.Comment, rv.IsApproved, rv.CreatedAt)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return shared.ErrReviewExists
		case IsForeignKeyViolation(err):
			return shared.ErrCourseNotFound.Detail("course %s not found", rv.CourseID)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// ReviewsFor returns the approved ratings of a course, oldest first.
func (r *ReviewRepository) ReviewsFor(ctx context.Context, courseID string) ([]review.RatingPoint, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT rating, created_at FROM reviews
		WHERE course_id = $1 AND is_approved
		ORDER BY created_at
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var out []review.RatingPoint
	for rows.Next() {
		var p review.RatingPoint
		if err := rows.Scan(&p.Rating, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanReview(row pgx.Row) (*review.Review, error) {
	var rv review.Review
	err := row.Scan(&rv.ID, &rv.CourseID, &rv.StudentID, &rv.Rating, &rv.Title, &rv.Comment, &rv.IsApproved, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}
