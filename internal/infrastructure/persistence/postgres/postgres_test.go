package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/review"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
)

func TestImplementsDomainInterfaces(t *testing.T) {
	var (
		_ enrollment.Store         = (*EnrollmentStore)(nil)
		_ course.StructureProvider = (*CourseRepository)(nil)
		_ course.Repository        = (*CourseRepository)(nil)
		_ review.Repository        = (*ReviewRepository)(nil)
		_ stats.SnapshotSource     = (*SnapshotSource)(nil)
	)
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=learnhub user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/learnhub"
	assert.Equal(t, "postgres://u:p@db:5432/learnhub", cfg.DSN())
}

func TestConfig_PoolConfigKeepsLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConns = 7

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, "learnhub", pc.ConnConfig.Database)
}

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "enrollments_student_course_key"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsForeignKeyViolation(unique))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))

	code, constraint := pgCode(unique)
	assert.Equal(t, "23505", code)
	assert.Equal(t, "enrollments_student_course_key", constraint)
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "c.id, c.title", prefixed("c.", "\n\tid,\n\ttitle"))
}
