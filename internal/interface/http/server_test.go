package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/config"
	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/application/query"
	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/internal/infrastructure/persistence/memory"
	"github.com/learnhub/learnhub-core/internal/interface/http/handlers"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

type testAPI struct {
	t        *testing.T
	server   *Server
	store    *memory.Store
	features *config.FeatureFlags
	health   *handlers.CompositeHealthChecker
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.NewStore()
	clock := timeutil.NewFixedClock(t0)
	seq := 0
	opts := command.Options{Clock: clock, NewID: func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}}

	published := t0.Add(-48 * time.Hour)
	store.AddCourse(course.Course{
		ID: "c-go", InstructorID: "i-1", Title: "Go in Practice", Status: course.StatusPublished,
		Price: 5000, CreatedAt: published, PublishedAt: &published,
	})
	store.AddLesson(course.Lesson{ID: "l-1", SectionID: "s-1", CourseID: "c-go", Order: 1})
	store.AddLesson(course.Lesson{ID: "l-2", SectionID: "s-1", CourseID: "c-go", Order: 2})
	store.AddCourse(course.Course{
		ID: "c-draft", InstructorID: "i-1", Title: "Draft", Status: course.StatusDraft, CreatedAt: published,
	})

	policy := stats.DefaultPolicy()
	features := config.NewFeatureFlags()
	health := handlers.NewCompositeHealthChecker("test")

	srv := NewServer(DefaultConfig(), Dependencies{
		Enroll:           command.NewEnrollHandler(store, store, opts),
		ReportProgress:   command.NewReportLessonProgressHandler(store, store, opts),
		IssueCertificate: command.NewIssueCertificateHandler(store, opts),
		ChangeStatus:     command.NewChangeStatusHandler(store, opts),
		SubmitReview:     command.NewSubmitReviewHandler(store.Enrollments(), store.Reviews(), opts),
		Enrollments:      query.NewEnrollmentsHandler(store),
		CourseStats:      query.NewCourseStatsHandler(store, nil, nil, query.CourseStatsHandlerConfig{Policy: policy, Clock: clock}),
		InstructorStats:  query.NewInstructorStatsHandler(store, policy, clock),
		StudentStats:     query.NewStudentStatsHandler(store, policy, clock),
		PlatformStats:    query.NewPlatformStatsHandler(store, policy, clock),
		Features:         features,
		HealthChecker:    health,
	})

	return &testAPI{t: t, server: srv, store: store, features: features, health: health}
}

// do sends a request as userID with role typ. An empty userID sends no
// identity headers.
func (a *testAPI) do(method, path, userID, typ string, body interface{}) (int, envelope) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	if typ != "" {
		req.Header.Set(headerUserType, typ)
	}

	resp, err := a.server.App().Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (a *testAPI) enroll(studentID string) EnrollmentResponse {
	a.t.Helper()
	status, env := a.do(fiber.MethodPost, "/api/v1/courses/c-go/enroll", studentID, "", nil)
	require.Equal(a.t, fiber.StatusCreated, status, "enroll: %+v", env.Error)
	var e EnrollmentResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &e))
	return e
}

func progressBody(pct float64, completed bool, minutes int) fiber.Map {
	return fiber.Map{"completion_percentage": pct, "is_completed": completed, "minutes_spent": minutes}
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(fiber.MethodGet, "/live", "", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	api.health.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	status, env = api.do(fiber.MethodGet, "/health", "", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	var hs handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &hs))
	assert.True(t, hs.Degraded)

	api.health.AddCheck("postgres", func(context.Context) error { return errors.New("down") })
	status, _ = api.do(fiber.MethodGet, "/health", "", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	status, _ = api.do(fiber.MethodGet, "/ready", "", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestIdentityRequired(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(fiber.MethodGet, "/api/v1/enrollments", "", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeUnauthorized, env.Error.Code)

	status, env = api.do(fiber.MethodGet, "/api/v1/enrollments", "s-1", "superuser", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(fiber.MethodGet, "/live", nil)
	req.Header.Set(headerRequestID, "req-42")
	resp, err := api.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get(headerRequestID))
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "req-42", env.RequestID)
}

func TestEnroll(t *testing.T) {
	api := newTestAPI(t)

	e := api.enroll("s-1")
	assert.Equal(t, "active", e.Status)
	assert.Equal(t, "c-go", e.CourseID)
	assert.Equal(t, int64(5000), e.AmountPaid.Cents())

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"duplicate", "/api/v1/courses/c-go/enroll", fiber.StatusConflict, CodeAlreadyExists},
		{"draft course", "/api/v1/courses/c-draft/enroll", fiber.StatusUnprocessableEntity, CodePrecondition},
		{"unknown course", "/api/v1/courses/c-nope/enroll", fiber.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.do(fiber.MethodPost, tt.path, "s-1", "", nil)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestProgressCompletesEnrollmentAndIssuesCertificate(t *testing.T) {
	api := newTestAPI(t)
	e := api.enroll("s-1")
	base := "/api/v1/enrollments/" + e.ID

	status, env := api.do(fiber.MethodPost, base+"/lessons/l-1/progress", "s-1", "", progressBody(100, true, 15))
	require.Equal(t, fiber.StatusOK, status)
	var pr ProgressResponse
	require.NoError(t, json.Unmarshal(env.Data, &pr))
	assert.Equal(t, 5000, pr.Enrollment.Progress.Hundredths())
	assert.False(t, pr.CompletedNow)

	status, _ = api.do(fiber.MethodPost, base+"/certificate", "s-1", "", nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, env = api.do(fiber.MethodPost, base+"/lessons/l-2/progress", "s-1", "", progressBody(100, true, 20))
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &pr))
	assert.True(t, pr.CompletedNow)
	assert.Equal(t, "completed", pr.Enrollment.Status)
	assert.NotNil(t, pr.Enrollment.CompletedAt)

	status, _ = api.do(fiber.MethodPost, base+"/certificate", "s-1", "", nil)
	assert.Equal(t, fiber.StatusCreated, status)
	status, env = api.do(fiber.MethodPost, base+"/certificate", "s-1", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	status, env = api.do(fiber.MethodGet, base, "s-1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var got EnrollmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.CertificateIssued)
	assert.Len(t, got.Lessons, 2)
}

func TestProgress_OtherStudentSeesNotFound(t *testing.T) {
	api := newTestAPI(t)
	e := api.enroll("s-1")

	status, env := api.do(fiber.MethodPost, "/api/v1/enrollments/"+e.ID+"/lessons/l-1/progress", "s-2", "", progressBody(50, false, 5))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	status, _ = api.do(fiber.MethodGet, "/api/v1/enrollments/"+e.ID, "a-1", "admin", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestProgress_Validation(t *testing.T) {
	api := newTestAPI(t)
	e := api.enroll("s-1")
	path := "/api/v1/enrollments/" + e.ID + "/lessons/l-1/progress"

	status, env := api.do(fiber.MethodPost, path, "s-1", "", progressBody(40, false, -1))
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeValidation, env.Error.Code)
	assert.Contains(t, env.Error.Details, "minutes_spent")

	status, env = api.do(fiber.MethodPost, path, "s-1", "", fiber.Map{"minutes_spent": 3})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, env.Error.Details, "completion_percentage")

	status, env = api.do(fiber.MethodPost, "/api/v1/enrollments/"+e.ID+"/lessons/l-404/progress", "s-1", "", progressBody(10, false, 1))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}

func TestChangeStatus(t *testing.T) {
	api := newTestAPI(t)
	e := api.enroll("s-1")
	path := "/api/v1/enrollments/" + e.ID + "/status"

	status, env := api.do(fiber.MethodPatch, path, "s-1", "student", fiber.Map{"status": "dropped"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, CodeForbidden, env.Error.Code)

	status, _ = api.do(fiber.MethodPatch, path, "a-1", "admin", fiber.Map{"status": "paused"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = api.do(fiber.MethodPatch, path, "a-1", "admin", fiber.Map{"status": "completed"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, CodeInvalidState, env.Error.Code)

	status, env = api.do(fiber.MethodPatch, path, "i-1", "instructor", fiber.Map{"status": "suspended"})
	require.Equal(t, fiber.StatusOK, status)
	var body struct {
		Enrollment     EnrollmentResponse `json:"enrollment"`
		PreviousStatus string             `json:"previous_status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "suspended", body.Enrollment.Status)
	assert.Equal(t, "active", body.PreviousStatus)

	status, env = api.do(fiber.MethodPost, "/api/v1/enrollments/"+e.ID+"/lessons/l-1/progress", "s-1", "", progressBody(10, false, 1))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, CodeInvalidState, env.Error.Code)
}

func TestSubmitReview(t *testing.T) {
	api := newTestAPI(t)
	path := "/api/v1/courses/c-go/reviews"
	body := fiber.Map{"rating": 5, "title": "Great"}

	status, env := api.do(fiber.MethodPost, path, "s-1", "", body)
	assert.Equal(t, fiber.StatusNotFound, status, "not enrolled")
	assert.Equal(t, CodeNotFound, env.Error.Code)

	api.enroll("s-1")

	status, _ = api.do(fiber.MethodPost, path, "s-1", "", fiber.Map{"rating": 0})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = api.do(fiber.MethodPost, path, "s-1", "", body)
	require.Equal(t, fiber.StatusCreated, status)
	var rv ReviewResponse
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	assert.Equal(t, 5, rv.Rating)

	status, env = api.do(fiber.MethodPost, path, "s-1", "", body)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, CodeAlreadyExists, env.Error.Code)
}

func TestFeatureFlagsGateWrites(t *testing.T) {
	api := newTestAPI(t)
	e := api.enroll("s-1")
	require.NoError(t, api.features.DisableFeature(config.FeatureReviewSubmission))
	require.NoError(t, api.features.DisableFeature(config.FeatureCertificateIssuance))

	status, env := api.do(fiber.MethodPost, "/api/v1/courses/c-go/reviews", "s-1", "", fiber.Map{"rating": 4})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, CodeForbidden, env.Error.Code)

	status, _ = api.do(fiber.MethodPost, "/api/v1/enrollments/"+e.ID+"/certificate", "s-1", "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestListEnrollments(t *testing.T) {
	api := newTestAPI(t)
	api.enroll("s-1")

	status, env := api.do(fiber.MethodGet, "/api/v1/enrollments?status=active", "s-1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []EnrollmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Count)

	status, env = api.do(fiber.MethodGet, "/api/v1/enrollments", "s-2", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list)

	status, _ = api.do(fiber.MethodGet, "/api/v1/enrollments?status=unknown", "s-1", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStatsEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.enroll("s-1")
	api.enroll("s-2")

	status, env := api.do(fiber.MethodGet, "/api/v1/courses/c-go/stats", "s-1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var snap stats.CourseStatsSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 2, snap.TotalStudents)
	assert.Len(t, snap.MonthlyRevenue, 6)

	status, _ = api.do(fiber.MethodGet, "/api/v1/courses/c-nope/stats", "s-1", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = api.do(fiber.MethodGet, "/api/v1/dashboard/instructor", "i-1", "instructor", nil)
	require.Equal(t, fiber.StatusOK, status)
	var dash stats.InstructorDashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, 2, dash.Enrollments.Total)

	status, _ = api.do(fiber.MethodGet, "/api/v1/dashboard/instructor", "s-1", "student", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = api.do(fiber.MethodGet, "/api/v1/dashboard/student", "s-1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var sd stats.StudentDashboard
	require.NoError(t, json.Unmarshal(env.Data, &sd))
	assert.Equal(t, "s-1", sd.StudentID)
	assert.Equal(t, 1, sd.Enrollments.Total)

	status, _ = api.do(fiber.MethodGet, "/api/v1/dashboard/admin", "s-1", "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = api.do(fiber.MethodGet, "/api/v1/dashboard/admin", "a-1", "admin", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(fiber.MethodGet, "/api/v2/nothing", "", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}
