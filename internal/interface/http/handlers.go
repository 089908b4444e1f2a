package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/learnhub/learnhub-core/config"
	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := s.deps.HealthChecker.Check(c.UserContext())
	code := fiber.StatusOK
	if !status.Healthy {
		code = fiber.StatusServiceUnavailable
	}
	return writeJSON(c, code, status, nil)
}

// handleReady handles the readiness probe.
func (s *Server) handleReady(c *fiber.Ctx) error {
	status := s.deps.HealthChecker.Check(c.UserContext())
	if !status.Ready {
		return writeJSON(c, fiber.StatusServiceUnavailable, fiber.Map{
			"status": "not_ready",
			"reason": status.Message,
		}, nil)
	}
	return ok(c, fiber.Map{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"status": "alive", "uptime": s.Uptime().String()})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleEnroll handles POST /api/v1/courses/:courseId/enroll. The caller
// enrolls themselves.
func (s *Server) handleEnroll(c *fiber.Ctx) error {
	id := identityFrom(c)

	var req EnrollRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	res, err := s.deps.Enroll.Handle(c.UserContext(), command.EnrollCommand{
		StudentID:     id.UserID,
		CourseID:      c.Params("courseId"),
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		CorrelationID: requestID(c),
	})
	if err != nil {
		return err
	}
	return created(c, toEnrollmentResponse(res.Enrollment))
}

// handleListEnrollments handles GET /api/v1/enrollments?status=&offset=&limit=.
func (s *Server) handleListEnrollments(c *fiber.Ctx) error {
	id := identityFrom(c)
	studentID := id.UserID
	if id.IsAdmin() && c.Query("student_id") != "" {
		studentID = c.Query("student_id")
	}

	q := query.ListEnrollmentsQuery{
		StudentID: studentID,
		Status:    c.Query("status"),
		Offset:    c.QueryInt("offset", 0),
		Limit:     c.QueryInt("limit", 20),
	}
	list, err := s.deps.Enrollments.List(c.UserContext(), q)
	if err != nil {
		return err
	}

	out := make([]EnrollmentResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEnrollmentResponse(e))
	}
	return writeJSON(c, fiber.StatusOK, out, &ResponseMeta{Offset: q.Offset, Limit: q.Limit, Count: len(out)})
}

// handleGetEnrollment handles GET /api/v1/enrollments/:id.
func (s *Server) handleGetEnrollment(c *fiber.Ctx) error {
	view, err := s.deps.Enrollments.Get(c.UserContext(), s.enrollmentQuery(c))
	if err != nil {
		return err
	}

	resp := toEnrollmentResponse(view.Enrollment)
	resp.Lessons = make([]LessonProgressResponse, 0, len(view.Lessons))
	for _, lp := range view.Lessons {
		resp.Lessons = append(resp.Lessons, toLessonProgressResponse(lp))
	}
	return ok(c, resp)
}

// handleReportProgress handles
// POST /api/v1/enrollments/:id/lessons/:lessonId/progress.
func (s *Server) handleReportProgress(c *fiber.Ctx) error {
	var req ProgressRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := s.authorizeEnrollment(c); err != nil {
		return err
	}

	res, err := s.deps.ReportProgress.Handle(c.UserContext(), command.ReportLessonProgressCommand{
		EnrollmentID:  c.Params("id"),
		LessonID:      c.Params("lessonId"),
		CompletionPct: *req.CompletionPercentage,
		IsCompleted:   req.IsCompleted,
		MinutesDelta:  req.MinutesSpent,
		CorrelationID: requestID(c),
	})
	if err != nil {
		return err
	}

	return ok(c, ProgressResponse{
		Enrollment:       toEnrollmentResponse(res.Enrollment),
		Lesson:           toLessonProgressResponse(res.Lesson),
		PreviousProgress: res.PreviousProgress,
		CompletedNow:     res.CompletedNow,
	})
}

// handleIssueCertificate handles POST /api/v1/enrollments/:id/certificate.
// 201 when a certificate was issued, 200 when it already existed.
func (s *Server) handleIssueCertificate(c *fiber.Ctx) error {
	id := identityFrom(c)
	if !s.featureEnabled(config.FeatureCertificateIssuance, id) {
		return errForbidden("certificate issuance is disabled")
	}
	if err := s.authorizeEnrollment(c); err != nil {
		return err
	}

	res, err := s.deps.IssueCertificate.Handle(c.UserContext(), command.IssueCertificateCommand{
		EnrollmentID:  c.Params("id"),
		CorrelationID: requestID(c),
	})
	if err != nil {
		return err
	}

	body := fiber.Map{"enrollment": toEnrollmentResponse(res.Enrollment), "issued": res.Issued}
	if res.Issued {
		return created(c, body)
	}
	return ok(c, body)
}

// handleChangeStatus handles PATCH /api/v1/enrollments/:id/status. Only
// administrators and instructors may change a status.
func (s *Server) handleChangeStatus(c *fiber.Ctx) error {
	id := identityFrom(c)
	if !id.IsAdmin() && !id.IsInstructor() {
		return errForbidden("only administrators and instructors can change enrollment status")
	}

	var req ChangeStatusRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	res, err := s.deps.ChangeStatus.Handle(c.UserContext(), command.ChangeStatusCommand{
		EnrollmentID:  c.Params("id"),
		Status:        req.Status,
		ActorID:       id.UserID,
		CorrelationID: requestID(c),
	})
	if err != nil {
		return err
	}

	return ok(c, fiber.Map{
		"enrollment":      toEnrollmentResponse(res.Enrollment),
		"previous_status": res.PreviousStatus.String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSubmitReview handles POST /api/v1/courses/:courseId/reviews.
func (s *Server) handleSubmitReview(c *fiber.Ctx) error {
	id := identityFrom(c)
	if !s.featureEnabled(config.FeatureReviewSubmission, id) {
		return errForbidden("review submission is disabled")
	}

	var req ReviewRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	res, err := s.deps.SubmitReview.Handle(c.UserContext(), command.SubmitReviewCommand{
		StudentID:     id.UserID,
		CourseID:      c.Params("courseId"),
		Rating:        req.Rating,
		Title:         req.Title,
		Comment:       req.Comment,
		CorrelationID: requestID(c),
	})
	if err != nil {
		return err
	}
	return created(c, toReviewResponse(res.Review))
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCourseStats handles GET /api/v1/courses/:courseId/stats.
// ?fresh=true skips the cache.
func (s *Server) handleCourseStats(c *fiber.Ctx) error {
	snap, err := s.deps.CourseStats.Handle(c.UserContext(), query.CourseStatsQuery{
		CourseID:    c.Params("courseId"),
		BypassCache: c.QueryBool("fresh", false),
	})
	if err != nil {
		return err
	}
	return ok(c, snap)
}

// handleInstructorDashboard handles GET /api/v1/dashboard/instructor.
// Administrators may pass ?instructor_id=.
func (s *Server) handleInstructorDashboard(c *fiber.Ctx) error {
	id := identityFrom(c)
	instructorID := id.UserID
	switch {
	case id.IsAdmin():
		if v := c.Query("instructor_id"); v != "" {
			instructorID = v
		}
	case !id.IsInstructor():
		return errForbidden("instructor dashboard requires an instructor")
	}

	dash, err := s.deps.InstructorStats.Handle(c.UserContext(), query.InstructorStatsQuery{InstructorID: instructorID})
	if err != nil {
		return err
	}
	return ok(c, dash)
}

// handleStudentDashboard handles GET /api/v1/dashboard/student.
// Administrators may pass ?student_id=.
func (s *Server) handleStudentDashboard(c *fiber.Ctx) error {
	id := identityFrom(c)
	studentID := id.UserID
	if id.IsAdmin() && c.Query("student_id") != "" {
		studentID = c.Query("student_id")
	}

	dash, err := s.deps.StudentStats.Handle(c.UserContext(), query.StudentStatsQuery{StudentID: studentID})
	if err != nil {
		return err
	}
	return ok(c, dash)
}

// handleAdminDashboard handles GET /api/v1/dashboard/admin.
func (s *Server) handleAdminDashboard(c *fiber.Ctx) error {
	if !identityFrom(c).IsAdmin() {
		return errForbidden("platform dashboard requires an administrator")
	}

	dash, err := s.deps.PlatformStats.Handle(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, dash)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// enrollmentQuery scopes :id to the caller unless they are an administrator.
func (s *Server) enrollmentQuery(c *fiber.Ctx) query.GetEnrollmentQuery {
	id := identityFrom(c)
	q := query.GetEnrollmentQuery{EnrollmentID: c.Params("id")}
	if !id.IsAdmin() {
		q.StudentID = id.UserID
	}
	return q
}

// authorizeEnrollment fails with not found when :id belongs to someone else.
func (s *Server) authorizeEnrollment(c *fiber.Ctx) error {
	if identityFrom(c).IsAdmin() {
		return nil
	}
	_, err := s.deps.Enrollments.Get(c.UserContext(), s.enrollmentQuery(c))
	return err
}

func (s *Server) featureEnabled(name string, id Identity) bool {
	if s.deps.Features == nil {
		return true
	}
	return s.deps.Features.IsEnabled(name, &config.FeatureContext{UserID: id.UserID, IsAdmin: id.IsAdmin()})
}
