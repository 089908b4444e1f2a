package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/learnhub/learnhub-core/internal/domain/user"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerUserType  = "X-User-Type"

	localsRequestID = "request_id"
	localsIdentity  = "identity"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// setupMiddleware installs, outermost first: request id, request context
// (logger, timeout, access log), panic recovery.
func (s *Server) setupMiddleware() {
	s.app.Use(requestid.New(requestid.Config{
		Header:     headerRequestID,
		Generator:  uuid.NewString,
		ContextKey: localsRequestID,
	}))
	s.app.Use(s.requestContextMiddleware)
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: s.logPanic,
	}))
}

// requestContextMiddleware attaches a request-scoped logger and deadline to
// the user context and writes one access log line per request. Errors from
// the chain are rendered here so the logged status is the final one.
func (s *Server) requestContextMiddleware(c *fiber.Ctx) error {
	start := time.Now()
	reqLog := s.logger.WithRequestID(requestID(c))

	ctx := logger.WithContext(c.UserContext(), reqLog)
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}
	c.SetUserContext(ctx)

	if err := c.Next(); err != nil {
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}

	status := c.Response().StatusCode()
	fields := []logger.Field{
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Int("status", status),
		logger.Latency(time.Since(start)),
	}
	switch {
	case status >= fiber.StatusInternalServerError:
		reqLog.Error("http request", fields...)
	case status >= fiber.StatusBadRequest:
		reqLog.Warn("http request", fields...)
	default:
		reqLog.Info("http request", fields...)
	}
	return nil
}

func (s *Server) logPanic(c *fiber.Ctx, e interface{}) {
	s.logger.WithRequestID(requestID(c)).Error("panic recovered",
		logger.String("panic", fmt.Sprint(e)),
		logger.String("path", c.Path()),
		logger.String("stack", string(debug.Stack())),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Identity is the caller as asserted by the upstream permission layer.
type Identity struct {
	UserID string
	Type   user.Type
}

// IsAdmin reports whether the caller is an administrator.
func (i Identity) IsAdmin() bool { return i.Type == user.TypeAdmin }

// IsInstructor reports whether the caller is an instructor.
func (i Identity) IsInstructor() bool { return i.Type == user.TypeInstructor }

// identityMiddleware rejects API calls without a caller id. A missing type
// means student.
func (s *Server) identityMiddleware(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Get(headerUserID))
	if id == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing "+headerUserID+" header")
	}

	typ := user.Type(strings.ToLower(strings.TrimSpace(c.Get(headerUserType))))
	if typ == "" {
		typ = user.TypeStudent
	}
	if !typ.IsValid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown "+headerUserType+" "+string(typ))
	}

	c.Locals(localsIdentity, Identity{UserID: id, Type: typ})
	return c.Next()
}

func identityFrom(c *fiber.Ctx) Identity {
	id, _ := c.Locals(localsIdentity).(Identity)
	return id
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsRequestID).(string)
	return id
}
