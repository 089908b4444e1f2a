package http

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ResponseMeta contains list metadata.
type ResponseMeta struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Count  int `json:"count"`
}

// Error codes.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeAlreadyExists  = "ALREADY_EXISTS"
	CodeInvalidState   = "INVALID_STATE"
	CodeConflict       = "CONCURRENT_MODIFICATION"
	CodePrecondition   = "PRECONDITION_FAILED"
	CodeTimeout        = "TIMEOUT"
	CodeInternal       = "INTERNAL_ERROR"
	CodeRequestInvalid = "BAD_REQUEST"
)

func ok(c *fiber.Ctx, data interface{}) error {
	return writeJSON(c, fiber.StatusOK, data, nil)
}

func created(c *fiber.Ctx, data interface{}) error {
	return writeJSON(c, fiber.StatusCreated, data, nil)
}

func writeJSON(c *fiber.Ctx, status int, data interface{}, meta *ResponseMeta) error {
	return c.Status(status).JSON(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: requestID(c),
	})
}

func writeError(c *fiber.Ctx, status int, apiErr *APIError) error {
	return c.Status(status).JSON(JSONResponse{
		Success:   false,
		Error:     apiErr,
		RequestID: requestID(c),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errForbidden is returned by handlers when the caller's role does not allow
// the operation.
func errForbidden(message string) error {
	return shared.NewDomainError("http", "Authorize", shared.ErrForbidden, message)
}

// handleError is the fiber ErrorHandler. Domain errors map by kind; anything
// unrecognised is a 500 with a generic message.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, apiErr := s.mapError(err)
	if status >= fiber.StatusInternalServerError {
		logger.FromContext(c.UserContext()).Error("request failed",
			logger.String("path", c.Path()),
			logger.Err(err),
		)
	}
	return writeError(c, status, apiErr)
}

func (s *Server) mapError(err error) (int, *APIError) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fiber.StatusBadRequest, &APIError{
			Code:    CodeValidation,
			Message: "request validation failed",
			Details: validationDetails(verrs),
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := CodeRequestInvalid
		switch fe.Code {
		case fiber.StatusUnauthorized:
			code = CodeUnauthorized
		case fiber.StatusNotFound:
			code = CodeNotFound
		case fiber.StatusInternalServerError:
			code = CodeInternal
		}
		return fe.Code, &APIError{Code: code, Message: fe.Message}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout, &APIError{Code: CodeTimeout, Message: "request timed out"}
	}

	var status int
	var code string
	switch {
	case shared.IsValidation(err):
		status, code = fiber.StatusBadRequest, CodeValidation
	case errors.Is(err, shared.ErrForbidden):
		status, code = fiber.StatusForbidden, CodeForbidden
	case shared.IsNotFound(err):
		status, code = fiber.StatusNotFound, CodeNotFound
	case shared.IsAlreadyExists(err):
		status, code = fiber.StatusConflict, CodeAlreadyExists
	case shared.IsConflict(err):
		status, code = fiber.StatusConflict, CodeConflict
	case shared.IsInvalidState(err):
		status, code = fiber.StatusConflict, CodeInvalidState
	case shared.IsPrecondition(err):
		status, code = fiber.StatusUnprocessableEntity, CodePrecondition
	default:
		return fiber.StatusInternalServerError, &APIError{Code: CodeInternal, Message: "internal server error"}
	}

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	return status, &APIError{Code: code, Message: message}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationDetails(verrs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			details[field] = field + " is required"
		case "min", "gte":
			details[field] = field + " must be at least " + e.Param()
		case "max", "lte":
			details[field] = field + " must be at most " + e.Param()
		case "oneof":
			details[field] = field + " must be one of: " + e.Param()
		default:
			details[field] = field + " is invalid"
		}
	}
	return details
}

// bind parses an optional JSON body into dst and validates it.
func (s *Server) bind(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	return s.validate.Struct(dst)
}

func timeOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
