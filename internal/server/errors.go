package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/pkg/errs"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errs.Unauthenticated("unauthorized")
	ErrRateLimited  = errs.RateLimited("rate_limited")
	ErrNotFound     = errs.NotFound("not_found")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

var statusByKind = map[errs.Kind]int{
	errs.KindValidation:      http.StatusBadRequest,
	errs.KindNotFound:        http.StatusNotFound,
	errs.KindAuthorization:   http.StatusForbidden,
	errs.KindUnauthenticated: http.StatusUnauthorized,
	errs.KindConflict:        http.StatusConflict,
	errs.KindQuotaExceeded:   http.StatusTooManyRequests,
	errs.KindRateLimited:     http.StatusTooManyRequests,
	errs.KindExternalService: http.StatusBadGateway,
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    string(errs.KindValidation),
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if e, ok := errs.As(err); ok {
		status, known := statusByKind[e.Kind]
		if !known {
			return internalError()
		}
		payload := errorPayload{
			Type:    string(e.Kind),
			Message: e.Message,
		}
		if e.Kind == errs.KindValidation {
			payload.Message = "validation error"
			payload.Errors = []ValidationError{{
				Field:   e.Field,
				Code:    e.Code,
				Message: e.Message,
			}}
		}
		return status, payload
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    string(errs.KindNotFound),
			Message: "not found",
		}
	}

	return internalError()
}

func internalError() (int, errorPayload) {
	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// classifyErrorForLog feeds the request logger; the code is never shown to
// clients for external service failures.
func classifyErrorForLog(err error) (string, string) {
	if asValidationErrors(err) != nil {
		return string(errs.KindValidation), "invalid_request"
	}
	if e, ok := errs.As(err); ok {
		return string(e.Kind), e.Code
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return string(errs.KindNotFound), "record_not_found"
	}
	return "internal_error", "unexpected"
}
