package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/internal/apperror"
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
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrRouteNotFound = apperror.New(apperror.KindNotFound, "route_not_found")

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

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation:          http.StatusBadRequest,
	apperror.KindForbidden:           http.StatusForbidden,
	apperror.KindNotFound:            http.StatusNotFound,
	apperror.KindConflict:            http.StatusConflict,
	apperror.KindExpired:             http.StatusGone,
	apperror.KindInsufficientBalance: http.StatusPaymentRequired,
	// Handlers resolve already-processed results to the existing entity; reaching
	// here means a caller skipped that step.
	apperror.KindAlreadyProcessed: http.StatusConflict,
}

var kindMessage = map[apperror.Kind]string{
	apperror.KindValidation:          "validation error",
	apperror.KindForbidden:           "forbidden",
	apperror.KindNotFound:            "not found",
	apperror.KindConflict:            "conflict",
	apperror.KindExpired:             "expired",
	apperror.KindInsufficientBalance: "insufficient balance",
	apperror.KindAlreadyProcessed:    "already processed",
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    string(apperror.KindValidation),
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if kind, ok := apperror.KindOf(err); ok {
		if status, known := kindStatus[kind]; known {
			return status, errorPayload{
				Type:    string(kind),
				Code:    apperror.CodeOf(err),
				Message: kindMessage[kind],
			}
		}
	}

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

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if asValidationErrors(err) != nil {
		return string(apperror.KindValidation), "invalid_request"
	}
	if kind, ok := apperror.KindOf(err); ok {
		return string(kind), apperror.CodeOf(err)
	}
	return "internal_error", ""
}
