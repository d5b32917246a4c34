package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tutorhub/tutorhub/pkg/i18n"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

// AppError is the single application error contract shared across layers.
type AppError = i18n.AppError

const unexpectedMessage = "an unexpected error occurred"

// ErrorResponse represents the consistent error response format.
type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// MapError maps application errors to HTTP responses. Errors that are not an
// AppError are reported as internal errors without leaking their text.
func MapError(ctx context.Context, err error) (int, ErrorResponse) {
	requestID := logger.RequestIDFromContext(ctx)

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorResponse{
			Error:     "internal_server_error",
			Code:      "internal.error",
			Message:   translateMessageWithFallback(ctx, "internal.error", nil, unexpectedMessage),
			RequestID: requestID,
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = inferStatusFromCode(appErr.Code)
	}

	message := translateMessageWithFallback(ctx, appErr.Code, appErr.Params, appErr.FallbackMessage)
	if message == "" {
		message = unexpectedMessage
	}

	return status, ErrorResponse{
		Error:     errorCategory(status, appErr.Code),
		Code:      appErr.Code,
		Message:   message,
		RequestID: requestID,
		Details:   appErr.Details,
	}
}

// NewValidationError creates a generic validation error.
func NewValidationError(message string, details map[string]any) *AppError {
	return i18n.NewError("validation.failed", nil, nil).
		WithMessage(message).
		WithHTTPStatus(http.StatusBadRequest).
		WithDetails(details)
}

// NewValidationErrorWithCode creates a validation error that can be localized.
func NewValidationErrorWithCode(code, fallbackMessage string, params map[string]any, details map[string]any) *AppError {
	return i18n.NewError(code, i18n.Params(params), nil).
		WithMessage(fallbackMessage).
		WithHTTPStatus(http.StatusBadRequest).
		WithDetails(details)
}

// NewNotFoundError creates a not found error. An empty code falls back to resource.not_found.
func NewNotFoundError(code, message string, cause error) *AppError {
	if code == "" {
		code = "resource.not_found"
	}
	return i18n.NewError(code, nil, cause).
		WithMessage(message).
		WithHTTPStatus(http.StatusNotFound)
}

// NewConflictError creates a conflict error.
func NewConflictError(code, message string, cause error) *AppError {
	if code == "" {
		code = "resource.conflict"
	}
	return i18n.NewError(code, nil, cause).
		WithMessage(message).
		WithHTTPStatus(http.StatusConflict)
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(code, message string, cause error) *AppError {
	if code == "" {
		code = "auth.unauthorized"
	}
	return i18n.NewError(code, nil, cause).
		WithMessage(message).
		WithHTTPStatus(http.StatusUnauthorized)
}

// NewForbiddenError creates a forbidden error.
func NewForbiddenError(code, message string, cause error) *AppError {
	if code == "" {
		code = "auth.forbidden"
	}
	return i18n.NewError(code, nil, cause).
		WithMessage(message).
		WithHTTPStatus(http.StatusForbidden)
}

// NewTooManyRequestsError creates a rate limit error.
func NewTooManyRequestsError(message string) *AppError {
	return i18n.NewError("ratelimit.exceeded", nil, nil).
		WithMessage(message).
		WithHTTPStatus(http.StatusTooManyRequests)
}

// NewInternalError creates an internal error with an optional cause. An empty
// code falls back to internal.error.
func NewInternalError(code, message string, cause error) *AppError {
	if code == "" {
		code = "internal.error"
	}
	return i18n.NewError(code, nil, cause).
		WithMessage(message).
		WithHTTPStatus(http.StatusInternalServerError)
}

func translateMessageWithFallback(ctx context.Context, code string, params map[string]any, fallback string) string {
	if code == "" {
		return fallback
	}
	translated := i18n.TranslatorFromContext(ctx).T(code, params)
	if translated == "" || (translated == code && fallback != "") {
		return fallback
	}
	return translated
}

func errorCategory(status int, code string) string {
	if strings.HasPrefix(strings.ToLower(code), "validation.") {
		return "validation_error"
	}

	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return "internal_server_error"
		}
		return "application_error"
	}
}

func inferStatusFromCode(code string) int {
	lowerCode := strings.ToLower(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(lowerCode, "validation."):
		return http.StatusBadRequest
	case strings.Contains(lowerCode, "unauthorized"):
		return http.StatusUnauthorized
	case strings.Contains(lowerCode, "forbidden"):
		return http.StatusForbidden
	case strings.Contains(lowerCode, "not_found"):
		return http.StatusNotFound
	case strings.Contains(lowerCode, "conflict"), strings.Contains(lowerCode, "duplicate"):
		return http.StatusConflict
	case strings.HasPrefix(lowerCode, "internal."):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
