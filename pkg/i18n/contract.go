// Package i18n carries stable message codes and renders them in the caller's language.
package i18n

import "fmt"

// Params carries the values interpolated into a message template.
type Params map[string]any

// AppError is an error with a stable code, localizable params and an HTTP status.
type AppError struct {
	Code            string
	FallbackMessage string
	Params          Params
	Details         map[string]any
	HTTPStatus      int
	Cause           error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	label := e.Code
	if e.FallbackMessage != "" {
		label = e.FallbackMessage
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", label, e.Cause)
	}
	return label
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError creates an AppError with a stable message code.
func NewError(code string, params Params, cause error) *AppError {
	return &AppError{
		Code:   code,
		Params: cloneParams(params),
		Cause:  cause,
	}
}

// WithMessage sets the text used when no translation exists.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	e.FallbackMessage = message
	return e
}

func (e *AppError) WithHTTPStatus(status int) *AppError {
	if e == nil {
		return nil
	}
	e.HTTPStatus = status
	return e
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// Translator resolves a message key into localized text.
type Translator interface {
	T(key string, args ...any) string
}

func cloneParams(params Params) Params {
	if len(params) == 0 {
		return nil
	}
	out := make(Params, len(params))
	for key, value := range params {
		out[key] = value
	}
	return out
}
