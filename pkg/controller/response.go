package controller

import (
	"net/http"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/search"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// SuccessResponse wraps a non-paginated payload.
type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id,omitempty"`
}

// Success sends data with HTTP 200.
func Success(c router.Context, data any) error {
	return c.JSON(http.StatusOK, SuccessResponse{
		Data:      data,
		RequestID: logger.RequestIDFromContext(c.Request().Context()),
	})
}

// Created sends data with HTTP 201.
func Created(c router.Context, data any) error {
	return c.JSON(http.StatusCreated, SuccessResponse{
		Data:      data,
		RequestID: logger.RequestIDFromContext(c.Request().Context()),
	})
}

// NoContent sends HTTP 204 without a body.
func NoContent(c router.Context) error {
	c.Response().WriteHeader(http.StatusNoContent)
	return nil
}

// Page sends a search result as {rows, total, page, limit}, without an envelope.
func Page(c router.Context, page search.ResultPage) error {
	return c.JSON(http.StatusOK, page)
}

// Error writes err through MapError.
func Error(c router.Context, err error) error {
	statusCode, errorResponse := MapError(c.Request().Context(), err)
	return c.JSON(statusCode, errorResponse)
}
