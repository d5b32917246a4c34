// Package requestid assigns every request a correlation id.
package requestid

import (
	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

const maxLength = 128

// RequestID reuses a caller-supplied X-Request-ID or generates a UUID, echoes it
// in the response and stores it in the request context.
func RequestID() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			requestID := c.Request().Header.Get(Header)
			if requestID == "" || len(requestID) > maxLength {
				requestID = uuid.NewString()
			}

			c.Response().Header().Set(Header, requestID)
			ctx := logger.ContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
