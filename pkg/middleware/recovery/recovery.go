// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// Recovery logs a panic with its stack trace and answers with the standard
// internal error body when nothing was written yet.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log.WithContext(c.Request().Context()).Error("panic recovered",
					"panic", r,
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"stack", string(debug.Stack()),
				)
				if c.Response().Written() {
					return
				}
				if writeErr := controller.Error(c, controller.NewInternalError("", "an unexpected error occurred", fmt.Errorf("panic: %v", r))); writeErr != nil {
					log.Error("failed to send error response", "error", writeErr)
				}
				err = nil
			}()

			return next(c)
		}
	}
}
