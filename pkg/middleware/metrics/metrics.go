// Package metrics records Prometheus HTTP metrics per route.
package metrics

import (
	"time"

	"github.com/tutorhub/tutorhub/pkg/observability/metrics"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

const unmatchedRoute = "unmatched"

// Metrics observes request duration, request count and in-flight requests,
// labelled by method, route template and status.
func Metrics() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			metrics.IncrementInFlight()
			defer metrics.DecrementInFlight()

			start := time.Now()
			err := next(c)

			route := c.FullPath()
			if route == "" {
				route = unmatchedRoute
			}
			metrics.RecordHTTPMetrics(c.Request().Method, route, c.Response().Status(), time.Since(start))
			return err
		}
	}
}
