package server

import (
	"net/http"

	"github.com/tutorhub/tutorhub/pkg/health"
	"github.com/tutorhub/tutorhub/pkg/observability/metrics"
	"github.com/tutorhub/tutorhub/pkg/server/router"
	"github.com/tutorhub/tutorhub/pkg/version"
)

// Management holds what the operational endpoints report. A nil Metrics
// registry leaves the metrics endpoint unregistered.
type Management struct {
	Health      *health.Registry
	Metrics     *metrics.Registry
	MetricsPath string
	Version     version.Info
}

// RegisterManagement mounts /health, /version and the metrics endpoint on r.
func RegisterManagement(r router.Router, m Management) {
	r.GET("/health", func(c router.Context) error {
		result := m.Health.Check(c.Request().Context())
		if result.Status == health.StatusUnhealthy {
			return c.JSON(http.StatusServiceUnavailable, result)
		}
		return c.JSON(http.StatusOK, result)
	})

	r.GET("/version", func(c router.Context) error {
		return c.JSON(http.StatusOK, m.Version)
	})

	if m.Metrics != nil {
		path := m.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		handler := m.Metrics.Handler()
		r.GET(path, func(c router.Context) error {
			handler.ServeHTTP(c.Response(), c.Request())
			return nil
		})
	}
}
