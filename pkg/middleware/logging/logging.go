// Package logging writes one access log line per request.
package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// Log field names.
const (
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldRoute         = "route"
	FieldStatus        = "status"
	FieldDurationMS    = "duration_ms"
	FieldError         = "error"
	FieldRemoteAddr    = "remote_addr"
	FieldQueryString   = "query_string"
	FieldHTTPUserAgent = "http_user_agent"
	FieldXForwardedFor = "x_forwarded_for"
	FieldRequestLength = "request_length"
)

var (
	defaultFields = []string{FieldMethod, FieldPath, FieldStatus, FieldDurationMS, FieldRemoteAddr, FieldError}
	validFields   = map[string]struct{}{
		FieldMethod:        {},
		FieldPath:          {},
		FieldRoute:         {},
		FieldStatus:        {},
		FieldDurationMS:    {},
		FieldError:         {},
		FieldRemoteAddr:    {},
		FieldQueryString:   {},
		FieldHTTPUserAgent: {},
		FieldXForwardedFor: {},
		FieldRequestLength: {},
	}
)

// Config configures the access log.
type Config struct {
	Enabled              bool
	Fields               []string
	ExcludedPathPrefixes []string
}

// DefaultConfig logs every request except health probes and metric scrapes.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		Fields:               append([]string{}, defaultFields...),
		ExcludedPathPrefixes: []string{"/health", "/metrics"},
	}
}

// Logging creates the access log middleware with DefaultConfig.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates the access log middleware. Requests ending in an error or a
// 5xx status log at error level, 4xx at warn and the rest at info.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	cfg.Fields = normalizeFields(cfg.Fields)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !cfg.enabledFor(c.Request().URL.Path) {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			status := c.Response().Status()
			fields := cfg.buildFields(c, status, time.Since(start), err)
			reqLog := log.WithContext(c.Request().Context())

			switch {
			case err != nil || status >= http.StatusInternalServerError:
				reqLog.Error("request failed", fields...)
			case status >= http.StatusBadRequest:
				reqLog.Warn("request rejected", fields...)
			default:
				reqLog.Info("request completed", fields...)
			}
			return err
		}
	}
}

func (c Config) enabledFor(path string) bool {
	if !c.Enabled {
		return false
	}
	for _, prefix := range c.ExcludedPathPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func normalizeFields(fields []string) []string {
	normalized := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		name := strings.ToLower(strings.TrimSpace(field))
		if _, ok := validFields[name]; !ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		normalized = append(normalized, name)
	}
	if len(normalized) == 0 {
		return append([]string{}, defaultFields...)
	}
	return normalized
}

func (c Config) buildFields(ctx router.Context, status int, duration time.Duration, err error) []any {
	req := ctx.Request()
	args := make([]any, 0, len(c.Fields)*2)
	for _, field := range c.Fields {
		var value any
		switch field {
		case FieldMethod:
			value = req.Method
		case FieldPath:
			value = req.URL.Path
		case FieldRoute:
			value = ctx.FullPath()
		case FieldStatus:
			value = status
		case FieldDurationMS:
			value = duration.Milliseconds()
		case FieldError:
			if err == nil {
				continue
			}
			value = err.Error()
		case FieldRemoteAddr:
			value = req.RemoteAddr
		case FieldQueryString:
			value = req.URL.RawQuery
		case FieldHTTPUserAgent:
			value = req.UserAgent()
		case FieldXForwardedFor:
			value = req.Header.Get("X-Forwarded-For")
		case FieldRequestLength:
			value = max(req.ContentLength, 0)
		}
		args = append(args, field, value)
	}
	return args
}
