package server

import (
	"github.com/gin-contrib/cors"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/i18n"
	i18nmw "github.com/tutorhub/tutorhub/pkg/middleware/i18n"
	"github.com/tutorhub/tutorhub/pkg/middleware/logging"
	metricsmw "github.com/tutorhub/tutorhub/pkg/middleware/metrics"
	"github.com/tutorhub/tutorhub/pkg/middleware/ratelimit"
	"github.com/tutorhub/tutorhub/pkg/middleware/recovery"
	"github.com/tutorhub/tutorhub/pkg/middleware/requestid"
	tracingmw "github.com/tutorhub/tutorhub/pkg/middleware/tracing"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/server/router"
	ginrouter "github.com/tutorhub/tutorhub/pkg/server/router/gin"
)

// NewRouter creates the gin router, with CORS when enabled.
func NewRouter(cfg config.CORSConfig) *ginrouter.GinRouter {
	if !cfg.Enabled {
		return ginrouter.NewRouter()
	}
	return ginrouter.NewRouter(ginrouter.WithCORS(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    []string{requestid.Header, "Content-Language", "Retry-After"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}))
}

// Stack is what the global middleware chain depends on besides configuration.
type Stack struct {
	Logger  logger.Logger
	Catalog *i18n.Catalog
	// Limiter is required when rate limiting is enabled.
	Limiter ratelimit.RateLimiter
}

// Middleware returns the global chain in execution order: request id, panic
// recovery, access log, tracing, metrics, locale negotiation and rate limiting.
func Middleware(cfg *config.Config, stack Stack) []router.MiddlewareFunc {
	chain := []router.MiddlewareFunc{
		requestid.RequestID(),
		recovery.Recovery(stack.Logger),
		logging.WithConfig(stack.Logger, logging.DefaultConfig()),
	}
	if cfg.Observability.TracingEnabled {
		chain = append(chain, tracingmw.Tracing(tracingmw.Config{
			TracerName:           cfg.Service.Name + "/http",
			ExcludedPathPrefixes: []string{"/health", cfg.Observability.MetricsPath},
		}))
	}
	if cfg.Observability.MetricsEnabled {
		chain = append(chain, metricsmw.Metrics())
	}

	i18nCfg := i18nmw.DefaultConfig()
	i18nCfg.DefaultLocale = cfg.I18n.DefaultLocale
	if len(cfg.I18n.SupportedLocales) > 0 {
		i18nCfg.SupportedLocales = cfg.I18n.SupportedLocales
	}
	if cfg.I18n.FallbackMode != "" {
		i18nCfg.FallbackMode = cfg.I18n.FallbackMode
	}
	chain = append(chain, i18nmw.Middleware(stack.Catalog, i18nCfg))

	if cfg.RateLimit.Enabled && stack.Limiter != nil {
		chain = append(chain, ratelimit.RateLimit(stack.Limiter, ratelimit.ByIdentityOrIP))
	}
	return chain
}
