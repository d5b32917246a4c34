// Package app assembles the tutorhub service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tutorhub/tutorhub/pkg/api"
	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/catalog"
	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/health"
	"github.com/tutorhub/tutorhub/pkg/i18n"
	"github.com/tutorhub/tutorhub/pkg/ledger"
	"github.com/tutorhub/tutorhub/pkg/marketplace"
	"github.com/tutorhub/tutorhub/pkg/middleware/ratelimit"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/observability/metrics"
	"github.com/tutorhub/tutorhub/pkg/observability/tracing"
	"github.com/tutorhub/tutorhub/pkg/repository"
	"github.com/tutorhub/tutorhub/pkg/search"
	"github.com/tutorhub/tutorhub/pkg/server"
	"github.com/tutorhub/tutorhub/pkg/store"
	"github.com/tutorhub/tutorhub/pkg/version"
)

// App owns every long-lived dependency of a running service.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	store   store.SQLAdapter
	tracer  *tracing.TracerProvider
	handler http.Handler
	closers []func() error
}

// New opens the store, the tracer and the rate limiter and builds the HTTP handler.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if err := cfg.ValidateServing(); err != nil {
		return nil, err
	}
	info := version.Current(cfg.Service.Name)

	tracer, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	adapter, err := store.NewSQLAdapter(cfg.Database, log)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Type, err)
	}

	a := &App{cfg: cfg, logger: log, store: adapter, tracer: tracer}
	if err := a.build(info); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) build(info version.Info) error {
	cfg, log := a.cfg, a.logger

	coordinator := repository.NewCoordinator(a.store.DB(), a.store.QueryTimeout(), log)
	engine := search.NewEngine(coordinator, search.Limits{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}, log)
	if err := engine.Register(catalog.All()...); err != nil {
		return fmt.Errorf("register search entities: %w", err)
	}

	validator, err := auth.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.RoleClaim, log)
	if err != nil {
		return fmt.Errorf("create token validator: %w", err)
	}

	messages, err := i18n.LoadCatalog(cfg.I18n.DefaultLocale, cfg.I18n.FallbackMode, cfg.I18n.CatalogPath)
	if err != nil {
		return fmt.Errorf("load message catalog: %w", err)
	}

	var limiter ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		var closeLimiter func() error
		limiter, closeLimiter, err = ratelimit.New(cfg.RateLimit, log)
		if err != nil {
			return fmt.Errorf("create rate limiter: %w", err)
		}
		a.closers = append(a.closers, closeLimiter)
	}

	healthRegistry := health.NewRegistry()
	healthRegistry.Register(health.NewDatabaseChecker(a.store))

	var metricsRegistry *metrics.Registry
	if cfg.Observability.MetricsEnabled {
		metricsRegistry = metrics.NewRegistry()
	}

	r := server.NewRouter(cfg.CORS)
	r.Use(server.Middleware(cfg, server.Stack{Logger: log, Catalog: messages, Limiter: limiter})...)
	server.RegisterManagement(r, server.Management{
		Health:      healthRegistry,
		Metrics:     metricsRegistry,
		MetricsPath: cfg.Observability.MetricsPath,
		Version:     info,
	})
	api.NewHandler(api.Deps{
		Engine:      engine,
		Market:      marketplace.NewService(coordinator, log),
		Ledger:      ledger.New(ledger.Config{MinScore: cfg.Rating.MinScore, MaxScore: cfg.Rating.MaxScore}, log),
		Coordinator: coordinator,
		Validator:   validator,
		Rating:      cfg.Rating,
		Logger:      log,
	}).Register(r)

	a.handler = r
	return nil
}

// Handler is the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return server.New(a.cfg.HTTP, a.handler, a.logger).Start(ctx)
}

// Close releases the limiter, the store and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
