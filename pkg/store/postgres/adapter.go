package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

// DriverName is the database/sql driver and sqlx bind dialect.
const DriverName = "postgres"

// PostgreSQLAdapter provides PostgreSQL database connectivity with connection pooling
type PostgreSQLAdapter struct {
	db     *sqlx.DB
	logger logger.Logger
	config Config
}

// Config holds PostgreSQL connection configuration
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// NewPostgreSQLAdapter creates a new PostgreSQL adapter with connection pooling
func NewPostgreSQLAdapter(cfg Config, log logger.Logger) (*PostgreSQLAdapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sqlx.Open(DriverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("PostgreSQL connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
	)

	return &PostgreSQLAdapter{db: db, logger: log, config: cfg}, nil
}

// DB returns the pooled handle.
func (a *PostgreSQLAdapter) DB() *sqlx.DB {
	return a.db
}

// Dialect returns the sqlx driver name.
func (a *PostgreSQLAdapter) Dialect() string {
	return DriverName
}

func (a *PostgreSQLAdapter) QueryTimeout() time.Duration {
	return a.config.QueryTimeout
}

// Ping verifies the database connection is alive
func (a *PostgreSQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// HealthCheck runs a trivial query so a reachable but wedged server is reported unhealthy.
func (a *PostgreSQLAdapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	if err := a.db.GetContext(hcCtx, &one, "SELECT 1"); err != nil {
		a.logger.Error("PostgreSQL health check failed", "error", err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close gracefully closes the database connection
func (a *PostgreSQLAdapter) Close() error {
	a.logger.Info("closing PostgreSQL connection")
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close PostgreSQL connection", "error", err)
		return fmt.Errorf("failed to close database: %w", err)
	}
	a.logger.Info("PostgreSQL connection closed successfully")
	return nil
}
