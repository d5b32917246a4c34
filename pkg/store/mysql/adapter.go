package mysql

import (
	"context"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

// DriverName is the database/sql driver and sqlx bind dialect.
const DriverName = "mysql"

// MySQLAdapter provides MySQL connectivity with pooled connections.
type MySQLAdapter struct {
	db     *sqlx.DB
	logger logger.Logger
	config Config
}

// Config holds MySQL configuration.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// NewMySQLAdapter opens the pool, normalizes the DSN and pings once.
func NewMySQLAdapter(cfg Config, log logger.Logger) (*MySQLAdapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	dsn, err := NormalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping mysql database: %w", err)
	}

	log.Info("MySQL connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
		"conn_max_idle_time", cfg.ConnMaxIdleTime,
	)

	return newAdapter(db, log, cfg), nil
}

func newAdapter(db *sqlx.DB, log logger.Logger, cfg Config) *MySQLAdapter {
	return &MySQLAdapter{db: db, logger: log, config: cfg}
}

// NormalizeDSN forces the driver options the search and ledger code relies on:
// DATETIME columns scanned as time.Time, multi-statement migrations and
// affected-row counts that include matched but unchanged rows.
func NormalizeDSN(dsn string) (string, error) {
	parsed, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql DSN: %w", err)
	}
	parsed.ParseTime = true
	parsed.MultiStatements = true
	parsed.ClientFoundRows = true
	if parsed.Loc == nil {
		parsed.Loc = time.UTC
	}
	return parsed.FormatDSN(), nil
}

// DB returns the pooled handle.
func (a *MySQLAdapter) DB() *sqlx.DB {
	return a.db
}

// Dialect returns the sqlx driver name.
func (a *MySQLAdapter) Dialect() string {
	return DriverName
}

// QueryTimeout is the per-unit-of-work timeout applied when the caller has no deadline.
func (a *MySQLAdapter) QueryTimeout() time.Duration {
	return a.config.QueryTimeout
}

// Ping performs a basic connectivity check.
func (a *MySQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// HealthCheck pings the server with a short timeout.
func (a *MySQLAdapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(hcCtx); err != nil {
		a.logger.Error("MySQL health check failed", "error", err)
		return fmt.Errorf("mysql health check failed: %w", err)
	}
	return nil
}

// Close releases the pool.
func (a *MySQLAdapter) Close() error {
	a.logger.Info("closing MySQL connection")
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close MySQL connection", "error", err)
		return fmt.Errorf("failed to close mysql connection: %w", err)
	}
	a.logger.Info("MySQL connection closed successfully")
	return nil
}
