package store

import (
	"fmt"
	"strings"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/store/mysql"
	"github.com/tutorhub/tutorhub/pkg/store/postgres"
)

// NewSQLAdapter opens the relational store selected by database.type.
func NewSQLAdapter(cfg config.DatabaseConfig, log logger.Logger) (SQLAdapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.DatabaseTypePostgres:
		return postgres.NewPostgreSQLAdapter(postgres.Config{
			URL:             cfg.URL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			QueryTimeout:    cfg.QueryTimeout,
		}, log)
	case config.DatabaseTypeMySQL:
		return mysql.NewMySQLAdapter(mysql.Config{
			URL:             cfg.URL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			QueryTimeout:    cfg.QueryTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported database.type %q (supported: postgres, mysql)", cfg.Type)
	}
}
