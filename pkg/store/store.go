// Package store holds the storage adapter contracts shared by the SQL backends.
package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// SQLAdapter is a pooled relational connection.
// Dialect is the sqlx driver name used to rebind `?` placeholders.
type SQLAdapter interface {
	Adapter
	DB() *sqlx.DB
	Dialect() string
	QueryTimeout() time.Duration
}
