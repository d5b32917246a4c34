package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

// Coordinator opens transactions on a pooled database handle.
type Coordinator struct {
	db           *sqlx.DB
	queryTimeout time.Duration
	logger       logger.Logger
}

// NewCoordinator creates a coordinator. A positive queryTimeout bounds every unit of work
// whose context carries no deadline of its own.
func NewCoordinator(db *sqlx.DB, queryTimeout time.Duration, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{db: db, queryTimeout: queryTimeout, logger: log}
}

// Dialect returns the sqlx driver name of the underlying handle.
func (c *Coordinator) Dialect() string {
	return c.db.DriverName()
}

// Begin opens a transaction. The returned Tx starts in StateOpen.
func (c *Coordinator) Begin(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx := &Tx{state: StateIdle}

	txCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.queryTimeout > 0 {
		txCtx, tx.cancel = context.WithTimeout(ctx, c.queryTimeout)
	}

	sqlTx, err := c.db.BeginTxx(txCtx, opts)
	if err != nil {
		if tx.cancel != nil {
			tx.cancel()
		}
		return nil, &StorageError{Op: "begin", Err: err}
	}
	tx.tx = sqlTx
	tx.state = StateOpen
	return tx, nil
}

// WithTransaction runs fn inside a read-write transaction. Any error or panic from fn
// rolls the transaction back; the error is returned unchanged and the panic re-raised.
func (c *Coordinator) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return c.run(ctx, nil, fn)
}

// WithReadSnapshot runs fn inside a read-only repeatable-read transaction so that
// several queries observe one consistent state.
func (c *Coordinator) WithReadSnapshot(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return c.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (c *Coordinator) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx *Tx) error) (err error) {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.queryTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	tx, err := c.Begin(runCtx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != ErrTransactionClosed {
				c.logger.Error("failed to rollback transaction after panic",
					"panic", fmt.Sprint(p),
					"rollback_error", rbErr,
				)
			}
			panic(p)
		}
	}()

	if err = fn(runCtx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != ErrTransactionClosed {
			c.logger.WithContext(ctx).Error("failed to rollback transaction",
				"error", err,
				"rollback_error", rbErr,
			)
		}
		return err
	}

	return tx.Commit()
}
