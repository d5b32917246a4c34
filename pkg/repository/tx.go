package repository

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
)

// State is the lifecycle position of a Tx.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Tx is a single unit of work on one pooled connection.
// It must not be shared between concurrent operations; the mutex only
// keeps a misuse from corrupting the state machine.
type Tx struct {
	mu     sync.Mutex
	tx     *sqlx.Tx
	state  State
	cancel context.CancelFunc
}

// State returns the current lifecycle state.
func (t *Tx) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Rebind converts ? placeholders to the bind style of the underlying driver.
func (t *Tx) Rebind(query string) string {
	return t.tx.Rebind(query)
}

// ExecContext runs a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return nil, ErrTransactionClosed
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, t.fail("exec", err)
	}
	return res, nil
}

// QueryxContext runs a query inside the transaction. The caller closes the rows
// before issuing the next statement on the same Tx.
func (t *Tx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return nil, ErrTransactionClosed
	}
	rows, err := t.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, t.fail("query", err)
	}
	return rows, nil
}

// GetContext scans a single row into dest. sql.ErrNoRows stays reachable through errors.Is.
func (t *Tx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return ErrTransactionClosed
	}
	if err := t.tx.GetContext(ctx, dest, query, args...); err != nil {
		return t.fail("get", err)
	}
	return nil
}

// SelectContext scans all rows into dest.
func (t *Tx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return ErrTransactionClosed
	}
	if err := t.tx.SelectContext(ctx, dest, query, args...); err != nil {
		return t.fail("select", err)
	}
	return nil
}

// Commit makes the unit of work durable.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return ErrTransactionClosed
	}
	err := t.tx.Commit()
	if err != nil {
		// database/sql discards the transaction whatever the commit outcome.
		t.close(StateRolledBack)
		return &StorageError{Op: "commit", Err: err}
	}
	t.close(StateCommitted)
	return nil
}

// Rollback discards the unit of work.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return ErrTransactionClosed
	}
	err := t.tx.Rollback()
	t.close(StateRolledBack)
	if err != nil && !connectionLost(err) {
		return &StorageError{Op: "rollback", Err: err}
	}
	return nil
}

// fail wraps a driver error and, when the connection is gone, records the implicit rollback.
func (t *Tx) fail(op string, err error) error {
	if connectionLost(err) {
		_ = t.tx.Rollback()
		t.close(StateRolledBack)
	}
	return &StorageError{Op: op, Err: err}
}

func (t *Tx) close(s State) {
	t.state = s
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// DriverName returns the sqlx driver name of the connection.
func (t *Tx) DriverName() string {
	return t.tx.DriverName()
}
