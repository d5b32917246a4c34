package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrTransactionClosed is returned by any Tx call made after Commit or Rollback,
// including the implicit rollback that follows a lost connection.
var ErrTransactionClosed = errors.New("transaction is closed")

// StorageError wraps a failure reported by the database driver.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// connectionLost reports driver errors after which the server has already discarded the transaction.
func connectionLost(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, mysql.ErrInvalidConn)
}
