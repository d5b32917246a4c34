package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return newAdapter(sqlx.NewDb(db, DriverName), logger.Nop(), Config{QueryTimeout: 3 * time.Second}), mock
}

func TestNewMySQLAdapter_Validation(t *testing.T) {
	if _, err := NewMySQLAdapter(Config{}, logger.Nop()); err == nil {
		t.Fatal("expected error for empty URL")
	}
	if _, err := NewMySQLAdapter(Config{URL: "not a dsn"}, logger.Nop()); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}

func TestNormalizeDSN(t *testing.T) {
	got, err := NormalizeDSN("user:pass@tcp(localhost:3306)/tutorhub")
	if err != nil {
		t.Fatalf("NormalizeDSN error: %v", err)
	}
	for _, want := range []string{"parseTime=true", "multiStatements=true", "clientFoundRows=true"} {
		if !strings.Contains(got, want) {
			t.Errorf("normalized DSN %q missing %q", got, want)
		}
	}
}

func TestAdapter_Accessors(t *testing.T) {
	a, _ := newMockAdapter(t)
	defer a.db.Close()

	if a.Dialect() != "mysql" {
		t.Fatalf("Dialect() = %q", a.Dialect())
	}
	if a.QueryTimeout() != 3*time.Second {
		t.Fatalf("QueryTimeout() = %v", a.QueryTimeout())
	}
	if a.DB() == nil {
		t.Fatal("DB() returned nil")
	}
}

func TestHealthCheck(t *testing.T) {
	a, mock := newMockAdapter(t)
	defer a.db.Close()

	mock.ExpectPing()
	if err := a.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if err := a.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check failure")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestClose(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectClose()

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}
