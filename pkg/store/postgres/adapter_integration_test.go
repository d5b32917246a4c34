package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/testutil"
)

func TestPostgreSQLAdapter_Integration(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()

	adapter, err := NewPostgreSQLAdapter(Config{
		URL:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		QueryTimeout:    10 * time.Second,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}

	if stats := adapter.DB().Stats(); stats.MaxOpenConnections != 10 {
		t.Errorf("Expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}
	if err := adapter.HealthCheck(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	var rebound string
	if err := adapter.DB().GetContext(ctx, &rebound, adapter.DB().Rebind("SELECT CAST(? AS TEXT)"), "ok"); err != nil {
		t.Fatalf("rebound query failed: %v", err)
	}
	if rebound != "ok" {
		t.Errorf("rebound query returned %q", rebound)
	}

	if err := adapter.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := adapter.Ping(ctx); err == nil {
		t.Error("Expected ping to fail after close, but it succeeded")
	}
}
