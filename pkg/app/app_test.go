package app

import (
	"context"
	"strings"
	"testing"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

func TestNew_RequiresServingSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"no database url", func(c *config.Config) { c.Auth.JWTSecret = "secret" }, "database.url"},
		{"no jwt secret", func(c *config.Config) { c.Database.URL = "postgres://localhost/tutorhub" }, "auth.jwt_secret"},
		{"unknown dialect", func(c *config.Config) {
			c.Auth.JWTSecret = "secret"
			c.Database.URL = "sqlite://tutorhub.db"
			c.Database.Type = "sqlite"
		}, "unsupported database.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg, logger.Nop())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
