package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/tutorhub/tutorhub/pkg/app"
	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/health"
	"github.com/tutorhub/tutorhub/pkg/migrate"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/store"
	"github.com/tutorhub/tutorhub/pkg/version"
)

type loadFunc func(cmd *cobra.Command) (*config.Config, logger.Logger, error)

func newServeCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			runErr := a.Run(ctx)

			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout+5*time.Second)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				log.Error("shutdown failed", "error", err)
				if runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}
}

func newMigrateCommand(name string, load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status] [steps]",
		Short:     "Apply or revert the database schema",
		Args:      cobra.RangeArgs(0, 2),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, steps, err := migrate.ParseArgs(args)
			if err != nil {
				return err
			}
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			adapter, err := store.NewSQLAdapter(cfg.Database, log)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Database.Type, err)
			}
			defer adapter.Close()

			manager, err := migrate.NewEmbeddedManager(adapter.DB())
			if err != nil {
				return err
			}
			return migrate.RunParsed(cmd.Context(), sub, steps, migrate.Options{
				ServiceName: name,
				Dialect:     adapter.Dialect(),
				Timeout:     cfg.Database.MigrateTimeout,
				Logger:      log,
			}, migrate.OperationsFor(manager))
		},
	}
}

func newHealthcheckCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check database connectivity and print the aggregated result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			adapter, err := store.NewSQLAdapter(cfg.Database, log)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Database.Type, err)
			}
			defer adapter.Close()

			registry := health.NewRegistry()
			registry.Register(health.NewDatabaseChecker(adapter))
			result := registry.Check(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.IsHealthy() {
				return errors.New("service is unhealthy")
			}
			return nil
		},
	}
}

func newTokenCommand(load loadFunc) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !auth.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if _, err := strconv.ParseInt(subject, 10, 64); err != nil {
				return fmt.Errorf("user must be a numeric id: %q", subject)
			}
			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is required")
			}
			token, err := auth.IssueHS256(cfg.Auth.JWTSecret, cfg.Auth.Issuer, subject, role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "user", "", "user id placed in the sub claim")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleStudent), "role claim (student, tutor or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newConfigCommand(envPrefix string, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := newLoader(envPrefix, flags, cmd.Flags()).Settings()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

func newVersionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Current(name).String())
		},
	}
}
