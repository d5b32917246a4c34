// Package cli builds the tutorhub command line: serve, migrate, healthcheck,
// token, config and version.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

// Options configures the root command.
type Options struct {
	Name        string
	Description string
	EnvPrefix   string
	// Out receives command output. Defaults to stdout.
	Out io.Writer
}

type globalFlags struct {
	configFile string
	envFile    string
}

// NewRootCommand creates the tutorhub CLI. Running it without a subcommand serves HTTP.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "tutorhub"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config-file", "c", "", "config file path (yaml, json or toml)")
	pf.StringVar(&flags.envFile, "env-file", config.LookupEnvFile(), "dotenv file applied before reading the environment")
	registerConfigFlags(pf)

	load := func(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
		return loadConfigAndLogger(opts.EnvPrefix, flags, cmd.Flags())
	}

	serve := newServeCommand(load)
	root.AddCommand(
		serve,
		newMigrateCommand(opts.Name, load),
		newHealthcheckCommand(load),
		newTokenCommand(load),
		newConfigCommand(opts.EnvPrefix, flags),
		newVersionCommand(opts.Name),
	)
	root.RunE = serve.RunE
	return root
}

func registerConfigFlags(fs *pflag.FlagSet) {
	fs.Int("port", 0, "HTTP port")
	fs.String("database-type", "", "database dialect (postgres or mysql)")
	fs.String("database-url", "", "database connection URL")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("i18n-catalog-path", "", "directory with message catalog overrides")
	fs.String("metrics-path", "", "path of the Prometheus endpoint")
}

func newLoader(envPrefix string, flags *globalFlags, fs *pflag.FlagSet) *config.ViperLoader {
	return config.NewViperLoader(flags.configFile, envPrefix).
		WithEnvFile(flags.envFile).
		WithFlags(fs)
}

func loadConfigAndLogger(envPrefix string, flags *globalFlags, fs *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	cfg, err := newLoader(envPrefix, flags, fs).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logger.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log.With("service", cfg.Service.Name, "environment", cfg.Service.Environment), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute runs cmd and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
