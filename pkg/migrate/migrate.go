// Package migrate applies the versioned tutorhub schema to PostgreSQL or MySQL.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

const (
	defaultSubcommand = "up"
	defaultSteps      = 1
	defaultTimeout    = 60 * time.Second
)

// PendingMigration is an unapplied migration listed by status.
type PendingMigration struct {
	Version int64
	Name    string
}

// Status lists applied versions in ascending order and the migrations still pending.
type Status struct {
	AppliedVersions []int64
	Pending         []PendingMigration
}

// Operations are the hooks a migrate command drives.
type Operations struct {
	Up     func(ctx context.Context) (int, error)
	Down   func(ctx context.Context, steps int) (int, error)
	Status func(ctx context.Context) (*Status, error)
}

// OperationsFor exposes m through Operations.
func OperationsFor(m *SQLManager) Operations {
	return Operations{Up: m.Up, Down: m.Down, Status: m.Status}
}

// Options configures migration command behavior.
type Options struct {
	ServiceName string
	Dialect     string
	Timeout     time.Duration
	Logger      logger.Logger
}

// Run parses args and executes the migrate subcommand.
func Run(ctx context.Context, args []string, opts Options, ops Operations) error {
	subcommand, steps, err := ParseArgs(args)
	if err != nil {
		return err
	}
	return RunParsed(ctx, subcommand, steps, opts, ops)
}

// RunParsed executes a parsed migration command under opts.Timeout.
func RunParsed(ctx context.Context, subcommand string, steps int, opts Options, ops Operations) error {
	if err := validateOptions(opts); err != nil {
		return err
	}
	if err := validateOperations(ops); err != nil {
		return err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch subcommand {
	case "up":
		applied, err := ops.Up(ctx)
		if err != nil {
			return err
		}
		opts.Logger.Info("migrations applied", "count", applied, "dialect", opts.Dialect)
		return nil
	case "down":
		if steps <= 0 {
			return errors.New("steps must be greater than zero")
		}
		reverted, err := ops.Down(ctx, steps)
		if err != nil {
			return err
		}
		opts.Logger.Info("migrations reverted", "count", reverted, "steps", steps, "dialect", opts.Dialect)
		return nil
	case "status":
		status, err := ops.Status(ctx)
		if err != nil {
			return err
		}
		opts.Logger.Info("migration status", "applied", len(status.AppliedVersions), "pending", len(status.Pending), "dialect", opts.Dialect)
		for _, version := range status.AppliedVersions {
			opts.Logger.Info("migration applied", "version", version)
		}
		for _, pending := range status.Pending {
			opts.Logger.Info("migration pending", "version", pending.Version, "name", pending.Name)
		}
		return nil
	default:
		return usageError(opts.ServiceName)
	}
}

// ParseArgs parses [up|down|status] [steps], defaulting to "up".
func ParseArgs(args []string) (string, int, error) {
	subcommand := defaultSubcommand
	if len(args) > 0 {
		subcommand = args[0]
	}

	steps := defaultSteps
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid down steps %q", args[1])
		}
		steps = parsed
	}

	return subcommand, steps, nil
}

func validateOptions(opts Options) error {
	if opts.Logger == nil {
		return errors.New("migration logger is required")
	}
	if opts.ServiceName == "" {
		return errors.New("migration service name is required")
	}
	return nil
}

func validateOperations(ops Operations) error {
	if ops.Up == nil || ops.Down == nil || ops.Status == nil {
		return errors.New("migration operations are incomplete")
	}
	return nil
}

func usageError(serviceName string) error {
	return fmt.Errorf("usage: %s migrate [up|down|status] [steps]", serviceName)
}
