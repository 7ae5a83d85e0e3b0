// Package migrate applies the embedded SQL migrations of a storage backend
// using goose.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// Supported commands
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandStatus  = "status"
	CommandVersion = "version"
)

// ErrUnknownCommand is returned for a command other than the ones above.
var ErrUnknownCommand = errors.New("unknown migration command")

// Runner applies one backend's migrations to one database.
type Runner struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// NewRunner creates a Runner for migrations stored at the root of fsys.
func NewRunner(dialect goose.Dialect, db *sql.DB, fsys fs.FS, logger *slog.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return &Runner{
		provider: provider,
		logger:   logger.With(slog.String("component", "migrations"), slog.String("dialect", string(dialect))),
	}, nil
}

// Run executes command. Status and version results are logged.
func (r *Runner) Run(ctx context.Context, command string) error {
	switch command {
	case CommandUp:
		_, err := r.Up(ctx)
		return err
	case CommandDown:
		return r.Down(ctx)
	case CommandStatus:
		return r.Status(ctx)
	case CommandVersion:
		v, err := r.Version(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("current schema version", slog.Int64("version", v))
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
}

// Up applies every pending migration and returns the number applied.
func (r *Runner) Up(ctx context.Context) (int, error) {
	results, err := r.provider.Up(ctx)
	for _, res := range results {
		r.logResult(res)
	}
	if err != nil {
		return len(results), fmt.Errorf("failed to apply migrations: %w", err)
	}
	if len(results) == 0 {
		r.logger.Debug("schema is up to date")
	}
	return len(results), nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	res, err := r.provider.Down(ctx)
	if res != nil {
		r.logResult(res)
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// Status logs the state of every known migration.
func (r *Runner) Status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, s := range statuses {
		r.logger.Info("migration status",
			slog.Int64("version", s.Source.Version),
			slog.String("path", s.Source.Path),
			slog.String("state", string(s.State)))
	}
	return nil
}

// Version returns the latest applied version, 0 for an empty database.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	v, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

func (r *Runner) logResult(res *goose.MigrationResult) {
	attrs := []any{
		slog.Int64("version", res.Source.Version),
		slog.String("path", res.Source.Path),
		slog.String("direction", res.Direction),
		slog.Int64("duration_ms", res.Duration.Milliseconds()),
	}
	if res.Error != nil {
		r.logger.Error("migration failed", append(attrs, slog.String("error", res.Error.Error()))...)
		return
	}
	r.logger.Info("migration applied", attrs...)
}
