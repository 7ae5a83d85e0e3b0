package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/kotoba-api/internal/config"
	"github.com/phrazzld/kotoba-api/internal/platform/migrate"
	"github.com/phrazzld/kotoba-api/internal/platform/postgres"
	"github.com/phrazzld/kotoba-api/internal/platform/sqlite"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// backend bundles the stores and migration runner of one storage driver.
type backend struct {
	driver   string
	items    store.ItemStore
	progress store.ProgressStore
	migrator *migrate.Runner
	close    func() error
}

// openBackend connects to the configured database. Postgres is the server
// default; sqlite serves single-user and offline installs.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*backend, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		runner, err := postgres.NewMigrationRunner(db, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create migration runner: %w", err)
		}
		return &backend{
			driver:   cfg.Driver,
			items:    postgres.NewPostgresItemStore(db, logger),
			progress: postgres.NewPostgresProgressStore(db, logger),
			migrator: runner,
			close:    db.Close,
		}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		runner, err := sqlite.NewMigrationRunner(db, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create migration runner: %w", err)
		}
		return &backend{
			driver:   cfg.Driver,
			items:    sqlite.NewItemStore(db, logger),
			progress: sqlite.NewProgressStore(db, logger),
			migrator: runner,
			close:    db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Close releases the database connection.
func (b *backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}
