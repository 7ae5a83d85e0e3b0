package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	// Registers the "pgx" driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/kotoba-api/internal/platform/migrate"
	"github.com/phrazzld/kotoba-api/internal/store"
	"github.com/pressly/goose/v3"
)

// DriverName is the database/sql driver name registered by pgx.
const DriverName = "pgx"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded migration files, rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		// ALLOW-PANIC: the embedded directory is fixed at build time
		panic(err)
	}
	return sub
}

// Open connects to url, configures the pool and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", MapError(err))
	}
	return db, nil
}

// NewMigrationRunner returns a runner for this backend's migrations.
func NewMigrationRunner(db *sql.DB, logger *slog.Logger) (*migrate.Runner, error) {
	return migrate.NewRunner(goose.DialectPostgres, db, Migrations(), logger)
}

// inTx runs fn in a transaction when db is a connection pool, or directly
// when db is already a transaction.
func inTx(ctx context.Context, db store.DBTX, fn func(ctx context.Context, q store.DBTX) error) error {
	pool, ok := db.(*sql.DB)
	if !ok {
		return fn(ctx, db)
	}
	return store.RunInTransaction(ctx, pool, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}
