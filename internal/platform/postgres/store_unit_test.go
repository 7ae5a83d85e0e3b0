package postgres

import (
	"database/sql"
	"io/fs"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/kotoba-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoresPanicOnNilDB(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewPostgresItemStore(nil, slog.Default()) })
	assert.Panics(t, func() { NewPostgresProgressStore(nil, slog.Default()) })
}

func TestNewStoresDefaultLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		db     store.DBTX
		logger *slog.Logger
	}{
		{name: "with logger", db: &sql.DB{}, logger: slog.Default()},
		{name: "nil logger uses default", db: &sql.DB{}, logger: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			items := NewPostgresItemStore(tt.db, tt.logger)
			assert.NotNil(t, items.logger)
			assert.NotNil(t, items.now)

			progress := NewPostgresProgressStore(tt.db, tt.logger)
			assert.NotNil(t, progress.logger)
			assert.Same(t, progress.logger, progress.WithTx(&sql.Tx{}).logger)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(Migrations(), ".")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, entry := range entries {
		body, err := fs.ReadFile(Migrations(), entry.Name())
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(entry.Name(), ".sql"), entry.Name())
		assert.Contains(t, string(body), "-- +goose Up")
		assert.Contains(t, string(body), "-- +goose Down")
	}
}
