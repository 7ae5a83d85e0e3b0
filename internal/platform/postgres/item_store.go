package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// PostgresItemStore implements the store.ItemStore interface
// using a PostgreSQL database as the storage backend.
type PostgresItemStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresItemStore creates a new PostgreSQL implementation of the ItemStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresItemStore(db store.DBTX, logger *slog.Logger) *PostgresItemStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "item_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ensure PostgresItemStore implements store.ItemStore interface
var _ store.ItemStore = (*PostgresItemStore)(nil)

const selectItemColumns = `
	SELECT id, kanji, reading, romaji, meaning, part_of_speech, jlpt_level, created_at, updated_at
	FROM vocabulary_items`

// ListByLevel implements store.ItemStore.ListByLevel
func (s *PostgresItemStore) ListByLevel(ctx context.Context, level string) ([]*domain.VocabularyItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		selectItemColumns+` WHERE jlpt_level = $1 ORDER BY reading, kanji, id`, level)
	if err != nil {
		log.Error("failed to list vocabulary items",
			slog.String("error", err.Error()),
			slog.String("level", level))
		return nil, store.NewStoreError("vocabulary_item", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.VocabularyItem, 0)
	for rows.Next() {
		var item domain.VocabularyItem
		if err := rows.Scan(
			&item.ID,
			&item.Kanji,
			&item.Reading,
			&item.Romaji,
			&item.Meaning,
			&item.PartOfSpeech,
			&item.Level,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, store.NewStoreError("vocabulary_item", "list", "scan failed", MapError(err))
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("vocabulary_item", "list", "iteration failed", MapError(err))
	}

	log.Debug("listed vocabulary items",
		slog.String("level", level),
		slog.Int("count", len(items)))
	return items, nil
}

// UpsertMany implements store.ItemStore.UpsertMany
func (s *PostgresItemStore) UpsertMany(ctx context.Context, items []*domain.VocabularyItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: item %s: %v", store.ErrInvalidEntity, item.ID, err)
		}
	}
	if len(items) == 0 {
		return nil
	}

	now := s.now()
	err := inTx(ctx, s.db, func(ctx context.Context, q store.DBTX) error {
		stmt, err := q.PrepareContext(ctx, `
			INSERT INTO vocabulary_items
				(id, kanji, reading, romaji, meaning, part_of_speech, jlpt_level, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			ON CONFLICT (id) DO UPDATE SET
				kanji = EXCLUDED.kanji,
				reading = EXCLUDED.reading,
				romaji = EXCLUDED.romaji,
				meaning = EXCLUDED.meaning,
				part_of_speech = EXCLUDED.part_of_speech,
				jlpt_level = EXCLUDED.jlpt_level,
				updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx,
				item.ID,
				item.Kanji,
				item.Reading,
				item.Romaji,
				item.Meaning,
				item.PartOfSpeech,
				item.Level,
				now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to upsert vocabulary items",
			slog.String("error", err.Error()),
			slog.Int("count", len(items)))
		return store.NewStoreError("vocabulary_item", "upsert", "write failed", MapError(err))
	}

	log.Info("upserted vocabulary items", slog.Int("count", len(items)))
	return nil
}

// CountByLevel implements store.ItemStore.CountByLevel
func (s *PostgresItemStore) CountByLevel(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT jlpt_level, COUNT(*) FROM vocabulary_items GROUP BY jlpt_level`)
	if err != nil {
		return nil, store.NewStoreError("vocabulary_item", "count", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, store.NewStoreError("vocabulary_item", "count", "scan failed", MapError(err))
		}
		counts[level] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("vocabulary_item", "count", "iteration failed", MapError(err))
	}
	return counts, nil
}
