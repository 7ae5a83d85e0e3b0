package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// ItemStore implements store.ItemStore on SQLite.
type ItemStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ store.ItemStore = (*ItemStore)(nil)

// NewItemStore creates an ItemStore. It panics if db is nil.
func NewItemStore(db *sqlx.DB, logger *slog.Logger) *ItemStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite_item_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListByLevel implements store.ItemStore.ListByLevel
func (s *ItemStore) ListByLevel(ctx context.Context, level string) ([]*domain.VocabularyItem, error) {
	items := make([]*domain.VocabularyItem, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, kanji, reading, romaji, meaning, part_of_speech, jlpt_level, created_at, updated_at
		FROM vocabulary_items
		WHERE jlpt_level = ?
		ORDER BY reading, kanji, id`, level)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list vocabulary items",
			slog.String("error", err.Error()),
			slog.String("level", level))
		return nil, store.NewStoreError("vocabulary_item", "list", "query failed", MapError(err))
	}
	for _, item := range items {
		item.CreatedAt = item.CreatedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
	}
	return items, nil
}

// UpsertMany implements store.ItemStore.UpsertMany
func (s *ItemStore) UpsertMany(ctx context.Context, items []*domain.VocabularyItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: item %s: %v", store.ErrInvalidEntity, item.ID, err)
		}
	}
	if len(items) == 0 {
		return nil
	}

	now := s.now()
	err := store.RunInTransaction(ctx, s.db.DB, func(ctx context.Context, tx *sql.Tx) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO vocabulary_items
					(id, kanji, reading, romaji, meaning, part_of_speech, jlpt_level, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					kanji = excluded.kanji,
					reading = excluded.reading,
					romaji = excluded.romaji,
					meaning = excluded.meaning,
					part_of_speech = excluded.part_of_speech,
					jlpt_level = excluded.jlpt_level,
					updated_at = excluded.updated_at`,
				item.ID, item.Kanji, item.Reading, item.Romaji, item.Meaning,
				item.PartOfSpeech, item.Level, now, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to upsert vocabulary items",
			slog.String("error", err.Error()),
			slog.Int("count", len(items)))
		return store.NewStoreError("vocabulary_item", "upsert", "write failed", MapError(err))
	}
	return nil
}

// CountByLevel implements store.ItemStore.CountByLevel
func (s *ItemStore) CountByLevel(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Level string `db:"jlpt_level"`
		Count int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT jlpt_level, COUNT(*) AS n FROM vocabulary_items GROUP BY jlpt_level`); err != nil {
		return nil, store.NewStoreError("vocabulary_item", "count", "query failed", MapError(err))
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Level] = r.Count
	}
	return counts, nil
}
