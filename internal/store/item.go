package store

import (
	"context"

	"github.com/phrazzld/kotoba-api/internal/domain"
)

// ItemStore defines the interface for the vocabulary catalog.
type ItemStore interface {
	// ListByLevel returns every item tagged with the given proficiency level,
	// ordered by reading, then kanji. An unknown level yields an empty slice.
	ListByLevel(ctx context.Context, level string) ([]*domain.VocabularyItem, error)

	// UpsertMany inserts items or replaces existing ones with the same ID.
	// All items are validated before anything is written; the write is atomic.
	UpsertMany(ctx context.Context, items []*domain.VocabularyItem) error

	// CountByLevel returns the number of items tagged with each level.
	CountByLevel(ctx context.Context) (map[string]int, error)
}
