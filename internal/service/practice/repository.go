package practice

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// ItemSource provides the read-only vocabulary catalog.
type ItemSource interface {
	ListByLevel(ctx context.Context, level string) ([]*domain.VocabularyItem, error)
}

// ProgressRepository loads and saves per-user review progress.
type ProgressRepository interface {
	GetMany(
		ctx context.Context,
		userID uuid.UUID,
		itemIDs []uuid.UUID,
	) (map[uuid.UUID]*domain.ReviewProgress, error)
	Upsert(ctx context.Context, p *domain.ReviewProgress) error
}

// The store contracts satisfy the service's narrower views.
var (
	_ ItemSource         = (store.ItemStore)(nil)
	_ ProgressRepository = (store.ProgressStore)(nil)
)
