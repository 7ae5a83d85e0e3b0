package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
)

// ProgressStore defines the interface for per-user review progress.
type ProgressStore interface {
	// GetMany returns the stored progress for the user's items that have any.
	// Items without progress are absent from the map; that is not an error.
	GetMany(
		ctx context.Context,
		userID uuid.UUID,
		itemIDs []uuid.UUID,
	) (map[uuid.UUID]*domain.ReviewProgress, error)

	// Get retrieves a single progress record.
	// Returns ErrProgressNotFound if none exists.
	Get(ctx context.Context, userID, itemID uuid.UUID) (*domain.ReviewProgress, error)

	// Upsert writes the record keyed by (UserID, ItemID), replacing an
	// existing one only when the new record has a higher ReviewCount; an
	// older or equal record is silently ignored so a late retry never rolls
	// progress back. It validates the record first.
	Upsert(ctx context.Context, p *domain.ReviewProgress) error
}
