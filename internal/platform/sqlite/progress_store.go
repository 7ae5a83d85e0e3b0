package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// ProgressStore implements store.ProgressStore on SQLite.
type ProgressStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ store.ProgressStore = (*ProgressStore)(nil)

// NewProgressStore creates a ProgressStore. It panics if db is nil.
func NewProgressStore(db *sqlx.DB, logger *slog.Logger) *ProgressStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressStore{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite_progress_store")),
	}
}

const selectProgress = `
	SELECT user_id, item_id, srs_level, next_review_at, review_count, correct_count,
		last_reviewed_at, created_at, updated_at
	FROM review_progress`

func normalize(p *domain.ReviewProgress) *domain.ReviewProgress {
	p.NextReviewAt = p.NextReviewAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.LastReviewedAt != nil {
		t := p.LastReviewedAt.UTC()
		p.LastReviewedAt = &t
	}
	return p
}

// GetMany implements store.ProgressStore.GetMany
func (s *ProgressStore) GetMany(
	ctx context.Context,
	userID uuid.UUID,
	itemIDs []uuid.UUID,
) (map[uuid.UUID]*domain.ReviewProgress, error) {
	out := make(map[uuid.UUID]*domain.ReviewProgress, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = id.String()
	}
	query, args, err := sqlx.In(selectProgress+` WHERE user_id = ? AND item_id IN (?)`, userID.String(), ids)
	if err != nil {
		return nil, store.NewStoreError("review_progress", "get_many", "failed to build query", err)
	}

	var records []*domain.ReviewProgress
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to fetch review progress",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, store.NewStoreError("review_progress", "get_many", "query failed", MapError(err))
	}
	for _, p := range records {
		out[p.ItemID] = normalize(p)
	}
	return out, nil
}

// Get implements store.ProgressStore.Get
func (s *ProgressStore) Get(ctx context.Context, userID, itemID uuid.UUID) (*domain.ReviewProgress, error) {
	var p domain.ReviewProgress
	err := s.db.GetContext(ctx, &p, selectProgress+` WHERE user_id = ? AND item_id = ?`,
		userID.String(), itemID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProgressNotFound
		}
		return nil, store.NewStoreError("review_progress", "get", "query failed", MapError(err))
	}
	return normalize(&p), nil
}

// Upsert implements store.ProgressStore.Upsert
func (s *ProgressStore) Upsert(ctx context.Context, p *domain.ReviewProgress) error {
	if p == nil {
		return fmt.Errorf("%w: nil review progress", store.ErrInvalidEntity)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO review_progress
			(user_id, item_id, srs_level, next_review_at, review_count, correct_count,
			 last_reviewed_at, created_at, updated_at)
		VALUES
			(:user_id, :item_id, :srs_level, :next_review_at, :review_count, :correct_count,
			 :last_reviewed_at, :created_at, :updated_at)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			srs_level = excluded.srs_level,
			next_review_at = excluded.next_review_at,
			review_count = excluded.review_count,
			correct_count = excluded.correct_count,
			last_reviewed_at = excluded.last_reviewed_at,
			updated_at = excluded.updated_at
		WHERE review_progress.review_count < excluded.review_count`, p)
	if err != nil {
		mapped := MapError(err)
		if isForeignKeyViolation(err) {
			mapped = fmt.Errorf("%w: %v", store.ErrItemNotFound, err)
		}
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to upsert review progress",
			slog.String("error", err.Error()),
			slog.String("user_id", p.UserID.String()),
			slog.String("item_id", p.ItemID.String()))
		return store.NewStoreError("review_progress", "upsert", "write failed", mapped)
	}
	return nil
}
