package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// PostgresProgressStore implements the store.ProgressStore interface
// using a PostgreSQL database as the storage backend.
type PostgresProgressStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProgressStore creates a new PostgreSQL implementation of the ProgressStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresProgressStore(db store.DBTX, logger *slog.Logger) *PostgresProgressStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProgressStore{
		db:     db,
		logger: logger.With(slog.String("component", "progress_store")),
	}
}

// Ensure PostgresProgressStore implements store.ProgressStore interface
var _ store.ProgressStore = (*PostgresProgressStore)(nil)

// WithTx returns a store that runs its queries in tx.
func (s *PostgresProgressStore) WithTx(tx *sql.Tx) *PostgresProgressStore {
	return &PostgresProgressStore{db: tx, logger: s.logger}
}

const selectProgressColumns = `
	SELECT user_id, item_id, srs_level, next_review_at, review_count, correct_count,
		last_reviewed_at, created_at, updated_at
	FROM review_progress`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*domain.ReviewProgress, error) {
	var p domain.ReviewProgress
	var lastReviewed sql.NullTime
	if err := row.Scan(
		&p.UserID,
		&p.ItemID,
		&p.SRSLevel,
		&p.NextReviewAt,
		&p.ReviewCount,
		&p.CorrectCount,
		&lastReviewed,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time.UTC()
		p.LastReviewedAt = &t
	}
	p.NextReviewAt = p.NextReviewAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// GetMany implements store.ProgressStore.GetMany
func (s *PostgresProgressStore) GetMany(
	ctx context.Context,
	userID uuid.UUID,
	itemIDs []uuid.UUID,
) (map[uuid.UUID]*domain.ReviewProgress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	out := make(map[uuid.UUID]*domain.ReviewProgress, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx,
		selectProgressColumns+` WHERE user_id = $1 AND item_id = ANY($2::uuid[])`,
		userID, ids)
	if err != nil {
		log.Error("failed to fetch review progress",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("items", len(itemIDs)))
		return nil, store.NewStoreError("review_progress", "get_many", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, store.NewStoreError("review_progress", "get_many", "scan failed", MapError(err))
		}
		out[p.ItemID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_progress", "get_many", "iteration failed", MapError(err))
	}
	return out, nil
}

// Get implements store.ProgressStore.Get
func (s *PostgresProgressStore) Get(ctx context.Context, userID, itemID uuid.UUID) (*domain.ReviewProgress, error) {
	row := s.db.QueryRowContext(ctx,
		selectProgressColumns+` WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	p, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProgressNotFound
		}
		return nil, store.NewStoreError("review_progress", "get", "query failed", MapError(err))
	}
	return p, nil
}

// Upsert implements store.ProgressStore.Upsert
func (s *PostgresProgressStore) Upsert(ctx context.Context, p *domain.ReviewProgress) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if p == nil {
		return fmt.Errorf("%w: nil review progress", store.ErrInvalidEntity)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var lastReviewed sql.NullTime
	if p.LastReviewedAt != nil {
		lastReviewed = sql.NullTime{Time: *p.LastReviewedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_progress
			(user_id, item_id, srs_level, next_review_at, review_count, correct_count,
			 last_reviewed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			srs_level = EXCLUDED.srs_level,
			next_review_at = EXCLUDED.next_review_at,
			review_count = EXCLUDED.review_count,
			correct_count = EXCLUDED.correct_count,
			last_reviewed_at = EXCLUDED.last_reviewed_at,
			updated_at = EXCLUDED.updated_at
		WHERE review_progress.review_count < EXCLUDED.review_count`,
		p.UserID,
		p.ItemID,
		p.SRSLevel,
		p.NextReviewAt,
		p.ReviewCount,
		p.CorrectCount,
		lastReviewed,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if IsForeignKeyViolation(err) {
			mapped = fmt.Errorf("%w: %v", store.ErrItemNotFound, err)
		}
		log.Warn("failed to upsert review progress",
			slog.String("error", err.Error()),
			slog.String("user_id", p.UserID.String()),
			slog.String("item_id", p.ItemID.String()))
		return store.NewStoreError("review_progress", "upsert", "write failed", mapped)
	}
	return nil
}
