package practice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/domain/srs"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
)

// Overview counts a learner's items at one level.
type Overview struct {
	Level string
	Total int
	// New items have never been reviewed.
	New int
	// Due items have been reviewed and are due again now.
	Due int
	// Mastered items are at the top level.
	Mastered int
	// Learning items have been reviewed and are not mastered.
	Learning int
}

// Overview summarizes userID's progress at level.
func (m *Manager) Overview(ctx context.Context, userID uuid.UUID, level string) (*Overview, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	level = domain.NormalizeLevelTag(level)
	if !domain.IsValidLevelTag(level) {
		return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidInput, level)
	}

	items, err := m.items.ListByLevel(ctx, level)
	if err != nil {
		log.Error("failed to load vocabulary for overview",
			slog.String("error", err.Error()),
			slog.String("level", level))
		return nil, NewOverviewError("failed to load vocabulary", err)
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	progress := make(map[uuid.UUID]*domain.ReviewProgress)
	if len(ids) > 0 {
		fetched, err := m.progress.GetMany(ctx, userID, ids)
		if err != nil {
			log.Error("failed to load progress for overview",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()))
			return nil, NewOverviewError("failed to load review progress", err)
		}
		for id, p := range fetched {
			progress[id] = p
		}
		m.pending.Overlay(userID, progress)
	}

	now := m.now()
	ov := &Overview{Level: level, Total: len(items)}
	for _, item := range items {
		p := progress[item.ID]
		switch {
		case p == nil:
			ov.New++
			continue
		case srs.IsMastered(p.SRSLevel):
			ov.Mastered++
		default:
			ov.Learning++
		}
		if srs.IsDue(p.NextReviewAt, now) {
			ov.Due++
		}
	}
	return ov, nil
}
