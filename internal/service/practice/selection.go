package practice

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/domain/srs"
)

// ShuffleFunc permutes n elements through swap, with the contract of rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// DefaultShuffle is a uniform permutation from the global source.
func DefaultShuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// SelectForSession picks the items for one session.
//
// A non-empty manualIDs list short-circuits automatic selection: the matching
// items are returned in the order given, regardless of due date or mastery.
// Unknown and repeated ids are skipped.
//
// Otherwise the candidates are the items with no progress or whose progress
// is due at now, minus mastered items unless cfg.IncludeMastered. With
// cfg.ShuffleOrder the candidates are permuted before truncation, so the
// session is a random subset.
//
// Either way the result holds at most cfg.WordsPerSession items. An empty
// result returns ErrEmptySession. The inputs are not modified.
func SelectForSession(
	items []*domain.VocabularyItem,
	progress map[uuid.UUID]*domain.ReviewProgress,
	manualIDs []uuid.UUID,
	cfg SessionConfig,
	now time.Time,
	shuffle ShuffleFunc,
) ([]*domain.VocabularyItem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var selected []*domain.VocabularyItem
	if len(manualIDs) > 0 {
		selected = selectManual(items, manualIDs)
	} else {
		selected = selectDue(items, progress, cfg.IncludeMastered, now)
		if cfg.ShuffleOrder && len(selected) > 1 {
			if shuffle == nil {
				shuffle = DefaultShuffle
			}
			shuffle(len(selected), func(i, j int) {
				selected[i], selected[j] = selected[j], selected[i]
			})
		}
	}

	if len(selected) > cfg.WordsPerSession {
		selected = selected[:cfg.WordsPerSession]
	}
	if len(selected) == 0 {
		return nil, ErrEmptySession
	}
	return selected, nil
}

func selectManual(items []*domain.VocabularyItem, manualIDs []uuid.UUID) []*domain.VocabularyItem {
	byID := make(map[uuid.UUID]*domain.VocabularyItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	seen := make(map[uuid.UUID]struct{}, len(manualIDs))
	selected := make([]*domain.VocabularyItem, 0, len(manualIDs))
	for _, id := range manualIDs {
		item, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, item)
	}
	return selected
}

func selectDue(
	items []*domain.VocabularyItem,
	progress map[uuid.UUID]*domain.ReviewProgress,
	includeMastered bool,
	now time.Time,
) []*domain.VocabularyItem {
	selected := make([]*domain.VocabularyItem, 0, len(items))
	for _, item := range items {
		p := progress[item.ID]
		if p != nil {
			if !srs.IsDue(p.NextReviewAt, now) {
				continue
			}
			if !includeMastered && srs.IsMastered(p.SRSLevel) {
				continue
			}
		}
		selected = append(selected, item)
	}
	return selected
}
