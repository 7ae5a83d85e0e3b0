package srs

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
)

// defaultParams backs the package-level helpers.
var defaultParams = NewDefaultParams()

// clampLevel forces level into [0, MaxLevel]. Stored levels are validated,
// but callers may pass raw input, so negatives become 0.
func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// NextInterval returns the number of days until the next review for the
// given level using the default table:
//
//	level: 0  1  2  3   4   5
//	days:  0  1  3  7  14  30
//
// Level 0 means due immediately. Levels are clamped to [0, MaxLevel].
func NextInterval(level int) int {
	return defaultParams.NextInterval(level)
}

// AdvanceLevel computes the level after a review outcome.
//
// A correct answer promotes by exactly one step, capped at MaxLevel.
// An incorrect answer halves the level (integer division) but never drops
// below 1, so a failed item still waits at least one interval step instead of
// being treated as new.
func AdvanceLevel(currentLevel int, wasCorrect bool) int {
	return defaultParams.AdvanceLevel(currentLevel, wasCorrect)
}

// ComputeNextReviewDate returns now plus NextInterval(level) calendar days.
func ComputeNextReviewDate(level int, now time.Time) time.Time {
	return defaultParams.ComputeNextReviewDate(level, now)
}

// IsDue reports whether an item scheduled at nextReviewAt is due at now.
// The boundary is inclusive.
func IsDue(nextReviewAt, now time.Time) bool {
	return !nextReviewAt.After(now)
}

// IsMastered reports whether level has reached the ceiling.
func IsMastered(level int) bool {
	return level >= MaxLevel
}

// IsProgressDue reports whether an item with the given progress is due at now.
// Absent progress means a new item, which is always due.
func IsProgressDue(p *domain.ReviewProgress, now time.Time) bool {
	if p == nil {
		return true
	}
	return IsDue(p.NextReviewAt, now)
}

// NextInterval returns the interval in days for level using p's table.
func (p *Params) NextInterval(level int) int {
	return p.IntervalDays[clampLevel(level)]
}

// AdvanceLevel applies the promote/demote rule with p's floor.
func (p *Params) AdvanceLevel(currentLevel int, wasCorrect bool) int {
	current := clampLevel(currentLevel)
	if wasCorrect {
		return min(current+1, MaxLevel)
	}
	return max(p.MinIncorrectLevel, current/2)
}

// ComputeNextReviewDate adds the level's interval to now as whole calendar days.
func (p *Params) ComputeNextReviewDate(level int, now time.Time) time.Time {
	return now.AddDate(0, 0, p.NextInterval(level))
}

// calculateNextProgress builds the record that results from recording one
// outcome against prev. prev may be nil for an item that has never been
// reviewed. The input is never modified.
func calculateNextProgress(
	prev *domain.ReviewProgress,
	userID, itemID uuid.UUID,
	wasCorrect bool,
	now time.Time,
	params *Params,
) *domain.ReviewProgress {
	next := prev.Clone()
	if next == nil {
		next = &domain.ReviewProgress{
			UserID:    userID,
			ItemID:    itemID,
			SRSLevel:  0,
			CreatedAt: now,
		}
	}

	next.SRSLevel = params.AdvanceLevel(next.SRSLevel, wasCorrect)
	next.NextReviewAt = params.ComputeNextReviewDate(next.SRSLevel, now)

	next.ReviewCount++
	if wasCorrect {
		next.CorrectCount++
	}

	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	next.UpdatedAt = now

	return next
}
