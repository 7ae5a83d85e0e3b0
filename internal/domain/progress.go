package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MaxSRSLevel is the highest spaced repetition level. Items at this level
// are considered mastered.
const MaxSRSLevel = 5

// Common validation errors for ReviewProgress
var (
	ErrEmptyProgressUserID = errors.New("review progress user ID cannot be empty")
	ErrEmptyProgressItemID = errors.New("review progress item ID cannot be empty")
	ErrInvalidSRSLevel     = errors.New("srs level must be between 0 and 5")
	ErrInvalidReviewCount  = errors.New("review count cannot be negative")
	ErrInvalidCorrectCount = errors.New("correct count must be between 0 and review count")
)

// ReviewProgress tracks a user's spaced repetition state for a single
// vocabulary item. A missing record (nil pointer) means the item is new:
// level 0 and due immediately.
type ReviewProgress struct {
	UserID         uuid.UUID  `json:"user_id"          db:"user_id"`
	ItemID         uuid.UUID  `json:"item_id"          db:"item_id"`
	SRSLevel       int        `json:"srs_level"        db:"srs_level"`
	NextReviewAt   time.Time  `json:"next_review_at"   db:"next_review_at"`
	ReviewCount    int        `json:"review_count"     db:"review_count"`
	CorrectCount   int        `json:"correct_count"    db:"correct_count"`
	LastReviewedAt *time.Time `json:"last_reviewed_at" db:"last_reviewed_at"` // nil until the first recorded outcome
	CreatedAt      time.Time  `json:"created_at"       db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"       db:"updated_at"`
}

// Validate checks if the ReviewProgress has valid data.
// Returns an error if any field fails validation.
func (p *ReviewProgress) Validate() error {
	if p.UserID == uuid.Nil {
		return ErrEmptyProgressUserID
	}

	if p.ItemID == uuid.Nil {
		return ErrEmptyProgressItemID
	}

	if p.SRSLevel < 0 || p.SRSLevel > MaxSRSLevel {
		return ErrInvalidSRSLevel
	}

	if p.ReviewCount < 0 {
		return ErrInvalidReviewCount
	}

	if p.CorrectCount < 0 || p.CorrectCount > p.ReviewCount {
		return ErrInvalidCorrectCount
	}

	return nil
}

// Clone returns a deep copy of the record.
func (p *ReviewProgress) Clone() *ReviewProgress {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastReviewedAt != nil {
		t := *p.LastReviewedAt
		c.LastReviewedAt = &t
	}
	return &c
}

// Key identifies a progress record by its composite key.
func (p *ReviewProgress) Key() ProgressKey {
	return ProgressKey{UserID: p.UserID, ItemID: p.ItemID}
}

// ProgressKey is the (user, item) composite key of a ReviewProgress record.
type ProgressKey struct {
	UserID uuid.UUID
	ItemID uuid.UUID
}
