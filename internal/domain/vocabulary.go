package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Vocabulary item validation errors
var (
	// ErrItemIDEmpty is returned when a vocabulary item ID is nil.
	ErrItemIDEmpty = errors.New("vocabulary item ID cannot be empty")

	// ErrItemWrittenFormEmpty is returned when an item has neither kanji nor reading.
	ErrItemWrittenFormEmpty = errors.New("vocabulary item needs a kanji or reading form")

	// ErrItemMeaningEmpty is returned when an item has no meaning.
	ErrItemMeaningEmpty = errors.New("vocabulary item meaning cannot be empty")
)

// WritingMode selects which written form of an item the learner traces.
type WritingMode string

// Supported writing modes
const (
	WritingModeKanji   WritingMode = "kanji"
	WritingModeReading WritingMode = "reading"
)

// IsValid reports whether m is a known writing mode.
func (m WritingMode) IsValid() bool {
	return m == WritingModeKanji || m == WritingModeReading
}

// VocabularyItem is a single word of study material. Items are created by
// content import and are never mutated by the practice flow.
type VocabularyItem struct {
	ID           uuid.UUID `json:"id"             db:"id"`
	Kanji        string    `json:"kanji"          db:"kanji"`
	Reading      string    `json:"reading"        db:"reading"`
	Romaji       string    `json:"romaji"         db:"romaji"`
	Meaning      string    `json:"meaning"        db:"meaning"`
	PartOfSpeech string    `json:"part_of_speech" db:"part_of_speech"`
	Level        string    `json:"level"          db:"jlpt_level"`
	CreatedAt    time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"     db:"updated_at"`
}

// Validate checks if the VocabularyItem has valid data.
// Returns an error if any field fails validation.
func (v *VocabularyItem) Validate() error {
	if v.ID == uuid.Nil {
		return ErrItemIDEmpty
	}

	if strings.TrimSpace(v.Kanji) == "" && strings.TrimSpace(v.Reading) == "" {
		return ErrItemWrittenFormEmpty
	}

	if strings.TrimSpace(v.Meaning) == "" {
		return ErrItemMeaningEmpty
	}

	if !IsValidLevelTag(v.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLevelTag, v.Level)
	}

	return nil
}

// TraceText returns the text the learner writes for the given mode.
// Kana-only words have no kanji form, so kanji mode falls back to the reading.
func (v *VocabularyItem) TraceText(mode WritingMode) string {
	if mode == WritingModeReading || v.Kanji == "" {
		return v.Reading
	}
	return v.Kanji
}

// DisplayForm returns the primary written form shown to the learner.
func (v *VocabularyItem) DisplayForm() string {
	if v.Kanji != "" {
		return v.Kanji
	}
	return v.Reading
}

// NormalizeLevelTag upper-cases and trims a level tag ("n5 " -> "N5").
func NormalizeLevelTag(level string) string {
	return strings.ToUpper(strings.TrimSpace(level))
}

// IsValidLevelTag reports whether level is one of N1..N5.
func IsValidLevelTag(level string) bool {
	if len(level) != 2 || level[0] != 'N' {
		return false
	}
	return level[1] >= '1' && level[1] <= '5'
}
