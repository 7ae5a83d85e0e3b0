package srs

import (
	"errors"
	"fmt"

	"github.com/phrazzld/kotoba-api/internal/domain"
)

// MaxLevel is the mastery ceiling of the leveling scheme.
const MaxLevel = domain.MaxSRSLevel

// Parameter validation errors
var (
	ErrIntervalTableLength = errors.New("interval table must have one entry per level")
	ErrIntervalTableStart  = errors.New("level 0 interval must be 0 days")
	ErrIntervalTableOrder  = errors.New("interval table must be non-decreasing")
)

// defaultIntervalDays returns the review spacing per level, in days.
func defaultIntervalDays() []int {
	return []int{0, 1, 3, 7, 14, 30}
}

// Params defines the configurable parameters of the leveled scheduler
type Params struct {
	// IntervalDays[level] is the wait before the next review at that level
	IntervalDays []int

	// MinIncorrectLevel is the floor applied when demoting after an incorrect answer.
	// A floor of 1 keeps a failed item from being re-queued as brand new.
	MinIncorrectLevel int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		IntervalDays:      defaultIntervalDays(),
		MinIncorrectLevel: 1,
	}
}

// Validate checks the interval table is usable by the scheduler.
func (p *Params) Validate() error {
	if len(p.IntervalDays) != MaxLevel+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrIntervalTableLength, len(p.IntervalDays), MaxLevel+1)
	}
	if p.IntervalDays[0] != 0 {
		return ErrIntervalTableStart
	}
	for level := 1; level <= MaxLevel; level++ {
		if p.IntervalDays[level] < p.IntervalDays[level-1] {
			return fmt.Errorf("%w: level %d (%d days) < level %d (%d days)",
				ErrIntervalTableOrder,
				level, p.IntervalDays[level],
				level-1, p.IntervalDays[level-1])
		}
	}
	if p.MinIncorrectLevel < 0 || p.MinIncorrectLevel > MaxLevel {
		return fmt.Errorf("min incorrect level %d out of range [0, %d]", p.MinIncorrectLevel, MaxLevel)
	}
	return nil
}
