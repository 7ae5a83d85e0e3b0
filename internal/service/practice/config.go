package practice

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/kotoba-api/internal/domain"
)

// DefaultWordsPerSession is the session size when none is configured.
const DefaultWordsPerSession = 10

var validate = validator.New()

// SessionConfig controls how a session is selected and presented.
type SessionConfig struct {
	// WordsPerSession caps the number of items in the session.
	WordsPerSession int `validate:"gt=0"`
	// IncludeMastered keeps items at the top level in automatic selection.
	IncludeMastered bool
	// ShuffleOrder draws a random subset in random order instead of the
	// first WordsPerSession candidates in catalog order.
	ShuffleOrder bool
	// WritingMode picks the text used for tracing and testing. Empty means kanji.
	WritingMode domain.WritingMode `validate:"omitempty,oneof=kanji reading"`
}

// DefaultSessionConfig returns the configuration used when a caller supplies none.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		WordsPerSession: DefaultWordsPerSession,
		WritingMode:     domain.WritingModeKanji,
	}
}

// Validate rejects malformed configuration before any selection runs.
func (c SessionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: session config: %v", ErrInvalidInput, err)
	}
	return nil
}

func (c SessionConfig) writingMode() domain.WritingMode {
	if c.WritingMode == "" {
		return domain.WritingModeKanji
	}
	return c.WritingMode
}

// Mode selects the per-item protocol.
type Mode string

const (
	// ModeLearn walks every item through present, trace and test.
	ModeLearn Mode = "learn"
	// ModeReview only tests.
	ModeReview Mode = "review"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeLearn || m == ModeReview
}

// firstStep is the step every item starts in.
func (m Mode) firstStep() Step {
	if m == ModeLearn {
		return StepPresent
	}
	return StepTest
}

// Step is the per-item protocol state.
type Step string

const (
	StepPresent Step = "present"
	StepTrace   Step = "trace"
	StepTest    Step = "test"
	// StepNone is reported once the session is no longer running.
	StepNone Step = ""
)

// Action is a discrete learner input.
type Action string

const (
	// ActionNext leaves the presentation step.
	ActionNext Action = "next"
	// ActionComplete signals the trace or quiz widget finished.
	ActionComplete Action = "complete"
	// ActionSkip skips tracing or testing. A skipped test still counts as correct.
	ActionSkip Action = "skip"
	// ActionForgot ends a test as incorrect.
	ActionForgot Action = "forgot"
)

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionNext, ActionComplete, ActionSkip, ActionForgot:
		return true
	}
	return false
}

// State is the session lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
)

// WidgetMode tells the trace widget whether to guide strokes.
type WidgetMode string

const (
	WidgetTrace WidgetMode = "trace"
	WidgetQuiz  WidgetMode = "quiz"
)
