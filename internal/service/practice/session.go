package practice

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
)

// Outcome is one recorded test result.
type Outcome struct {
	ItemID     uuid.UUID
	WasCorrect bool
	// Progress is the record computed by the scheduler.
	Progress *domain.ReviewProgress
	// Saved is true when the record reached the store.
	Saved bool
	// Local is true for anonymous sessions, where no write is attempted.
	Local bool
	// Err is a *PersistenceError when the write failed.
	Err error
}

// Prompt describes what the UI should show for the current step.
type Prompt struct {
	Text      string
	Reading   string
	Meaning   string
	Widget    WidgetMode
	PlayAudio bool
}

// Snapshot is a consistent copy of a session's visible state.
type Snapshot struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	State     State
	Mode      Mode
	Level     string
	Config    SessionConfig
	Cursor    int
	Total     int
	Step      Step
	Item      *domain.VocabularyItem
	Prompt    *Prompt
	Outcomes  []Outcome
	Local     bool
	InFlight  bool
	CreatedAt time.Time
}

// Unsaved counts outcomes whose write failed.
func (s Snapshot) Unsaved() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Session is one learner's practice run. All mutation goes through Manager;
// the mutex guards every field below it.
type Session struct {
	id        uuid.UUID
	userID    *uuid.UUID
	level     string
	mode      Mode
	cfg       SessionConfig
	manualIDs []uuid.UUID
	createdAt time.Time

	mu           sync.Mutex
	state        State
	items        []*domain.VocabularyItem
	cursor       int
	step         Step
	inFlight     bool
	progress     map[uuid.UUID]*domain.ReviewProgress
	outcomes     []Outcome
	lastActivity time.Time
}

func newSession(req StartRequest, now time.Time) *Session {
	var owner *uuid.UUID
	if req.UserID != nil {
		id := *req.UserID
		owner = &id
	}
	return &Session{
		id:           uuid.New(),
		userID:       owner,
		level:        req.Level,
		mode:         req.Mode,
		cfg:          req.Config,
		manualIDs:    append([]uuid.UUID(nil), req.ItemIDs...),
		createdAt:    now,
		state:        StateNotStarted,
		lastActivity: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// IsLocal reports whether outcomes stay in memory only.
func (s *Session) IsLocal() bool {
	return s.userID == nil
}

// ownedBy reports whether requester may act on the session. Anonymous
// sessions are reachable by anyone holding the id; owned sessions only by
// their owner.
func (s *Session) ownedBy(requester *uuid.UUID) bool {
	if s.userID == nil {
		return true
	}
	return requester != nil && *requester == *s.userID
}

// begin installs a freshly selected item list. Caller holds mu.
func (s *Session) begin(items []*domain.VocabularyItem, progress map[uuid.UUID]*domain.ReviewProgress) {
	s.items = items
	s.progress = progress
	s.cursor = 0
	s.step = s.mode.firstStep()
	s.outcomes = nil
	s.state = StateRunning
}

// reset returns the session to NotStarted with nothing selected. Caller holds mu.
func (s *Session) reset() {
	s.items = nil
	s.cursor = 0
	s.step = StepNone
	s.outcomes = nil
	s.state = StateNotStarted
}

// currentItem returns the item under the cursor, or nil. Caller holds mu.
func (s *Session) currentItem() *domain.VocabularyItem {
	if s.state != StateRunning || s.cursor >= len(s.items) {
		return nil
	}
	return s.items[s.cursor]
}

// promptLocked builds the prompt for the current step. Caller holds mu.
func (s *Session) promptLocked() *Prompt {
	item := s.currentItem()
	if item == nil {
		return nil
	}
	mode := s.cfg.writingMode()
	switch s.step {
	case StepPresent:
		return &Prompt{
			Text:      item.DisplayForm(),
			Reading:   item.Reading,
			Meaning:   item.Meaning,
			PlayAudio: true,
		}
	case StepTrace:
		return &Prompt{
			Text:    item.TraceText(mode),
			Reading: item.Reading,
			Meaning: item.Meaning,
			Widget:  WidgetTrace,
		}
	case StepTest:
		// Only the meaning is shown; the answer must be recalled.
		return &Prompt{
			Text:    item.TraceText(mode),
			Meaning: item.Meaning,
			Widget:  WidgetQuiz,
		}
	}
	return nil
}

// snapshotLocked copies the visible state. Caller holds mu.
func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		UserID:    s.userID,
		State:     s.state,
		Mode:      s.mode,
		Level:     s.level,
		Config:    s.cfg,
		Cursor:    s.cursor,
		Total:     len(s.items),
		Step:      s.step,
		Prompt:    s.promptLocked(),
		Outcomes:  append([]Outcome(nil), s.outcomes...),
		Local:     s.IsLocal(),
		InFlight:  s.inFlight,
		CreatedAt: s.createdAt,
	}
	if item := s.currentItem(); item != nil {
		copied := *item
		snap.Item = &copied
	}
	return snap
}

// Snapshot returns a consistent copy of the session's visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// idleSince reports whether the session has seen no action since cutoff and
// has no write outstanding.
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.inFlight && s.lastActivity.Before(cutoff)
}
