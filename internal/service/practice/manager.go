package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/domain/srs"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
)

// StartRequest describes a session to start.
type StartRequest struct {
	// UserID is nil for anonymous practice; such sessions never write progress.
	UserID *uuid.UUID
	// Level is the proficiency tag whose items are practiced, e.g. "N5".
	Level  string
	Mode   Mode
	Config SessionConfig
	// ItemIDs is an explicit subset that overrides automatic selection.
	ItemIDs []uuid.UUID
}

// Input is one learner action, tagged with the cursor and step it was issued for.
type Input struct {
	Action Action
	Cursor int
	Step   Step
}

// StepResult is returned by Advance.
type StepResult struct {
	// Outcome is set when the action finished a test.
	Outcome  *Outcome
	Snapshot Snapshot
}

// Manager owns the live sessions and is the only way to mutate them.
type Manager struct {
	items     ItemSource
	progress  ProgressRepository
	srs       srs.Service
	presenter Presenter
	registry  *Registry
	pending   *PendingWrites
	now       func() time.Time
	shuffle   ShuffleFunc
	onClose   func(sessionID uuid.UUID)
	logger    *slog.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithShuffle replaces the permutation used for shuffled sessions.
func WithShuffle(shuffle ShuffleFunc) Option {
	return func(m *Manager) { m.shuffle = shuffle }
}

// WithPendingWrites replaces the retry queue.
func WithPendingWrites(q *PendingWrites) Option {
	return func(m *Manager) { m.pending = q }
}

// WithSessionClosedHook registers fn to run after a session is abandoned or evicted.
func WithSessionClosedHook(fn func(sessionID uuid.UUID)) Option {
	return func(m *Manager) { m.onClose = fn }
}

// NewManager creates a Manager. It panics if a required dependency is nil.
func NewManager(
	items ItemSource,
	progress ProgressRepository,
	srsService srs.Service,
	presenter Presenter,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	if items == nil {
		panic("items cannot be nil")
	}
	if progress == nil {
		panic("progress cannot be nil")
	}
	if srsService == nil {
		panic("srsService cannot be nil")
	}
	if presenter == nil {
		presenter = NopPresenter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		items:     items,
		progress:  progress,
		srs:       srsService,
		presenter: presenter,
		registry:  NewRegistry(),
		now:       func() time.Time { return time.Now().UTC() },
		shuffle:   DefaultShuffle,
		logger:    logger.With(slog.String("component", "practice_manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pending == nil {
		m.pending = NewPendingWrites(DefaultMaxPendingWrites, logger)
	}
	return m
}

// Pending exposes the retry queue.
func (m *Manager) Pending() *PendingWrites {
	return m.pending
}

// Sessions exposes the session registry.
func (m *Manager) Sessions() *Registry {
	return m.registry
}

// trigger is a presentation side effect fired after the session lock is released.
type trigger func(ctx context.Context)

func fire(ctx context.Context, triggers []trigger) {
	for _, t := range triggers {
		if t != nil {
			t(ctx)
		}
	}
}

// enterStepTrigger returns the side effect of entering the current step. Caller holds s.mu.
func (m *Manager) enterStepTrigger(s *Session) trigger {
	item := s.currentItem()
	if item == nil {
		return nil
	}
	id := s.id
	text := item.TraceText(s.cfg.writingMode())
	switch s.step {
	case StepPresent:
		reading := item.Reading
		return func(ctx context.Context) { m.presenter.PlayAudio(ctx, id, reading) }
	case StepTrace:
		return func(ctx context.Context) { m.presenter.RenderTraceWidget(ctx, id, text, WidgetTrace) }
	case StepTest:
		return func(ctx context.Context) { m.presenter.RenderTraceWidget(ctx, id, text, WidgetQuiz) }
	}
	return nil
}

func validateStart(req StartRequest) error {
	if !req.Mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, req.Mode)
	}
	if !domain.IsValidLevelTag(req.Level) {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidInput, req.Level)
	}
	if req.UserID != nil && *req.UserID == uuid.Nil {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	return req.Config.Validate()
}

// Start selects items and registers a running session.
func (m *Manager) Start(ctx context.Context, req StartRequest) (Snapshot, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	req.Level = domain.NormalizeLevelTag(req.Level)
	if req.Config.WritingMode == "" {
		req.Config.WritingMode = domain.WritingModeKanji
	}
	if err := validateStart(req); err != nil {
		log.Debug("rejected session start", slog.String("error", err.Error()))
		return Snapshot{}, err
	}

	if m.pending.Len() > 0 {
		written, remaining := m.pending.Flush(ctx, m.progress)
		log.Debug("flushed pending progress writes",
			slog.Int("written", written),
			slog.Int("remaining", remaining))
	}

	now := m.now()
	s := newSession(req, now)

	sel, err := m.selectItems(ctx, s, now)
	if err != nil {
		if errors.Is(err, ErrEmptySession) {
			log.Info("nothing to practice",
				slog.String("level", req.Level),
				slog.String("mode", string(req.Mode)))
			return Snapshot{}, err
		}
		var serviceErr *ServiceError
		if errors.As(err, &serviceErr) {
			return Snapshot{}, NewStartSessionError(serviceErr.Message, serviceErr.Err)
		}
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.begin(sel.items, sel.progress)
	enter := m.enterStepTrigger(s)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	m.registry.Put(s)

	log.Info("practice session started",
		slog.String("session_id", s.id.String()),
		slog.String("level", s.level),
		slog.String("mode", string(s.mode)),
		slog.Int("items", len(sel.items)),
		slog.Bool("local", s.IsLocal()))

	fire(ctx, []trigger{enter})
	return snap, nil
}

type selection struct {
	items    []*domain.VocabularyItem
	progress map[uuid.UUID]*domain.ReviewProgress
}

// selectItems fetches the catalog and the session owner's progress, then
// runs SelectForSession. Store failures come back as *ServiceError.
func (m *Manager) selectItems(ctx context.Context, s *Session, now time.Time) (*selection, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	items, err := m.items.ListByLevel(ctx, s.level)
	if err != nil {
		log.Error("failed to load vocabulary",
			slog.String("error", err.Error()),
			slog.String("level", s.level))
		return nil, &ServiceError{Message: "failed to load vocabulary", Err: err}
	}

	progress := make(map[uuid.UUID]*domain.ReviewProgress)
	if s.userID != nil && len(items) > 0 {
		ids := make([]uuid.UUID, len(items))
		for i, item := range items {
			ids[i] = item.ID
		}
		fetched, err := m.progress.GetMany(ctx, *s.userID, ids)
		if err != nil {
			log.Error("failed to load review progress",
				slog.String("error", err.Error()),
				slog.String("user_id", s.userID.String()))
			return nil, &ServiceError{Message: "failed to load review progress", Err: err}
		}
		for id, p := range fetched {
			progress[id] = p
		}
		m.pending.Overlay(*s.userID, progress)
	}

	selected, err := SelectForSession(items, progress, s.manualIDs, s.cfg, now, m.shuffle)
	if err != nil {
		return nil, err
	}
	return &selection{items: selected, progress: progress}, nil
}

// lookup fetches a session and checks the requester may use it.
func (m *Manager) lookup(sessionID uuid.UUID, requester *uuid.UUID) (*Session, error) {
	s, err := m.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.ownedBy(requester) {
		return nil, ErrSessionNotOwned
	}
	return s, nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(ctx context.Context, sessionID uuid.UUID, requester *uuid.UUID) (Snapshot, error) {
	s, err := m.lookup(sessionID, requester)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Advance applies one learner action to the session.
//
// The action must name the session's current cursor and step; anything else
// is rejected with ErrStaleAction and has no effect. Finishing a test records
// an outcome: the scheduler computes the new progress and, for signed-in
// learners, it is written to the store before the cursor moves. While that
// write is outstanding every other Advance or Restart on the session gets
// ErrAdvanceInFlight. A failed write does not fail the call; it is reported
// in the returned Outcome and queued for retry.
func (m *Manager) Advance(
	ctx context.Context,
	sessionID uuid.UUID,
	requester *uuid.UUID,
	in Input,
) (*StepResult, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	if !in.Action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, in.Action)
	}

	s, err := m.lookup(sessionID, requester)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrAdvanceInFlight
	}
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil, ErrSessionNotRunning
	}
	if in.Cursor != s.cursor || in.Step != s.step {
		s.mu.Unlock()
		log.Debug("stale practice action",
			slog.String("session_id", s.id.String()),
			slog.Int("cursor", in.Cursor),
			slog.Int("current_cursor", s.cursor),
			slog.String("step", string(in.Step)),
			slog.String("current_step", string(s.step)))
		return nil, ErrStaleAction
	}

	now := m.now()
	s.lastActivity = now

	var wasCorrect bool
	switch {
	case s.step == StepPresent && in.Action == ActionNext:
		s.step = StepTrace
		return m.finishStep(ctx, s, nil)

	case s.step == StepTrace && (in.Action == ActionComplete || in.Action == ActionSkip):
		s.step = StepTest
		return m.finishStep(ctx, s, nil)

	case s.step == StepTest && (in.Action == ActionComplete || in.Action == ActionSkip):
		wasCorrect = true

	case s.step == StepTest && in.Action == ActionForgot:
		wasCorrect = false

	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q during %q", ErrInvalidAction, in.Action, s.step)
	}

	outcome := m.recordOutcome(ctx, s, wasCorrect, now)
	return m.finishStep(ctx, s, outcome)
}

// recordOutcome runs the scheduler for the current item and persists the
// result. It is entered and left with s.mu held, but releases the lock
// around the store write.
func (m *Manager) recordOutcome(ctx context.Context, s *Session, wasCorrect bool, now time.Time) *Outcome {
	log := logger.FromContextOrDefault(ctx, m.logger)

	item := s.items[s.cursor]
	userID := uuid.Nil
	if s.userID != nil {
		userID = *s.userID
	}

	next := m.srs.NextProgress(s.progress[item.ID], userID, item.ID, wasCorrect, now)
	outcome := &Outcome{
		ItemID:     item.ID,
		WasCorrect: wasCorrect,
		Progress:   next,
		Local:      s.IsLocal(),
	}

	if !s.IsLocal() {
		s.inFlight = true
		s.mu.Unlock()

		err := m.progress.Upsert(ctx, next)

		s.mu.Lock()
		s.inFlight = false

		switch {
		case err != nil && isPermanentWriteError(err):
			outcome.Err = &PersistenceError{UserID: userID, ItemID: item.ID, Err: err}
			log.Error("review progress rejected by store, not retried",
				slog.String("error", err.Error()),
				slog.String("session_id", s.id.String()),
				slog.String("user_id", userID.String()),
				slog.String("item_id", item.ID.String()),
				slog.Int("srs_level", next.SRSLevel))
		case err != nil:
			outcome.Err = &PersistenceError{UserID: userID, ItemID: item.ID, Err: err}
			m.pending.Put(next)
			log.Warn("failed to save review progress, queued for retry",
				slog.String("error", err.Error()),
				slog.String("session_id", s.id.String()),
				slog.String("user_id", userID.String()),
				slog.String("item_id", item.ID.String()),
				slog.Int("srs_level", next.SRSLevel))
		default:
			outcome.Saved = true
			m.pending.Clear(next.Key())
		}
	}

	s.progress[item.ID] = next
	s.outcomes = append(s.outcomes, *outcome)
	s.cursor++
	if s.cursor >= len(s.items) {
		s.state = StateCompleted
		s.step = StepNone
	} else {
		s.step = s.mode.firstStep()
	}

	log.Debug("recorded practice outcome",
		slog.String("session_id", s.id.String()),
		slog.String("item_id", item.ID.String()),
		slog.Bool("correct", wasCorrect),
		slog.Int("srs_level", next.SRSLevel),
		slog.Bool("saved", outcome.Saved))

	return outcome
}

// finishStep snapshots the session, releases s.mu and fires the side
// effects of the new step. Caller holds s.mu.
func (m *Manager) finishStep(ctx context.Context, s *Session, outcome *Outcome) (*StepResult, error) {
	var triggers []trigger
	if s.state == StateCompleted {
		summary := s.summaryLocked()
		id := s.id
		triggers = append(triggers, func(ctx context.Context) {
			m.presenter.SessionCompleted(ctx, id, summary)
		})
		logger.FromContextOrDefault(ctx, m.logger).Info("practice session completed",
			slog.String("session_id", id.String()),
			slog.Int("reviewed", summary.Reviewed),
			slog.Int("correct", summary.Correct),
			slog.Int("unsaved", summary.Unsaved))
	} else if t := m.enterStepTrigger(s); t != nil {
		triggers = append(triggers, t)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	fire(ctx, triggers)
	return &StepResult{Outcome: outcome, Snapshot: snap}, nil
}

// summaryLocked tallies the outcome log. Caller holds s.mu.
func (s *Session) summaryLocked() Summary {
	sum := Summary{UserID: s.userID, Level: s.level, Reviewed: len(s.outcomes)}
	for _, o := range s.outcomes {
		if o.WasCorrect {
			sum.Correct++
		}
		if o.Err != nil {
			sum.Unsaved++
		}
	}
	return sum
}

// Restart re-runs selection with the session's original configuration and a
// fresh progress fetch. If nothing is selectable the session is left
// NotStarted and ErrEmptySession is returned.
func (m *Manager) Restart(ctx context.Context, sessionID uuid.UUID, requester *uuid.UUID) (Snapshot, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	s, err := m.lookup(sessionID, requester)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Snapshot{}, ErrAdvanceInFlight
	}
	now := m.now()
	s.reset()
	s.lastActivity = now
	// Selection talks to the store; hold off other actions until it is done.
	s.inFlight = true
	s.mu.Unlock()

	sel, err := m.selectItems(ctx, s, now)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if errors.Is(err, ErrEmptySession) {
			log.Info("nothing to practice on restart", slog.String("session_id", s.id.String()))
			return snap, err
		}
		var serviceErr *ServiceError
		if errors.As(err, &serviceErr) {
			return snap, NewRestartSessionError(serviceErr.Message, serviceErr.Err)
		}
		return snap, err
	}

	s.begin(sel.items, sel.progress)
	enter := m.enterStepTrigger(s)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Info("practice session restarted",
		slog.String("session_id", s.id.String()),
		slog.Int("items", len(sel.items)))

	fire(ctx, []trigger{enter})
	return snap, nil
}

// Abandon drops the session. Outcomes already recorded stay recorded;
// nothing else is persisted.
func (m *Manager) Abandon(ctx context.Context, sessionID uuid.UUID, requester *uuid.UUID) error {
	if _, err := m.lookup(sessionID, requester); err != nil {
		return err
	}
	if m.registry.Delete(sessionID) {
		logger.FromContextOrDefault(ctx, m.logger).Info("practice session abandoned",
			slog.String("session_id", sessionID.String()))
		m.closed(sessionID)
	}
	return nil
}

func (m *Manager) closed(sessionID uuid.UUID) {
	if m.onClose != nil {
		m.onClose(sessionID)
	}
}

// EvictIdle drops sessions idle for longer than maxIdle and returns how many were dropped.
func (m *Manager) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	evicted := m.registry.EvictIdle(m.now().Add(-maxIdle))
	for _, id := range evicted {
		m.closed(id)
	}
	if len(evicted) > 0 {
		logger.FromContextOrDefault(ctx, m.logger).Info("evicted idle practice sessions",
			slog.Int("count", len(evicted)))
	}
	return len(evicted)
}

// FlushPending retries queued progress writes once.
func (m *Manager) FlushPending(ctx context.Context) (written, remaining int) {
	return m.pending.Flush(ctx, m.progress)
}
