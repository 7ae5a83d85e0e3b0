package practice

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/events"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
)

// Summary describes a finished session.
type Summary struct {
	UserID   *uuid.UUID
	Level    string
	Reviewed int
	Correct  int
	Unsaved  int
}

// Presenter receives fire-and-forget triggers for the UI. Implementations
// must not block; the manager never waits on their result.
type Presenter interface {
	PlayAudio(ctx context.Context, sessionID uuid.UUID, text string)
	RenderTraceWidget(ctx context.Context, sessionID uuid.UUID, text string, mode WidgetMode)
	SessionCompleted(ctx context.Context, sessionID uuid.UUID, summary Summary)
}

// EventPresenter publishes presentation triggers as events.
type EventPresenter struct {
	emitter events.EventEmitter
	logger  *slog.Logger
}

var _ Presenter = (*EventPresenter)(nil)

// NewEventPresenter creates a presenter that emits through emitter.
func NewEventPresenter(emitter events.EventEmitter, logger *slog.Logger) *EventPresenter {
	if emitter == nil {
		panic("emitter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPresenter{
		emitter: emitter,
		logger:  logger.With(slog.String("component", "event_presenter")),
	}
}

// PlayAudio implements Presenter.
func (p *EventPresenter) PlayAudio(ctx context.Context, sessionID uuid.UUID, text string) {
	p.emit(ctx, events.TypePlayAudio, sessionID, events.PlayAudioPayload{Text: text})
}

// RenderTraceWidget implements Presenter.
func (p *EventPresenter) RenderTraceWidget(
	ctx context.Context,
	sessionID uuid.UUID,
	text string,
	mode WidgetMode,
) {
	p.emit(ctx, events.TypeRenderWidget, sessionID, events.RenderWidgetPayload{
		Text: text,
		Mode: string(mode),
	})
}

// SessionCompleted implements Presenter.
func (p *EventPresenter) SessionCompleted(ctx context.Context, sessionID uuid.UUID, summary Summary) {
	p.emit(ctx, events.TypeSessionCompleted, sessionID, events.SessionCompletedPayload{
		UserID:       summary.UserID,
		Level:        summary.Level,
		Reviewed:     summary.Reviewed,
		Correct:      summary.Correct,
		UnsavedCount: summary.Unsaved,
	})
}

func (p *EventPresenter) emit(ctx context.Context, eventType string, sessionID uuid.UUID, payload any) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	event, err := events.NewEvent(eventType, sessionID, payload)
	if err != nil {
		log.Error("failed to build presentation event",
			slog.String("error", err.Error()),
			slog.String("event_type", eventType))
		return
	}
	if err := p.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("presentation event not delivered",
			slog.String("error", err.Error()),
			slog.String("event_type", eventType),
			slog.String("session_id", sessionID.String()))
	}
}

// NopPresenter discards every trigger.
type NopPresenter struct{}

var _ Presenter = NopPresenter{}

func (NopPresenter) PlayAudio(context.Context, uuid.UUID, string)                     {}
func (NopPresenter) RenderTraceWidget(context.Context, uuid.UUID, string, WidgetMode) {}
func (NopPresenter) SessionCompleted(context.Context, uuid.UUID, Summary)             {}
