package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the practice service.
const (
	// TypePlayAudio asks the client to speak a reading aloud.
	TypePlayAudio = "presentation.play_audio"
	// TypeRenderWidget asks the client to mount a tracing or quiz widget.
	TypeRenderWidget = "presentation.render_widget"
	// TypeSessionCompleted is emitted once when a session finishes its last item.
	TypeSessionCompleted = "session.completed"
)

// Event is a single notification published through an EventEmitter.
type Event struct {
	// ID uniquely identifies this event instance
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// SessionID is the practice session that produced the event, if any
	SessionID uuid.UUID `json:"session_id"`

	// Payload carries type-specific data as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt records when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// PlayAudioPayload is the payload of TypePlayAudio.
type PlayAudioPayload struct {
	Text string `json:"text"`
}

// RenderWidgetPayload is the payload of TypeRenderWidget.
type RenderWidgetPayload struct {
	Text string `json:"text"`
	// Mode is "trace" or "quiz".
	Mode string `json:"mode"`
}

// SessionCompletedPayload is the payload of TypeSessionCompleted.
type SessionCompletedPayload struct {
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Level        string     `json:"level"`
	Reviewed     int        `json:"reviewed"`
	Correct      int        `json:"correct"`
	UnsavedCount int        `json:"unsaved_count"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an event with a fresh ID and the JSON-encoded payload.
func NewEvent(eventType string, sessionID uuid.UUID, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler processes events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter publishes events to interested handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *Event) error
}
