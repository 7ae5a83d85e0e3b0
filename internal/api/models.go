package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/events"
	"github.com/phrazzld/kotoba-api/internal/service/practice"
)

// StartSessionRequest defines the payload for POST /api/sessions.
type StartSessionRequest struct {
	Level string `json:"level" validate:"required"`
	Mode  string `json:"mode"  validate:"required,oneof=learn review"`

	// WordsPerSession defaults to the server's configured session size.
	WordsPerSession *int   `json:"words_per_session,omitempty" validate:"omitempty,gt=0"`
	IncludeMastered bool   `json:"include_mastered"`
	ShuffleOrder    bool   `json:"shuffle_order"`
	WritingMode     string `json:"writing_mode,omitempty"      validate:"omitempty,oneof=kanji reading"`

	// ItemIDs, when present, replaces automatic selection.
	ItemIDs []uuid.UUID `json:"item_ids,omitempty"`
}

// toStartRequest converts the payload for the manager, filling omitted
// fields from defaults. requester is nil for anonymous callers.
func (r StartSessionRequest) toStartRequest(requester *uuid.UUID, defaults practice.SessionConfig) practice.StartRequest {
	cfg := defaults
	if r.WordsPerSession != nil {
		cfg.WordsPerSession = *r.WordsPerSession
	}
	cfg.IncludeMastered = r.IncludeMastered
	cfg.ShuffleOrder = r.ShuffleOrder
	if r.WritingMode != "" {
		cfg.WritingMode = domain.WritingMode(r.WritingMode)
	}
	return practice.StartRequest{
		UserID:  requester,
		Level:   r.Level,
		Mode:    practice.Mode(r.Mode),
		Config:  cfg,
		ItemIDs: r.ItemIDs,
	}
}

// AdvanceRequest defines the payload for POST /api/sessions/{id}/events.
// Cursor and Step name the position the action was issued for.
type AdvanceRequest struct {
	Action string `json:"action" validate:"required,oneof=next complete skip forgot"`
	Cursor *int   `json:"cursor" validate:"required,gte=0"`
	Step   string `json:"step"   validate:"required,oneof=present trace test"`
}

// ItemResponse is the wire form of a vocabulary item.
type ItemResponse struct {
	ID           uuid.UUID `json:"id"`
	Kanji        string    `json:"kanji,omitempty"`
	Reading      string    `json:"reading"`
	Romaji       string    `json:"romaji,omitempty"`
	Meaning      string    `json:"meaning"`
	PartOfSpeech string    `json:"part_of_speech,omitempty"`
	Level        string    `json:"level"`
}

// PromptResponse describes what the client shows for the current step.
type PromptResponse struct {
	Text      string `json:"text"`
	Reading   string `json:"reading,omitempty"`
	Meaning   string `json:"meaning,omitempty"`
	Widget    string `json:"widget,omitempty"`
	PlayAudio bool   `json:"play_audio"`
}

// OutcomeResponse is one recorded test result.
type OutcomeResponse struct {
	ItemID       uuid.UUID  `json:"item_id"`
	Correct      bool       `json:"correct"`
	Saved        bool       `json:"saved"`
	Local        bool       `json:"local"`
	SRSLevel     int        `json:"srs_level"`
	NextReviewAt *time.Time `json:"next_review_at,omitempty"`
	// Error is set when the progress write failed; the write is retried later.
	Error string `json:"error,omitempty"`
}

// SessionResponse is the snapshot of a practice session.
type SessionResponse struct {
	ID           uuid.UUID         `json:"id"`
	State        string            `json:"state"`
	Mode         string            `json:"mode"`
	Level        string            `json:"level"`
	Cursor       int               `json:"cursor"`
	Total        int               `json:"total"`
	Step         string            `json:"step,omitempty"`
	Item         *ItemResponse     `json:"item,omitempty"`
	Prompt       *PromptResponse   `json:"prompt,omitempty"`
	Outcomes     []OutcomeResponse `json:"outcomes"`
	UnsavedCount int               `json:"unsaved_count"`
	Local        bool              `json:"local"`
	InFlight     bool              `json:"in_flight"`
	CreatedAt    time.Time         `json:"created_at"`
}

// StepResultResponse is returned after an action.
type StepResultResponse struct {
	Outcome *OutcomeResponse `json:"outcome,omitempty"`
	Session SessionResponse  `json:"session"`
}

// OverviewResponse summarizes a learner's progress at a level.
type OverviewResponse struct {
	Level    string `json:"level"`
	Total    int    `json:"total"`
	New      int    `json:"new"`
	Due      int    `json:"due"`
	Mastered int    `json:"mastered"`
	Learning int    `json:"learning"`
}

// FeedResponse carries presentation events buffered for a session.
type FeedResponse struct {
	Events []*events.Event `json:"events"`
}

func itemToResponse(item *domain.VocabularyItem) *ItemResponse {
	if item == nil {
		return nil
	}
	return &ItemResponse{
		ID:           item.ID,
		Kanji:        item.Kanji,
		Reading:      item.Reading,
		Romaji:       item.Romaji,
		Meaning:      item.Meaning,
		PartOfSpeech: item.PartOfSpeech,
		Level:        item.Level,
	}
}

func outcomeToResponse(o practice.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		ItemID:  o.ItemID,
		Correct: o.WasCorrect,
		Saved:   o.Saved,
		Local:   o.Local,
	}
	if o.Progress != nil {
		resp.SRSLevel = o.Progress.SRSLevel
		next := o.Progress.NextReviewAt
		resp.NextReviewAt = &next
	}
	if o.Err != nil {
		resp.Error = "progress not saved yet"
	}
	return resp
}

func snapshotToResponse(s practice.Snapshot) SessionResponse {
	resp := SessionResponse{
		ID:           s.ID,
		State:        string(s.State),
		Mode:         string(s.Mode),
		Level:        s.Level,
		Cursor:       s.Cursor,
		Total:        s.Total,
		Step:         string(s.Step),
		Item:         itemToResponse(s.Item),
		Outcomes:     make([]OutcomeResponse, 0, len(s.Outcomes)),
		UnsavedCount: s.Unsaved(),
		Local:        s.Local,
		InFlight:     s.InFlight,
		CreatedAt:    s.CreatedAt,
	}
	if s.Prompt != nil {
		resp.Prompt = &PromptResponse{
			Text:      s.Prompt.Text,
			Reading:   s.Prompt.Reading,
			Meaning:   s.Prompt.Meaning,
			Widget:    string(s.Prompt.Widget),
			PlayAudio: s.Prompt.PlayAudio,
		}
	}
	for _, o := range s.Outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeToResponse(o))
	}
	return resp
}

func overviewToResponse(o *practice.Overview) OverviewResponse {
	return OverviewResponse{
		Level:    o.Level,
		Total:    o.Total,
		New:      o.New,
		Due:      o.Due,
		Mastered: o.Mastered,
		Learning: o.Learning,
	}
}
