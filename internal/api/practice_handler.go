package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/api/shared"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/events"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
	"github.com/phrazzld/kotoba-api/internal/service/practice"
)

// PracticeService is the part of practice.Manager the handlers use.
type PracticeService interface {
	Start(ctx context.Context, req practice.StartRequest) (practice.Snapshot, error)
	Get(ctx context.Context, sessionID uuid.UUID, requester *uuid.UUID) (practice.Snapshot, error)
	Advance(ctx context.Context, sessionID uuid.UUID, requester *uuid.UUID, in practice.Input) (*practice.StepResult, error)
	Restart(ctx context.Context, sessionID uuid.UUID, requester *uuid.UUID) (practice.Snapshot, error)
	Abandon(ctx context.Context, sessionID uuid.UUID, requester *uuid.UUID) error
	Overview(ctx context.Context, userID uuid.UUID, level string) (*practice.Overview, error)
}

var _ PracticeService = (*practice.Manager)(nil)

// EventFeed returns buffered presentation events for a session.
type EventFeed interface {
	Since(sessionID, after uuid.UUID) []*events.Event
}

var _ EventFeed = (*events.Feed)(nil)

// PracticeHandler handles practice session HTTP requests.
type PracticeHandler struct {
	service  PracticeService
	feed     EventFeed
	defaults practice.SessionConfig
	logger   *slog.Logger
}

// HandlerOption customizes a PracticeHandler.
type HandlerOption func(*PracticeHandler)

// WithDefaultWordsPerSession sets the session size used when a request omits it.
func WithDefaultWordsPerSession(n int) HandlerOption {
	return func(h *PracticeHandler) {
		if n > 0 {
			h.defaults.WordsPerSession = n
		}
	}
}

// NewPracticeHandler creates a new PracticeHandler. feed may be nil, in which
// case the feed endpoint always returns no events.
func NewPracticeHandler(
	service PracticeService,
	feed EventFeed,
	logger *slog.Logger,
	opts ...HandlerOption,
) *PracticeHandler {
	if service == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("service cannot be nil for PracticeHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PracticeHandler")
	}
	h := &PracticeHandler{
		service:  service,
		feed:     feed,
		defaults: practice.DefaultSessionConfig(),
		logger:   logger.With(slog.String("component", "practice_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the practice endpoints on r. Overview requires a signed-in
// learner; requireUser enforces that.
func (h *PracticeHandler) Routes(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.With(requireUser).Get("/levels/{level}/overview", h.GetOverview)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.AbandonSession)
			r.Post("/events", h.AdvanceSession)
			r.Post("/restart", h.RestartSession)
			r.Get("/feed", h.GetFeed)
		})
	})
}

// decodeAndValidate reads a JSON body into v and writes a 400 on failure.
func (h *PracticeHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if err := shared.DecodeJSON(w, r, v); err != nil {
		log.Debug("invalid request body", slog.String("error", err.Error()))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

// StartSession handles POST /api/sessions.
func (h *PracticeHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req StartSessionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	requester := shared.RequesterFromContext(r.Context())
	snap, err := h.service.Start(r.Context(), req.toStartRequest(requester, h.defaults))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("session started",
		slog.String("session_id", snap.ID.String()),
		slog.Int("total", snap.Total))
	shared.RespondWithJSON(w, r, http.StatusCreated, snapshotToResponse(snap))
}

// GetSession handles GET /api/sessions/{id}.
func (h *PracticeHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid session ID")
		return
	}

	snap, err := h.service.Get(r.Context(), sessionID, shared.RequesterFromContext(r.Context()))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snapshotToResponse(snap))
}

// AdvanceSession handles POST /api/sessions/{id}/events. Each widget
// completion is posted once, tagged with the cursor and step it belongs to;
// repeats and concurrent posts get 409.
func (h *PracticeHandler) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid session ID")
		return
	}

	var req AdvanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Advance(r.Context(), sessionID, shared.RequesterFromContext(r.Context()), practice.Input{
		Action: practice.Action(req.Action),
		Cursor: *req.Cursor,
		Step:   practice.Step(req.Step),
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := StepResultResponse{Session: snapshotToResponse(result.Snapshot)}
	if result.Outcome != nil {
		outcome := outcomeToResponse(*result.Outcome)
		resp.Outcome = &outcome
		if result.Outcome.Err != nil {
			log.Warn("progress write deferred",
				slog.String("session_id", sessionID.String()),
				slog.String("item_id", result.Outcome.ItemID.String()))
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// RestartSession handles POST /api/sessions/{id}/restart.
func (h *PracticeHandler) RestartSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid session ID")
		return
	}

	snap, err := h.service.Restart(r.Context(), sessionID, shared.RequesterFromContext(r.Context()))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snapshotToResponse(snap))
}

// AbandonSession handles DELETE /api/sessions/{id}.
func (h *PracticeHandler) AbandonSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid session ID")
		return
	}

	if err := h.service.Abandon(r.Context(), sessionID, shared.RequesterFromContext(r.Context())); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFeed handles GET /api/sessions/{id}/feed?after={event_id}.
func (h *PracticeHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid session ID")
		return
	}
	after, err := getQueryUUID(r, "after")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid event ID")
		return
	}

	// Ownership is checked against the live session.
	if _, err := h.service.Get(r.Context(), sessionID, shared.RequesterFromContext(r.Context())); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := FeedResponse{Events: []*events.Event{}}
	if h.feed != nil {
		resp.Events = append(resp.Events, h.feed.Since(sessionID, after)...)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetOverview handles GET /api/levels/{level}/overview.
func (h *PracticeHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}

	level := chi.URLParam(r, "level")
	ov, err := h.service.Overview(r.Context(), userID, level)
	if err != nil {
		if errors.Is(err, practice.ErrInvalidInput) {
			HandleAPIError(w, r, err, "Invalid level")
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, overviewToResponse(ov))
}
