package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/api"
	"github.com/phrazzld/kotoba-api/internal/config"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            0,
			LogLevel:        "error",
			LogFormat:       "json",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			URL:    filepath.Join(t.TempDir(), "kotoba.db"),
		},
		Auth: config.AuthConfig{
			JWTSecret:     testJWTSecret,
			TokenLifetime: time.Hour,
		},
		Practice: config.PracticeConfig{
			DefaultWordsPerSession: 2,
			MaxPendingWrites:       10,
			RetryInterval:          time.Minute,
			SessionIdleTimeout:     time.Hour,
		},
	}
}

type e2e struct {
	t      *testing.T
	app    *application
	server *httptest.Server
	token  string
	userID uuid.UUID
}

func newE2E(t *testing.T) *e2e {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b, err := openBackend(ctx, cfg.Database, logger)
	require.NoError(t, err)
	_, err = b.migrator.Up(ctx)
	require.NoError(t, err)

	items := []*domain.VocabularyItem{
		{Kanji: "水", Reading: "みず", Romaji: "mizu", Meaning: "water", Level: "N5"},
		{Kanji: "火", Reading: "ひ", Romaji: "hi", Meaning: "fire", Level: "N5"},
		{Kanji: "木", Reading: "き", Romaji: "ki", Meaning: "tree", Level: "N5"},
	}
	for _, item := range items {
		item.ID = importer.ItemID(item.Level, item.Kanji, item.Reading)
	}
	require.NoError(t, b.items.UpsertMany(ctx, items))

	app, err := newApplication(cfg, logger, b)
	require.NoError(t, err)

	userID := uuid.New()
	token, err := app.jwtService.GenerateToken(ctx, userID)
	require.NoError(t, err)

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(func() {
		srv.Close()
		app.cleanup(context.Background())
	})
	return &e2e{t: t, app: app, server: srv, token: token, userID: userID}
}

func (e *e2e) call(method, path, body string, authed bool, out interface{}) int {
	e.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	t.Parallel()
	e := newE2E(t)

	resp, err := http.Get(e.server.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReviewSessionPersistsProgress(t *testing.T) {
	t.Parallel()
	e := newE2E(t)
	ctx := context.Background()

	var session api.SessionResponse
	status := e.call(http.MethodPost, "/api/sessions", `{"level":"N5","mode":"review"}`, true, &session)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 2, session.Total, "configured default session size")
	assert.False(t, session.Local)
	require.NotNil(t, session.Item)

	firstItem := session.Item.ID
	var step api.StepResultResponse
	status = e.call(http.MethodPost, "/api/sessions/"+session.ID.String()+"/events",
		`{"action":"complete","cursor":0,"step":"test"}`, true, &step)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, step.Outcome)
	assert.True(t, step.Outcome.Saved)
	assert.Equal(t, 1, step.Outcome.SRSLevel)
	assert.Equal(t, 1, step.Session.Cursor)

	// The same completion again is stale.
	status = e.call(http.MethodPost, "/api/sessions/"+session.ID.String()+"/events",
		`{"action":"complete","cursor":0,"step":"test"}`, true, nil)
	assert.Equal(t, http.StatusConflict, status)

	stored, err := e.app.store.progress.Get(ctx, e.userID, firstItem)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.SRSLevel)
	assert.Equal(t, 1, stored.ReviewCount)

	status = e.call(http.MethodPost, "/api/sessions/"+session.ID.String()+"/events",
		`{"action":"forgot","cursor":1,"step":"test"}`, true, &step)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", step.Session.State)

	var ov api.OverviewResponse
	status = e.call(http.MethodGet, "/api/levels/N5/overview", "", true, &ov)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, ov.Total)
	assert.Equal(t, 1, ov.New)
	assert.Equal(t, 2, ov.Learning)

	var feed api.FeedResponse
	status = e.call(http.MethodGet, "/api/sessions/"+session.ID.String()+"/feed", "", true, &feed)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, feed.Events)
}

func TestAnonymousSessionIsLocal(t *testing.T) {
	t.Parallel()
	e := newE2E(t)

	var session api.SessionResponse
	status := e.call(http.MethodPost, "/api/sessions", `{"level":"N5","mode":"review","words_per_session":1}`, false, &session)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, session.Local)
	require.NotNil(t, session.Item)

	var step api.StepResultResponse
	status = e.call(http.MethodPost, "/api/sessions/"+session.ID.String()+"/events",
		`{"action":"complete","cursor":0,"step":"test"}`, false, &step)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, step.Outcome)
	assert.True(t, step.Outcome.Local)
	assert.False(t, step.Outcome.Saved)

	// A signed-in learner may not touch another's session, but anonymous
	// sessions are open to whoever holds the id.
	status = e.call(http.MethodGet, "/api/sessions/"+session.ID.String(), "", true, nil)
	assert.Equal(t, http.StatusOK, status)

	status = e.call(http.MethodDelete, "/api/sessions/"+session.ID.String(), "", false, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status = e.call(http.MethodGet, "/api/sessions/"+session.ID.String(), "", false, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOwnedSessionHiddenFromOthers(t *testing.T) {
	t.Parallel()
	e := newE2E(t)

	var session api.SessionResponse
	status := e.call(http.MethodPost, "/api/sessions", `{"level":"N5","mode":"learn"}`, true, &session)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "present", session.Step)

	status = e.call(http.MethodGet, "/api/sessions/"+session.ID.String(), "", false, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestEmptyLevelIsUnprocessable(t *testing.T) {
	t.Parallel()
	e := newE2E(t)

	status := e.call(http.MethodPost, "/api/sessions", `{"level":"N1","mode":"review"}`, true, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}
