package practice

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain/srs"
	"github.com/phrazzld/kotoba-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPresenterPublishesToFeed(t *testing.T) {
	t.Parallel()

	emitter := events.NewInMemoryEventEmitter(discardLogger)
	feed := events.NewFeed(0)
	emitter.RegisterHandler(feed)

	items := testItems(1)
	m := NewManager(memoryItems(items), newMemoryProgress(), srs.NewDefaultService(),
		NewEventPresenter(emitter, discardLogger), discardLogger,
		WithSessionClosedHook(feed.Forget))

	snap, err := m.Start(context.Background(), StartRequest{Level: "N5", Mode: ModeLearn, Config: DefaultSessionConfig()})
	require.NoError(t, err)

	got := feed.Since(snap.ID, uuid.Nil)
	require.Len(t, got, 1)
	assert.Equal(t, events.TypePlayAudio, got[0].Type)
	var audio events.PlayAudioPayload
	require.NoError(t, got[0].UnmarshalPayload(&audio))
	assert.Equal(t, "ご0", audio.Text)

	snap = mustAdvance(t, m, snap, ActionNext)
	snap = mustAdvance(t, m, snap, ActionComplete)
	mustAdvance(t, m, snap, ActionForgot)

	got = feed.Since(snap.ID, got[0].ID)
	require.Len(t, got, 3)
	assert.Equal(t, events.TypeRenderWidget, got[0].Type)
	assert.Equal(t, events.TypeRenderWidget, got[1].Type)
	assert.Equal(t, events.TypeSessionCompleted, got[2].Type)

	var widget events.RenderWidgetPayload
	require.NoError(t, got[1].UnmarshalPayload(&widget))
	assert.Equal(t, events.RenderWidgetPayload{Text: "語0", Mode: "quiz"}, widget)

	var done events.SessionCompletedPayload
	require.NoError(t, got[2].UnmarshalPayload(&done))
	assert.Equal(t, 1, done.Reviewed)
	assert.Equal(t, 0, done.Correct)
	assert.Nil(t, done.UserID)

	require.NoError(t, m.Abandon(context.Background(), snap.ID, nil))
	assert.Empty(t, feed.Since(snap.ID, uuid.Nil))
}

func TestEventPresenterSwallowsHandlerErrors(t *testing.T) {
	t.Parallel()

	emitter := events.NewInMemoryEventEmitter(discardLogger)
	emitter.RegisterHandler(events.HandlerFunc(func(context.Context, *events.Event) error {
		return errors.New("client gone")
	}))
	p := NewEventPresenter(emitter, discardLogger)

	assert.NotPanics(t, func() {
		p.PlayAudio(context.Background(), uuid.New(), "みず")
	})
	assert.Panics(t, func() { NewEventPresenter(nil, nil) })
}

func mustAdvance(t *testing.T, m *Manager, snap Snapshot, action Action) Snapshot {
	t.Helper()
	res, err := m.Advance(context.Background(), snap.ID, snap.UserID, Input{
		Action: action,
		Cursor: snap.Cursor,
		Step:   snap.Step,
	})
	require.NoError(t, err)
	return res.Snapshot
}
