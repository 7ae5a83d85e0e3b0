package practice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingRecord(userID, itemID uuid.UUID, level int) *domain.ReviewProgress {
	return &domain.ReviewProgress{
		UserID:       userID,
		ItemID:       itemID,
		SRSLevel:     level,
		NextReviewAt: testNow,
		ReviewCount:  level,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func TestPendingWritesLatestWins(t *testing.T) {
	t.Parallel()

	q := NewPendingWrites(10, discardLogger)
	user, item := uuid.New(), uuid.New()

	q.Put(pendingRecord(user, item, 1))
	q.Put(pendingRecord(user, item, 2))
	q.Put(nil)

	assert.Equal(t, 1, q.Len())
	got, ok := q.Get(domain.ProgressKey{UserID: user, ItemID: item})
	require.True(t, ok)
	assert.Equal(t, 2, got.SRSLevel)

	q.Clear(domain.ProgressKey{UserID: user, ItemID: item})
	assert.Equal(t, 0, q.Len())
	_, ok = q.Get(domain.ProgressKey{UserID: user, ItemID: item})
	assert.False(t, ok)
}

func TestPendingWritesDropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	q := NewPendingWrites(2, log)
	user := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	q.Put(pendingRecord(user, a, 1))
	q.Put(pendingRecord(user, b, 1))
	// Refreshing a moves it behind b.
	q.Put(pendingRecord(user, a, 2))
	q.Put(pendingRecord(user, c, 1))

	assert.Equal(t, 2, q.Len())
	_, ok := q.Get(domain.ProgressKey{UserID: user, ItemID: b})
	assert.False(t, ok, "b was the oldest entry")
	_, ok = q.Get(domain.ProgressKey{UserID: user, ItemID: a})
	assert.True(t, ok)

	assert.Contains(t, buf.String(), "pending progress write dropped")
	assert.Contains(t, buf.String(), b.String())
}

func TestPendingWritesOverlay(t *testing.T) {
	t.Parallel()

	q := NewPendingWrites(0, nil)
	user, other := uuid.New(), uuid.New()
	item := uuid.New()
	q.Put(pendingRecord(user, item, 3))
	q.Put(pendingRecord(other, uuid.New(), 1))

	progress := map[uuid.UUID]*domain.ReviewProgress{item: pendingRecord(user, item, 1)}
	q.Overlay(user, progress)

	require.Len(t, progress, 1)
	assert.Equal(t, 3, progress[item].SRSLevel)
}

func TestPendingWritesFlush(t *testing.T) {
	t.Parallel()

	user := uuid.New()
	ok1, ok2, failing := uuid.New(), uuid.New(), uuid.New()

	repo := new(MockProgressRepository)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *domain.ReviewProgress) bool {
		return p.ItemID == failing
	})).Return(errors.New("still down"))
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	q := NewPendingWrites(10, discardLogger)
	q.Put(pendingRecord(user, ok1, 1))
	q.Put(pendingRecord(user, failing, 1))
	q.Put(pendingRecord(user, ok2, 1))

	written, remaining := q.Flush(context.Background(), repo)
	assert.Equal(t, 2, written)
	assert.Equal(t, 1, remaining)
	_, ok := q.Get(domain.ProgressKey{UserID: user, ItemID: failing})
	assert.True(t, ok)
	repo.AssertNumberOfCalls(t, "Upsert", 3)
}

func TestPendingWritesFlushDropsRejectedRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	user := uuid.New()
	deleted, invalid, transient := uuid.New(), uuid.New(), uuid.New()
	forItem := func(id uuid.UUID) interface{} {
		return mock.MatchedBy(func(p *domain.ReviewProgress) bool { return p.ItemID == id })
	}

	repo := new(MockProgressRepository)
	repo.On("Upsert", mock.Anything, forItem(deleted)).
		Return(store.NewStoreError("review_progress", "upsert", "write failed", store.ErrItemNotFound))
	repo.On("Upsert", mock.Anything, forItem(invalid)).
		Return(fmt.Errorf("%w: srs level out of range", store.ErrInvalidEntity))
	repo.On("Upsert", mock.Anything, forItem(transient)).
		Return(store.ErrUnavailable)

	q := NewPendingWrites(10, log)
	q.Put(pendingRecord(user, deleted, 1))
	q.Put(pendingRecord(user, invalid, 1))
	q.Put(pendingRecord(user, transient, 1))

	written, remaining := q.Flush(context.Background(), repo)
	assert.Equal(t, 0, written)
	assert.Equal(t, 1, remaining)
	_, ok := q.Get(domain.ProgressKey{UserID: user, ItemID: transient})
	assert.True(t, ok, "transient failures stay queued")

	assert.Contains(t, buf.String(), "rejected by store")
	assert.Contains(t, buf.String(), deleted.String())
	assert.Contains(t, buf.String(), invalid.String())

	// Nothing left to reject on the next sweep.
	written, remaining = q.Flush(context.Background(), repo)
	assert.Equal(t, 0, written)
	assert.Equal(t, 1, remaining)
	repo.AssertNumberOfCalls(t, "Upsert", 4)
}

// supersedingRepo queues a newer record for the same key during the write.
type supersedingRepo struct {
	q    *PendingWrites
	next *domain.ReviewProgress
}

func (r *supersedingRepo) Upsert(context.Context, *domain.ReviewProgress) error {
	if r.next != nil {
		r.q.Put(r.next)
		r.next = nil
	}
	return nil
}

func TestPendingWritesFlushKeepsSupersededEntries(t *testing.T) {
	t.Parallel()

	user, item := uuid.New(), uuid.New()
	q := NewPendingWrites(10, discardLogger)
	q.Put(pendingRecord(user, item, 1))

	repo := &supersedingRepo{q: q, next: pendingRecord(user, item, 2)}
	written, remaining := q.Flush(context.Background(), repo)

	assert.Equal(t, 0, written)
	assert.Equal(t, 1, remaining)
	got, _ := q.Get(domain.ProgressKey{UserID: user, ItemID: item})
	assert.Equal(t, 2, got.SRSLevel)
}

func TestPendingWritesFlushStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := NewPendingWrites(10, discardLogger)
	q.Put(pendingRecord(uuid.New(), uuid.New(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := new(MockProgressRepository)
	written, remaining := q.Flush(ctx, repo)
	assert.Equal(t, 0, written)
	assert.Equal(t, 1, remaining)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
