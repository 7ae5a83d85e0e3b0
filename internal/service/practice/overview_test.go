package practice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/domain/srs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOverview(t *testing.T) {
	t.Parallel()

	items := testItems(4)
	user := uuid.New()
	repo := newMemoryProgress()
	put := func(item *domain.VocabularyItem, level, dueInDays int) {
		p := pendingRecord(user, item.ID, level)
		p.NextReviewAt = testNow.AddDate(0, 0, dueInDays)
		require.NoError(t, repo.Upsert(context.Background(), p))
	}
	put(items[0], 2, -1)
	put(items[1], srs.MaxLevel, 10)
	put(items[2], 1, 3)

	m := NewManager(memoryItems(items), repo, srs.NewDefaultService(), nil, discardLogger,
		WithClock(func() time.Time { return testNow }))

	ov, err := m.Overview(context.Background(), user, "n5")
	require.NoError(t, err)
	assert.Equal(t, &Overview{Level: "N5", Total: 4, New: 1, Due: 1, Mastered: 1, Learning: 2}, ov)

	_, err = m.Overview(context.Background(), user, "N9")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOverviewStoreError(t *testing.T) {
	t.Parallel()

	items := new(MockItemSource)
	items.On("ListByLevel", mock.Anything, "N3").Return(nil, errors.New("boom"))
	m := NewManager(items, newMemoryProgress(), srs.NewDefaultService(), nil, discardLogger)

	_, err := m.Overview(context.Background(), uuid.New(), "N3")
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "overview", serviceErr.Operation)
}
