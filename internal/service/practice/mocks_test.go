package practice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

func testItems(n int) []*domain.VocabularyItem {
	items := make([]*domain.VocabularyItem, n)
	for i := range items {
		items[i] = &domain.VocabularyItem{
			ID:      uuid.New(),
			Kanji:   fmt.Sprintf("語%d", i),
			Reading: fmt.Sprintf("ご%d", i),
			Romaji:  fmt.Sprintf("go%d", i),
			Meaning: fmt.Sprintf("word %d", i),
			Level:   "N5",
		}
	}
	return items
}

func ids(items []*domain.VocabularyItem) []uuid.UUID {
	out := make([]uuid.UUID, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

// MockItemSource mocks the ItemSource interface
type MockItemSource struct {
	mock.Mock
}

func (m *MockItemSource) ListByLevel(ctx context.Context, level string) ([]*domain.VocabularyItem, error) {
	args := m.Called(ctx, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VocabularyItem), args.Error(1)
}

// MockProgressRepository mocks the ProgressRepository interface
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) GetMany(
	ctx context.Context,
	userID uuid.UUID,
	itemIDs []uuid.UUID,
) (map[uuid.UUID]*domain.ReviewProgress, error) {
	args := m.Called(ctx, userID, itemIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*domain.ReviewProgress), args.Error(1)
}

func (m *MockProgressRepository) Upsert(ctx context.Context, p *domain.ReviewProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// memoryItems is an ItemSource over a fixed slice.
type memoryItems []*domain.VocabularyItem

func (s memoryItems) ListByLevel(_ context.Context, level string) ([]*domain.VocabularyItem, error) {
	var out []*domain.VocabularyItem
	for _, item := range s {
		if item.Level == level {
			out = append(out, item)
		}
	}
	return out, nil
}

// memoryProgress is a ProgressRepository backed by a map. Like the real
// stores it ignores a record whose ReviewCount is not ahead of the stored one.
type memoryProgress struct {
	mu        sync.Mutex
	records   map[domain.ProgressKey]*domain.ReviewProgress
	upsertErr error
	upserts   int
	fetches   int
	// beforeWrite, when set, runs outside the lock before each upsert.
	beforeWrite func(p *domain.ReviewProgress)
}

func newMemoryProgress() *memoryProgress {
	return &memoryProgress{records: make(map[domain.ProgressKey]*domain.ReviewProgress)}
}

func (r *memoryProgress) GetMany(
	_ context.Context,
	userID uuid.UUID,
	itemIDs []uuid.UUID,
) (map[uuid.UUID]*domain.ReviewProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	out := make(map[uuid.UUID]*domain.ReviewProgress)
	for _, id := range itemIDs {
		if p, ok := r.records[domain.ProgressKey{UserID: userID, ItemID: id}]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (r *memoryProgress) Upsert(_ context.Context, p *domain.ReviewProgress) error {
	r.mu.Lock()
	hook := r.beforeWrite
	r.mu.Unlock()
	if hook != nil {
		hook(p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if cur, ok := r.records[p.Key()]; ok && cur.ReviewCount >= p.ReviewCount {
		return nil
	}
	r.records[p.Key()] = p.Clone()
	return nil
}

func (r *memoryProgress) setBeforeWrite(hook func(p *domain.ReviewProgress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeWrite = hook
}

func (r *memoryProgress) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertErr = err
}

func (r *memoryProgress) get(userID, itemID uuid.UUID) *domain.ReviewProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[domain.ProgressKey{UserID: userID, ItemID: itemID}]
}

// recordingPresenter remembers every trigger in order.
type recordingPresenter struct {
	mu        sync.Mutex
	calls     []string
	summaries []Summary
}

func (p *recordingPresenter) PlayAudio(_ context.Context, _ uuid.UUID, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "audio:"+text)
}

func (p *recordingPresenter) RenderTraceWidget(_ context.Context, _ uuid.UUID, text string, mode WidgetMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, string(mode)+":"+text)
}

func (p *recordingPresenter) SessionCompleted(_ context.Context, _ uuid.UUID, summary Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "completed")
	p.summaries = append(p.summaries, summary)
}

func (p *recordingPresenter) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}
