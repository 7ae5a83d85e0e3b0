package practice

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// DefaultMaxPendingWrites bounds the retry queue when no size is configured.
const DefaultMaxPendingWrites = 1000

// Upserter is the write half of ProgressRepository.
type Upserter interface {
	Upsert(ctx context.Context, p *domain.ReviewProgress) error
}

// isPermanentWriteError reports whether the store rejected a record in a way
// no retry can fix: the record itself is invalid or its item is gone.
func isPermanentWriteError(err error) bool {
	return errors.Is(err, store.ErrInvalidEntity) || errors.Is(err, store.ErrItemNotFound)
}

type pendingEntry struct {
	record   *domain.ReviewProgress
	attempts int
}

// PendingWrites holds progress records whose write failed, keyed by
// (user, item) with the latest record winning. It is bounded: when full the
// oldest entry is dropped and the drop is logged at error level.
type PendingWrites struct {
	mu      sync.Mutex
	max     int
	order   *list.List // of domain.ProgressKey, oldest first
	entries map[domain.ProgressKey]*list.Element
	values  map[domain.ProgressKey]*pendingEntry
	logger  *slog.Logger
}

// NewPendingWrites creates an empty queue holding at most max records.
func NewPendingWrites(max int, logger *slog.Logger) *PendingWrites {
	if max <= 0 {
		max = DefaultMaxPendingWrites
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingWrites{
		max:     max,
		order:   list.New(),
		entries: make(map[domain.ProgressKey]*list.Element),
		values:  make(map[domain.ProgressKey]*pendingEntry),
		logger:  logger.With(slog.String("component", "pending_writes")),
	}
}

// Put queues record, replacing any older record for the same key.
func (q *PendingWrites) Put(record *domain.ReviewProgress) {
	if record == nil {
		return
	}
	key := record.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if el, ok := q.entries[key]; ok {
		q.order.MoveToBack(el)
		q.values[key].record = record
		return
	}

	for q.order.Len() >= q.max {
		q.dropOldestLocked()
	}
	q.entries[key] = q.order.PushBack(key)
	q.values[key] = &pendingEntry{record: record}
}

func (q *PendingWrites) dropOldestLocked() {
	front := q.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(domain.ProgressKey)
	dropped := q.values[key]
	q.removeLocked(key)

	q.logger.Error("pending progress write dropped, queue full",
		slog.String("user_id", key.UserID.String()),
		slog.String("item_id", key.ItemID.String()),
		slog.Int("srs_level", dropped.record.SRSLevel),
		slog.Int("attempts", dropped.attempts),
		slog.Int("capacity", q.max))
}

func (q *PendingWrites) removeLocked(key domain.ProgressKey) {
	if el, ok := q.entries[key]; ok {
		q.order.Remove(el)
	}
	delete(q.entries, key)
	delete(q.values, key)
}

// Clear discards the pending record for key. Called after a later write for
// the same pair succeeded, which supersedes it.
func (q *PendingWrites) Clear(key domain.ProgressKey) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(key)
}

// Len returns the number of queued records.
func (q *PendingWrites) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// Get returns the queued record for key, if any.
func (q *PendingWrites) Get(key domain.ProgressKey) (*domain.ReviewProgress, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v, ok := q.values[key]; ok {
		return v.record, true
	}
	return nil, false
}

// Overlay replaces entries of progress with queued records for userID, so a
// fresh fetch does not resurrect values the store never received.
func (q *PendingWrites) Overlay(userID uuid.UUID, progress map[uuid.UUID]*domain.ReviewProgress) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for key, v := range q.values {
		if key.UserID == userID {
			progress[key.ItemID] = v.record
		}
	}
}

// Flush retries every queued record once. Records written successfully are
// removed unless a newer record for the same key arrived meanwhile. Records
// the store rejects permanently are removed and logged at error level.
// It returns the number written and the number still queued.
func (q *PendingWrites) Flush(ctx context.Context, repo Upserter) (written, remaining int) {
	q.mu.Lock()
	batch := make([]*domain.ReviewProgress, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		batch = append(batch, q.values[el.Value.(domain.ProgressKey)].record)
	}
	q.mu.Unlock()

	for _, record := range batch {
		if ctx.Err() != nil {
			break
		}
		err := repo.Upsert(ctx, record)

		q.mu.Lock()
		v, ok := q.values[record.Key()]
		switch {
		case !ok || v.record != record:
			// Superseded or dropped while we were writing.
		case err != nil && isPermanentWriteError(err):
			q.removeLocked(record.Key())
			q.logger.Error("pending progress write dropped, rejected by store",
				slog.String("error", err.Error()),
				slog.String("user_id", record.UserID.String()),
				slog.String("item_id", record.ItemID.String()),
				slog.Int("srs_level", record.SRSLevel),
				slog.Int("attempts", v.attempts+1))
		case err != nil:
			v.attempts++
			q.logger.Debug("pending progress write retry failed",
				slog.String("error", err.Error()),
				slog.String("user_id", record.UserID.String()),
				slog.String("item_id", record.ItemID.String()),
				slog.Int("attempts", v.attempts))
		default:
			q.removeLocked(record.Key())
			written++
		}
		q.mu.Unlock()
	}

	return written, q.Len()
}
