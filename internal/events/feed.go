package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DefaultFeedCapacity is the number of events a Feed keeps per session.
const DefaultFeedCapacity = 32

// Feed is an EventHandler that buffers the most recent events per session
// so clients can poll for presentation triggers.
type Feed struct {
	mu       sync.Mutex
	capacity int
	bySess   map[uuid.UUID][]*Event
}

var _ EventHandler = (*Feed)(nil)

// NewFeed creates a feed holding up to capacity events per session.
// A non-positive capacity means DefaultFeedCapacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{
		capacity: capacity,
		bySess:   make(map[uuid.UUID][]*Event),
	}
}

// HandleEvent implements EventHandler. Events without a session are ignored.
func (f *Feed) HandleEvent(_ context.Context, event *Event) error {
	if event == nil || event.SessionID == uuid.Nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	buf := append(f.bySess[event.SessionID], event)
	if len(buf) > f.capacity {
		buf = buf[len(buf)-f.capacity:]
	}
	f.bySess[event.SessionID] = buf
	return nil
}

// Since returns the buffered events for sessionID that come after the event
// with ID after. A nil after (or one no longer buffered) returns everything.
func (f *Feed) Since(sessionID uuid.UUID, after uuid.UUID) []*Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := f.bySess[sessionID]
	start := 0
	if after != uuid.Nil {
		for i, e := range buf {
			if e.ID == after {
				start = i + 1
				break
			}
		}
	}

	out := make([]*Event, len(buf)-start)
	copy(out, buf[start:])
	return out
}

// Forget drops everything buffered for sessionID.
func (f *Feed) Forget(sessionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bySess, sessionID)
}
