package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linkchat/linkchat-server/internal/store"
)

// fakeStore is an in-memory store.MessageStore with injectable failures
// and a rendezvous hook for exercising the backfill fetch window.
type fakeStore struct {
	mu     sync.Mutex
	msgs   []*store.Message
	nextID int64
	base   time.Time

	failList int // remaining ListMessagesSince calls to fail

	// When set, ListMessagesSince signals listCalled and then waits for
	// listRelease before taking its snapshot.
	listCalled  chan struct{}
	listRelease chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{base: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeStore) AppendMessage(_ context.Context, roomID, username, content string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	msg := &store.Message{
		ID:        f.nextID,
		RoomID:    roomID,
		Username:  username,
		Content:   content,
		CreatedAt: f.base.Add(time.Duration(f.nextID) * time.Millisecond),
	}
	f.msgs = append(f.msgs, msg)
	return msg, nil
}

func (f *fakeStore) ListMessagesSince(_ context.Context, roomID string, after store.Cursor) ([]*store.Message, error) {
	f.mu.Lock()
	called, release := f.listCalled, f.listRelease
	if f.failList > 0 {
		f.failList--
		f.mu.Unlock()
		return nil, fmt.Errorf("injected outage: %w", store.ErrUnavailable)
	}
	f.mu.Unlock()

	if called != nil {
		called <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*store.Message
	for _, msg := range f.msgs {
		if msg.RoomID != roomID {
			continue
		}
		if !after.Before(store.CursorOf(msg)) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// collector records session deliveries in callback order.
type collector struct {
	mu       sync.Mutex
	view     []*store.Message // backlog batches and live messages, in order
	backlogs int
	errs     []error

	// When set, live deliveries block here before being recorded.
	liveGate chan struct{}
}

func (c *collector) handlers() SessionHandlers {
	return SessionHandlers{
		OnBacklog: func(messages []*store.Message) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.backlogs++
			c.view = append(c.view, messages...)
		},
		OnMessage: func(msg *store.Message) {
			if c.liveGate != nil {
				<-c.liveGate
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			c.view = append(c.view, msg)
		},
		OnError: func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.errs = append(c.errs, err)
		},
	}
}

func (c *collector) snapshot() []*store.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*store.Message, len(c.view))
	copy(out, c.view)
	return out
}

func (c *collector) backlogCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backlogs
}

func (c *collector) errCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// assertIDs checks the collected view is exactly ids, in order, no
// duplicates and no gaps.
func assertIDs(t *testing.T, msgs []*store.Message, ids ...int64) {
	t.Helper()

	if len(msgs) != len(ids) {
		t.Fatalf("expected %d messages, got %d: %+v", len(ids), len(msgs), msgIDs(msgs))
	}
	for i, msg := range msgs {
		if msg.ID != ids[i] {
			t.Fatalf("expected id %d at index %d, got %d: %v", ids[i], i, msg.ID, msgIDs(msgs))
		}
	}
}

func msgIDs(msgs []*store.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.ID)
	}
	return out
}
