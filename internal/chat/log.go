package chat

import (
	"context"
	"sync"

	"github.com/linkchat/linkchat-server/internal/store"
)

// Log is the append side of a room's message history. It pairs the
// durable store with the broker so that every successful append is
// synchronously published to live subscribers before Append returns,
// and so that broker delivery order matches durable append order.
type Log struct {
	store  store.MessageStore
	broker *Broker

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLog builds a message log over the given store and broker.
func NewLog(st store.MessageStore, broker *Broker) *Log {
	return &Log{
		store:  st,
		broker: broker,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Append persists a message and publishes it to the room's live
// subscribers as a single step relative to other appends in the same
// room. Appends to different rooms do not serialize against each other.
func (l *Log) Append(ctx context.Context, roomID, username, content string) (*store.Message, error) {
	lock := l.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := l.store.AppendMessage(ctx, roomID, username, content)
	if err != nil {
		return nil, err
	}

	l.broker.Publish(msg)
	return msg, nil
}

// ListSince returns all messages in the room after the cursor, oldest
// first. Reads never take the room's append lock.
func (l *Log) ListSince(ctx context.Context, roomID string, after store.Cursor) ([]*store.Message, error) {
	return l.store.ListMessagesSince(ctx, roomID, after)
}

// roomLock returns the per-room append lock, creating it on first use.
// Locks are never reclaimed; rooms are never deleted.
func (l *Log) roomLock(roomID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[roomID] = lock
	}
	return lock
}
