package store

import (
	"context"
	"errors"
	"time"
)

// Room is a named, uniquely identified container for messages.
// Rooms are immutable after creation and are never deleted.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Message is a persisted chat message. The store assigns ID and
// CreatedAt at append time; messages are immutable afterwards.
type Message struct {
	ID        int64
	RoomID    string
	Username  string
	Content   string
	CreatedAt time.Time
}

// Cursor addresses a position in a room's message history.
// Ordering is by CreatedAt with ID as tiebreak. The zero Cursor
// means "beginning of history".
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// Beginning is the cursor pointing before the first message.
var Beginning = Cursor{}

// IsBeginning reports whether the cursor points before all messages.
func (c Cursor) IsBeginning() bool {
	return c.ID == 0 && c.CreatedAt.IsZero()
}

// Before reports whether c orders strictly before other.
func (c Cursor) Before(other Cursor) bool {
	if c.CreatedAt.Equal(other.CreatedAt) {
		return c.ID < other.ID
	}
	return c.CreatedAt.Before(other.CreatedAt)
}

// CursorOf returns the cursor addressing msg.
func CursorOf(msg *Message) Cursor {
	return Cursor{CreatedAt: msg.CreatedAt, ID: msg.ID}
}

var (
	// ErrNotFound indicates the requested room does not exist.
	// Expected for mistyped or stale shared links, not a system fault.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a user-correctable rejection, such as
	// an empty message or a message into a nonexistent room.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates the backing storage could not be
	// reached. Callers may retry with backoff.
	ErrUnavailable = errors.New("store unavailable")
)

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom persists a room under a fresh unique id and returns it.
	// Names are not unique keys; creation never fails on collision.
	CreateRoom(ctx context.Context, name string) (*Room, error)

	// GetRoom retrieves a room by id. Returns ErrNotFound when the id
	// is absent.
	GetRoom(ctx context.Context, id string) (*Room, error)
}

// MessageStore handles the durable, append-only message log.
type MessageStore interface {
	// AppendMessage persists a message, assigning its ID and CreatedAt.
	// Fails with ErrInvalidInput when the room does not exist.
	AppendMessage(ctx context.Context, roomID, username, content string) (*Message, error)

	// ListMessagesSince returns all messages in the room with order-key
	// strictly greater than the cursor, oldest first.
	ListMessagesSince(ctx context.Context, roomID string, after Cursor) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
