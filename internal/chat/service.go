package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linkchat/linkchat-server/internal/store"
)

// DefaultRoomName is used when a room is created with a blank name.
const DefaultRoomName = "New Chat Room"

// ServiceOptions tune session recovery behavior.
type ServiceOptions struct {
	// SessionBackoffMin is the initial retry delay for a failed
	// backfill or a lost subscription.
	SessionBackoffMin time.Duration
	// SessionBackoffMax caps the exponential retry delay.
	SessionBackoffMax time.Duration
}

// Service is the facade the transport layer talks to: room creation
// and lookup, message send, and session opening.
type Service struct {
	rooms  store.RoomStore
	msgLog *Log
	broker *Broker
	opts   ServiceOptions
	log    *zerolog.Logger
}

// NewService wires the facade over a store and broker.
func NewService(st store.Store, broker *Broker, opts ServiceOptions, logger *zerolog.Logger) *Service {
	return &Service{
		rooms:  st,
		msgLog: NewLog(st, broker),
		broker: broker,
		opts:   opts,
		log:    logger,
	}
}

// CreateRoom creates a room. A blank name falls back to DefaultRoomName;
// names are not unique, so creation never conflicts.
func (s *Service) CreateRoom(ctx context.Context, name string) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultRoomName
	}

	room, err := s.rooms.CreateRoom(ctx, name)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("room_id", room.ID).Str("room_name", room.Name).Msg("room created")
	return room, nil
}

// JoinRoom resolves a shared room token to a room. A malformed token is
// invalid input; a well-formed token for an absent room is not found.
func (s *Service) JoinRoom(ctx context.Context, roomID string) (*store.Room, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	return s.rooms.GetRoom(ctx, roomID)
}

// SendMessage trims and appends a message. The message reaches every
// live subscriber of the room, including the sender's own session,
// before SendMessage returns.
func (s *Service) SendMessage(ctx context.Context, roomID, username, content string) (*store.Message, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty message: %w", store.ErrInvalidInput)
	}
	username = strings.TrimSpace(username)

	msg, err := s.msgLog.Append(ctx, roomID, username, content)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("room_id", roomID).Int64("message_id", msg.ID).Msg("message appended")
	return msg, nil
}

// ListMessages returns room history after the cursor, oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID string, after store.Cursor) ([]*store.Message, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	return s.msgLog.ListSince(ctx, roomID, after)
}

// OpenSession constructs a session for the room. The caller starts it
// with Subscribe and must Close it when done.
func (s *Service) OpenSession(roomID string) *Session {
	return newSession(roomID, s.msgLog, s.broker, s.opts.SessionBackoffMin, s.opts.SessionBackoffMax)
}

// validateRoomID accepts exactly the shareable token format: a
// non-empty UUID string. Anything else is user-correctable input.
func validateRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("empty room id: %w", store.ErrInvalidInput)
	}
	if _, err := uuid.Parse(roomID); err != nil {
		return fmt.Errorf("malformed room id %q: %w", roomID, store.ErrInvalidInput)
	}
	return nil
}
