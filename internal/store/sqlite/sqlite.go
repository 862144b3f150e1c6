package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/linkchat/linkchat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	username   TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_order
	ON messages (room_id, created_at, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== RoomStore implementation ====

// CreateRoom persists a room under a fresh UUID and returns it.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string) (*store.Room, error) {
	room := &store.Room{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO rooms (id, name, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, room.ID, room.Name, room.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert room: %w: %w", store.ErrUnavailable, err)
	}

	return room, nil
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, name, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w: %w", store.ErrUnavailable, err)
	}

	return &room, nil
}

// ==== MessageStore implementation ====

// AppendMessage persists a message, assigning its ID and CreatedAt.
func (s *SQLiteStore) AppendMessage(ctx context.Context, roomID, username, content string) (*store.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", roomID, store.ErrInvalidInput)
		}
		return nil, fmt.Errorf("check room: %w: %w", store.ErrUnavailable, err)
	}

	msg := &store.Message{
		RoomID:    roomID,
		Username:  username,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO messages (room_id, username, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.RoomID, msg.Username, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w: %w", store.ErrUnavailable, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w: %w", store.ErrUnavailable, err)
	}

	msg.ID = id
	return msg, nil
}

// ListMessagesSince returns all messages in the room with order-key
// strictly greater than the cursor, oldest first.
func (s *SQLiteStore) ListMessagesSince(ctx context.Context, roomID string, after store.Cursor) ([]*store.Message, error) {
	var query string
	var args []any

	if after.IsBeginning() {
		query = `
			SELECT id, room_id, username, content, created_at
			FROM messages
			WHERE room_id = ?
			ORDER BY created_at ASC, id ASC
		`
		args = []any{roomID}
	} else {
		query = `
			SELECT id, room_id, username, content, created_at
			FROM messages
			WHERE room_id = ? AND (created_at > ? OR (created_at = ? AND id > ?))
			ORDER BY created_at ASC, id ASC
		`
		args = []any{roomID, after.CreatedAt, after.CreatedAt, after.ID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w: %w", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w: %w", store.ErrUnavailable, err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w: %w", store.ErrUnavailable, err)
	}

	return messages, nil
}
