// Package store is the persistence collaborator: chat records and the
// user directory, backed by sqlite through database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/remotely/relay/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	sender_id   TEXT NOT NULL REFERENCES users(id),
	receiver_id TEXT NOT NULL REFERENCES users(id),
	body        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'sent',
	read        INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id, created_at);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and bootstraps the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	query := "INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)"
	if _, err := s.db.ExecContext(ctx, query, string(u.ID), u.Username, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert user '%s': %w", u.ID, err)
	}
	return nil
}

func (s *Store) FindUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	query := "SELECT id, username FROM users WHERE id = ?"
	var u domain.User
	if err := s.db.QueryRowContext(ctx, query, string(id)).Scan(&u.ID, &u.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrUserNotFound)
		}
		return domain.User{}, fmt.Errorf("error querying user: %w", err)
	}
	return u, nil
}

func (s *Store) CreateMessage(ctx context.Context, sender, receiver domain.UserID, body string) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		Status:     domain.StatusSent,
		CreatedAt:  time.Now().UTC(),
	}
	query := "INSERT INTO messages (id, sender_id, receiver_id, body, status, read, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)"
	if _, err := s.db.ExecContext(ctx, query, msg.ID, string(sender), string(receiver), body, string(msg.Status), msg.CreatedAt); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the conversation between a and b, both directions,
// ordered by creation time ascending. Ties break on id so the order is
// stable for either argument orientation.
func (s *Store) ListMessages(ctx context.Context, a, b domain.UserID) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, sender_id, receiver_id, body, status, read, created_at FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(a), string(b), string(b), string(a))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var results []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.Status, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over messages: %w", err)
	}
	return results, nil
}

// MarkRead flips every unread message from sender to receiver to read.
func (s *Store) MarkRead(ctx context.Context, sender, receiver domain.UserID) error {
	query := "UPDATE messages SET read = 1, status = ? WHERE sender_id = ? AND receiver_id = ? AND read = 0"
	if _, err := s.db.ExecContext(ctx, query, string(domain.StatusRead), string(sender), string(receiver)); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
