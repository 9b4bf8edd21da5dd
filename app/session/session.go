// Package session keeps bot clients and their position in the menu tree.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ewaproduct/ewabot/core/logger"
)

var (
	ErrClientNotFound = errors.New("session: client not found")
	// ErrStaleSession means another update moved the session first.
	ErrStaleSession = errors.New("session: stale version")
)

// Profile carries the Telegram identity fields refreshed on every /start.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// Client is a registered bot user.
type Client struct {
	ID          int64  `db:"id"`
	ChatID      int64  `db:"chat_id"`
	Username    string `db:"username"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	PhoneNumber string `db:"phone_number"`
	IsVerified  bool   `db:"is_verified"`
	IsLoggedIn  bool   `db:"is_logged_in"`
}

// FullName joins last and first name.
func (c Client) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.LastName) + " " + strings.TrimSpace(c.FirstName))
}

// Session is the per-client pointer into the tree. A nil CurrentNodeID means root.
type Session struct {
	ClientID      int64  `db:"client_id"`
	CurrentNodeID *int64 `db:"current_node_id"`
	Version       int64  `db:"version"`
}

// AtRoot reports whether the client is at the top-level menu.
func (s Session) AtRoot() bool { return s.CurrentNodeID == nil }

const clientColumns = `id, chat_id, username, first_name, last_name, phone_number, is_verified, is_logged_in`

// Store persists clients and sessions.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureClient returns the client for chatID, creating it on first contact.
// Names are refreshed and last_active is touched.
func (s *Store) EnsureClient(ctx context.Context, chatID int64, p Profile) (Client, error) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO bot_clients (chat_id, username, first_name, last_name) VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET
		   username = excluded.username,
		   first_name = excluded.first_name,
		   last_name = excluded.last_name,
		   last_active = CURRENT_TIMESTAMP`),
		chatID, p.Username, p.FirstName, p.LastName)
	if err != nil {
		return Client{}, fmt.Errorf("session: upsert client: %w", err)
	}
	return s.Client(ctx, chatID)
}

// Client loads the client by chat id.
func (s *Store) Client(ctx context.Context, chatID int64) (Client, error) {
	var c Client
	err := s.db.GetContext(ctx, &c, s.db.Rebind(`SELECT `+clientColumns+` FROM bot_clients WHERE chat_id = ?`), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, fmt.Errorf("chat %d: %w", chatID, ErrClientNotFound)
	}
	if err != nil {
		return Client{}, fmt.Errorf("session: load client: %w", err)
	}
	return c, nil
}

// SetLoggedIn flips the login flag of a client.
func (s *Store) SetLoggedIn(ctx context.Context, chatID int64, loggedIn bool) error {
	return s.setFlag(ctx, "is_logged_in", chatID, loggedIn)
}

// SetVerified marks the onboarding survey of a client as done or pending.
func (s *Store) SetVerified(ctx context.Context, chatID int64, verified bool) error {
	return s.setFlag(ctx, "is_verified", chatID, verified)
}

// setFlag updates one boolean column; column is never user input.
func (s *Store) setFlag(ctx context.Context, column string, chatID int64, v bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE bot_clients SET `+column+` = ?, last_active = CURRENT_TIMESTAMP WHERE chat_id = ?`), v, chatID)
	if err != nil {
		return fmt.Errorf("session: set %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("chat %d: %w", chatID, ErrClientNotFound)
	}
	return nil
}

// Session returns the navigation session of clientID, creating a root session if needed.
func (s *Store) Session(ctx context.Context, clientID int64) (Session, error) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO client_sessions (client_id) VALUES (?) ON CONFLICT (client_id) DO NOTHING`), clientID)
	if err != nil {
		return Session{}, fmt.Errorf("session: create: %w", err)
	}
	var sess Session
	err = s.db.GetContext(ctx, &sess, s.db.Rebind(
		`SELECT client_id, current_node_id, version FROM client_sessions WHERE client_id = ?`), clientID)
	if err != nil {
		return Session{}, fmt.Errorf("session: load: %w", err)
	}
	return sess, nil
}

// SetCurrentNode moves the session to nodeID (nil for root) if its version is
// still expected. The new version is returned; a lost race yields ErrStaleSession.
func (s *Store) SetCurrentNode(ctx context.Context, clientID int64, nodeID *int64, expected int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE client_sessions SET current_node_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		  WHERE client_id = ? AND version = ?`), nodeID, clientID, expected)
	if err != nil {
		return 0, fmt.Errorf("session: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: rows affected: %w", err)
	}
	if n == 0 {
		logger.Warn(ctx, logger.CompSessions, "session.stale",
			slog.Int64("client_id", clientID),
			slog.Int64("version", expected),
		)
		return 0, ErrStaleSession
	}
	return expected + 1, nil
}
