package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Message is a persisted conversation entry. ToolCalls holds the JSON encoded
// call descriptors of an assistant message.
type Message struct {
	ID         int64
	SessionID  string
	Role       string
	Content    string
	Name       string
	ToolCalls  string
	ToolCallID string
	CreatedAt  time.Time
}

type Session struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// InsertMessages stores msgs for sessionID in one transaction, creating the
// session row on first use.
func (db *DB) InsertMessages(ctx context.Context, sessionID string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, name, tool_calls, tool_call_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, m.Role, m.Content, m.Name, m.ToolCalls, m.ToolCallID, now); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}
	return tx.Commit()
}

// RecentMessages returns the newest limit messages of a session, oldest first.
// limit <= 0 returns the whole session.
func (db *DB) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	query := `SELECT id, session_id, role, content, name, tool_calls, tool_call_id, created_at
		FROM messages WHERE session_id = ? ORDER BY id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var created int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Name, &m.ToolCalls, &m.ToolCallID, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (db *DB) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT s.id, s.created_at, s.updated_at, COUNT(m.id)
		 FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		 GROUP BY s.id ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var created, updated int64
		if err := rows.Scan(&s.ID, &created, &updated, &s.MessageCount); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(0, created)
		s.UpdatedAt = time.Unix(0, updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its messages.
func (db *DB) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

func (db *DB) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var id string
	err := db.QueryRowContext(ctx, `SELECT id FROM sessions WHERE id = ?`, sessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
