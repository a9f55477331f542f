package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrNotOwner     = errors.New("you can only delete your own notes")
)

type Note struct {
	ID        string
	User      string
	Note      string
	CreatedAt time.Time
}

func (db *DB) SaveNote(ctx context.Context, user, content string) (Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Note{}, fmt.Errorf("note content cannot be empty")
	}
	n := Note{
		ID:        uuid.NewString(),
		User:      user,
		Note:      content,
		CreatedAt: time.Now(),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO notes (id, owner, note, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.User, n.Note, n.CreatedAt.UnixNano())
	if err != nil {
		return Note{}, fmt.Errorf("saving note: %w", err)
	}
	return n, nil
}

// ListNotes returns a user's notes oldest first. An empty user lists everyone's.
func (db *DB) ListNotes(ctx context.Context, user string) ([]Note, error) {
	if user == "" {
		return db.queryNotes(ctx, `SELECT id, owner, note, created_at FROM notes ORDER BY created_at ASC, rowid ASC`)
	}
	return db.queryNotes(ctx, `SELECT id, owner, note, created_at FROM notes WHERE owner = ? ORDER BY created_at ASC, rowid ASC`, user)
}

// SearchNotes matches query case-insensitively against the note text.
func (db *DB) SearchNotes(ctx context.Context, user, query string) ([]Note, error) {
	if user == "" {
		return db.queryNotes(ctx,
			`SELECT id, owner, note, created_at FROM notes WHERE instr(lower(note), lower(?)) > 0 ORDER BY created_at ASC, rowid ASC`,
			query)
	}
	return db.queryNotes(ctx,
		`SELECT id, owner, note, created_at FROM notes WHERE owner = ? AND instr(lower(note), lower(?)) > 0 ORDER BY created_at ASC, rowid ASC`,
		user, query)
}

func (db *DB) DeleteNote(ctx context.Context, user, id string) error {
	var owner string
	err := db.QueryRowContext(ctx, `SELECT owner FROM notes WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	if err != nil {
		return err
	}
	if owner != user {
		return ErrNotOwner
	}
	_, err = db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	return err
}

func (db *DB) queryNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		var created int64
		if err := rows.Scan(&n.ID, &n.User, &n.Note, &created); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(0, created)
		out = append(out, n)
	}
	return out, rows.Err()
}
