// Package sqlite is a notes.Store backed by a local SQLite file, using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/dictanote/internal/notes"
)

// Schema creates the notes and settings tables.
const Schema = `
CREATE TABLE IF NOT EXISTS notes (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL DEFAULT '',
    images     TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Store is a notes.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ notes.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path. The special path
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One connection keeps an in-memory database shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, n *notes.Note) error {
	images, err := json.Marshal(notes.EmptyImages(n.Images))
	if err != nil {
		return fmt.Errorf("sqlite: marshal images: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, images, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, string(images), n.CreatedAt.UnixMilli(), n.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*notes.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, images, created_at, updated_at
		FROM notes
		WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get %q: %w", id, err)
	}
	return n, nil
}

func (s *Store) List(ctx context.Context) ([]notes.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, images, created_at, updated_at
		FROM notes
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	var list []notes.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list scan: %w", err)
		}
		list = append(list, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return list, nil
}

func (s *Store) Update(ctx context.Context, n *notes.Note) error {
	images, err := json.Marshal(notes.EmptyImages(n.Images))
	if err != nil {
		return fmt.Errorf("sqlite: marshal images: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, images = ?, updated_at = ?
		WHERE id = ?`,
		n.Title, n.Content, string(images), n.UpdatedAt.UnixMilli(), n.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update: %w", err)
	}
	return requireRow(res, n.ID)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete %q: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlite: get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite: put setting %q: %w", key, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*notes.Note, error) {
	var (
		n                    notes.Note
		images               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &images, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &n.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}
	n.CreatedAt = time.UnixMilli(createdAt).UTC()
	n.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &n, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: note %q: %w", id, notes.ErrNotFound)
	}
	return nil
}
