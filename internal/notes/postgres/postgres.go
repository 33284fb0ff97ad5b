// Package postgres is a notes.Store backed by PostgreSQL through pgx. Images
// are kept in a JSONB column next to the note.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dictanote/internal/notes"
)

// Schema is the SQL DDL for the notes and settings tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS notes (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL DEFAULT '',
    images     JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at DESC);
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a notes.Store on PostgreSQL.
type Store struct {
	db DB
}

var _ notes.Store = (*Store)(nil)

// New returns a Store using db. Call [Store.Migrate] before the first query.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a connection pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Migrate executes [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, n *notes.Note) error {
	images, err := json.Marshal(notes.EmptyImages(n.Images))
	if err != nil {
		return fmt.Errorf("postgres: marshal images: %w", err)
	}
	const query = `
		INSERT INTO notes (id, title, content, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.Exec(ctx, query, n.ID, n.Title, n.Content, images, n.CreatedAt, n.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("postgres: note with id %q already exists", n.ID)
		}
		return fmt.Errorf("postgres: create: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*notes.Note, error) {
	const query = `
		SELECT id, title, content, images, created_at, updated_at
		FROM notes
		WHERE id = $1`

	var n notes.Note
	var images []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.Title, &n.Content, &images, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get %q: %w", id, err)
	}
	if err := json.Unmarshal(images, &n.Images); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal images: %w", err)
	}
	return &n, nil
}

func (s *Store) List(ctx context.Context) ([]notes.Note, error) {
	const query = `
		SELECT id, title, content, images, created_at, updated_at
		FROM notes
		ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var list []notes.Note
	for rows.Next() {
		var n notes.Note
		var images []byte
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &images, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: list scan: %w", err)
		}
		if err := json.Unmarshal(images, &n.Images); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal images: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return list, nil
}

func (s *Store) Update(ctx context.Context, n *notes.Note) error {
	images, err := json.Marshal(notes.EmptyImages(n.Images))
	if err != nil {
		return fmt.Errorf("postgres: marshal images: %w", err)
	}
	const query = `
		UPDATE notes SET title = $2, content = $3, images = $4, updated_at = $5
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, n.ID, n.Title, n.Content, images, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: note %q: %w", n.ID, notes.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: note %q: %w", id, notes.ErrNotFound)
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("postgres: get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("postgres: put setting %q: %w", key, err)
	}
	return nil
}

// isDuplicateKeyError checks for a unique-violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
