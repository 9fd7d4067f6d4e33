// Package journal keeps a local SQLite record of capture outcomes. The
// journal is advisory: the encrypted artifacts on disk stay authoritative,
// and journal failures never fail a capture tick.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"hindsight/internal/capture"
)

// Entry is one journaled capture tick.
type Entry struct {
	ID        int64
	CreatedAt time.Time
	Title     string
	Filename  string
	Backend   string
	Duplicate bool
	BBox      capture.Rect
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS captures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		backend TEXT NOT NULL,
		duplicate INTEGER NOT NULL DEFAULT 0,
		bbox_left INTEGER NOT NULL DEFAULT 0,
		bbox_top INTEGER NOT NULL DEFAULT 0,
		bbox_width INTEGER NOT NULL DEFAULT 0,
		bbox_height INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Record inserts one capture entry.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captures (created_at, title, filename, backend, duplicate,
			bbox_left, bbox_top, bbox_width, bbox_height)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.UTC().Format(time.RFC3339), entry.Title, entry.Filename,
		entry.Backend, boolToInt(entry.Duplicate),
		entry.BBox.Left, entry.BBox.Top, entry.BBox.Width, entry.BBox.Height,
	)
	if err != nil {
		return fmt.Errorf("record capture: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, title, filename, backend, duplicate,
			bbox_left, bbox_top, bbox_width, bbox_height
		 FROM captures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			created   string
			duplicate int
		)
		if err := rows.Scan(&entry.ID, &created, &entry.Title, &entry.Filename,
			&entry.Backend, &duplicate,
			&entry.BBox.Left, &entry.BBox.Top, &entry.BBox.Width, &entry.BBox.Height); err != nil {
			return nil, fmt.Errorf("scan capture row: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339, created); parseErr == nil {
			entry.CreatedAt = ts
		}
		entry.Duplicate = duplicate != 0
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate capture rows: %w", err)
	}
	return entries, nil
}

// Count returns the total number of journaled entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM captures")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count captures: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
