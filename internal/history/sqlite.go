package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	role      TEXT NOT NULL,
	text      TEXT NOT NULL,
	html      TEXT NOT NULL DEFAULT '',
	ts        TEXT NOT NULL
);
`

// SQLiteStore persists the rolling history in a single-file database so
// device clients can replay recent chat after the process restarts.
type SQLiteStore struct {
	db *sql.DB

	mu  sync.Mutex
	max int
}

func OpenSQLite(path string, max int) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &SQLiteStore{db: db, max: clampMax(max)}, nil
}

func (s *SQLiteStore) Append(role, text, html string) error {
	s.mu.Lock()
	max := s.max
	s.mu.Unlock()

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(
		`INSERT INTO messages (role, text, html, ts) VALUES (?, ?, ?, ?)`,
		role, text, html, ts,
	); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	// Trim beyond the retention cap, oldest first.
	_, err := s.db.Exec(
		`DELETE FROM messages WHERE id NOT IN (SELECT id FROM messages ORDER BY id DESC LIMIT ?)`,
		max,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(limit int) ([]Entry, error) {
	s.mu.Lock()
	max := s.max
	s.mu.Unlock()

	if limit <= 0 || limit > max {
		limit = max
	}

	rows, err := s.db.Query(
		`SELECT id, role, text, html, ts FROM messages ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.Role, &e.Text, &e.HTML, &ts); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query was newest-first for the LIMIT; callers want oldest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetMaxEntries(n int) {
	s.mu.Lock()
	s.max = clampMax(n)
	s.mu.Unlock()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
