package rawstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the raw-layer SQLite database. The embedded *sql.DB is the
// bounded connection pool; it is constructed once by the owning command,
// injected into every component that needs it, and closed when the run ends.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the raw store at the given path and guarantees the
// schema exists. maxConns bounds the pool; 0 leaves the driver default.
func Open(dbPath string, maxConns int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if maxConns > 0 {
		conn.SetMaxOpenConns(maxConns)
	}

	s := &Store{conn: conn, path: dbPath}
	if err := s.EnsureSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema idempotently creates the raw tables. Safe to call any number
// of times; an existing table is a silent no-op.
func (s *Store) EnsureSchema() error {
	_, err := s.conn.Exec(`
CREATE TABLE IF NOT EXISTS messages (
    message_id INTEGER PRIMARY KEY,
    channel_slug TEXT NOT NULL CHECK (length(channel_slug) <= 100),
    message_ts TEXT,
    payload TEXT NOT NULL CHECK (json_valid(payload))
);

CREATE TABLE IF NOT EXISTS image_detections (
    image_path TEXT NOT NULL,
    label TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    channel_slug TEXT NOT NULL,
    detected_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (image_path, label)
);

CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_slug);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(message_ts);
CREATE INDEX IF NOT EXISTS idx_detections_channel ON image_detections(channel_slug);
`)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Stats contains aggregate raw-store statistics for the status command.
type Stats struct {
	TotalMessages   int
	Channels        int
	DatesWithData   int
	TotalDetections int
}

// GetStats returns aggregate statistics over the raw store.
func (s *Store) GetStats() (*Stats, error) {
	st := &Stats{}
	queries := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM messages", &st.TotalMessages},
		{"SELECT COUNT(DISTINCT channel_slug) FROM messages", &st.Channels},
		{"SELECT COUNT(DISTINCT date(message_ts)) FROM messages WHERE message_ts IS NOT NULL", &st.DatesWithData},
		{"SELECT COUNT(*) FROM image_detections", &st.TotalDetections},
	}
	for _, q := range queries {
		if err := s.conn.QueryRow(q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}
	return st, nil
}
