package rawstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Message is one row of the raw messages table: the platform message as
// scraped, keyed by its platform-global id.
type Message struct {
	MessageID   int64
	ChannelSlug string
	MessageTS   time.Time
	Payload     json.RawMessage
}

// InsertMessages merges rows into the raw table in a single transaction.
// The merge is insert-only: a row whose message_id already exists is left
// untouched, so the first write for a given id wins permanently and re-runs
// are always safe. Returns the number of newly inserted rows.
func (s *Store) InsertMessages(ctx context.Context, rows []Message) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (message_id, channel_slug, message_ts, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing merge statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, m := range rows {
		res, err := stmt.ExecContext(ctx,
			m.MessageID, m.ChannelSlug, m.MessageTS.UTC().Format(time.RFC3339), string(m.Payload))
		if err != nil {
			return 0, fmt.Errorf("merging message %d: %w", m.MessageID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("merging message %d: %w", m.MessageID, err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing merge: %w", err)
	}
	return inserted, nil
}

// MessageCount returns the total number of raw message rows.
func (s *Store) MessageCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// GetMessage returns one raw message by id, or nil if absent.
func (s *Store) GetMessage(ctx context.Context, messageID int64) (*Message, error) {
	var m Message
	var ts, payload string
	err := s.conn.QueryRowContext(ctx,
		"SELECT message_id, channel_slug, message_ts, payload FROM messages WHERE message_id = ?",
		messageID,
	).Scan(&m.MessageID, &m.ChannelSlug, &ts, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading message %d: %w", messageID, err)
	}
	m.MessageTS, _ = time.Parse(time.RFC3339, ts)
	m.Payload = json.RawMessage(payload)
	return &m, nil
}

// ChannelSlugsForDate returns the distinct channels with messages on the
// given calendar date.
func (s *Store) ChannelSlugsForDate(ctx context.Context, date string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT DISTINCT channel_slug FROM messages WHERE date(message_ts) = ? ORDER BY channel_slug",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("listing channels for %s: %w", date, err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}
