package rawstore

import (
	"context"
	"fmt"
)

// ChannelSummary is one row of the top-channels report.
type ChannelSummary struct {
	ChannelSlug  string `json:"channel_slug"`
	MessageCount int64  `json:"message_count"`
	FirstMessage string `json:"first_message"`
	LastMessage  string `json:"last_message"`
}

// TopChannels returns channels ordered by message volume, descending.
func (s *Store) TopChannels(ctx context.Context, limit int) ([]ChannelSummary, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT channel_slug, COUNT(*), MIN(message_ts), MAX(message_ts)
		FROM messages
		GROUP BY channel_slug
		ORDER BY COUNT(*) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top channels: %w", err)
	}
	defer rows.Close()

	var out []ChannelSummary
	for rows.Next() {
		var c ChannelSummary
		if err := rows.Scan(&c.ChannelSlug, &c.MessageCount, &c.FirstMessage, &c.LastMessage); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailyActivity is one day of a channel's posting history.
type DailyActivity struct {
	Date          string  `json:"date"`
	MessageCount  int64   `json:"message_count"`
	AvgTextLength float64 `json:"avg_text_length"`
	ImageCount    int64   `json:"image_count"`
}

// ChannelActivity returns per-day posting counts for a channel within the
// inclusive [start, end] date range.
func (s *Store) ChannelActivity(ctx context.Context, slug, start, end string) ([]DailyActivity, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT date(message_ts),
		       COUNT(*),
		       AVG(length(json_extract(payload, '$.message'))),
		       SUM(CASE WHEN json_extract(payload, '$.has_photo') THEN 1 ELSE 0 END)
		FROM messages
		WHERE channel_slug = ?
		  AND date(message_ts) BETWEEN ? AND ?
		GROUP BY date(message_ts)
		ORDER BY date(message_ts)`, slug, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying activity for %s: %w", slug, err)
	}
	defer rows.Close()

	var out []DailyActivity
	for rows.Next() {
		var d DailyActivity
		var avg *float64
		if err := rows.Scan(&d.Date, &d.MessageCount, &avg, &d.ImageCount); err != nil {
			return nil, err
		}
		if avg != nil {
			d.AvgTextLength = *avg
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SearchHit is one message matched by a text search.
type SearchHit struct {
	MessageID   int64  `json:"message_id"`
	ChannelSlug string `json:"channel_slug"`
	MessageTS   string `json:"message_ts"`
	Text        string `json:"text"`
}

// SearchMessages finds messages whose text contains the query, newest
// first. Channel and date bounds are optional (empty = unbounded).
func (s *Store) SearchMessages(ctx context.Context, query, channel, start, end string, limit int) ([]SearchHit, error) {
	q := `
		SELECT message_id, channel_slug, message_ts,
		       COALESCE(json_extract(payload, '$.message'), '')
		FROM messages
		WHERE LOWER(COALESCE(json_extract(payload, '$.message'), '')) LIKE LOWER(?)`
	args := []any{"%" + query + "%"}

	if channel != "" {
		q += " AND channel_slug = ?"
		args = append(args, channel)
	}
	if start != "" {
		q += " AND date(message_ts) >= ?"
		args = append(args, start)
	}
	if end != "" {
		q += " AND date(message_ts) <= ?"
		args = append(args, end)
	}
	q += " ORDER BY message_ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.MessageID, &h.ChannelSlug, &h.MessageTS, &h.Text); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
