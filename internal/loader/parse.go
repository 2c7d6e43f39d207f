package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kara-analytics/telelake/internal/rawstore"
)

// errUnknownShape reports a document that is neither a bare message array
// nor a messages envelope.
var errUnknownShape = errors.New("document is neither a message array nor a messages envelope")

// envelope matches the {"messages": [...]} dump shape some scrape tools
// produce instead of a bare array.
type envelope struct {
	Messages []json.RawMessage `json:"messages"`
}

// decodeDocument accepts either partition-file shape. An envelope without
// the messages field decodes to an empty sequence, which is not a failure.
func decodeDocument(data []byte) ([]json.RawMessage, error) {
	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil {
		return env.Messages, nil
	}
	return nil, errUnknownShape
}

// recordFields is the subset of a raw message the loader keys on. The full
// document is persisted verbatim regardless of what else it contains.
type recordFields struct {
	ID   *int64 `json:"id"`
	Date string `json:"date"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// parseRecord derives a raw-store row from one message document. The
// channel slug comes from the partition file's own name, never from the
// record content.
func parseRecord(slug string, raw json.RawMessage) (rawstore.Message, error) {
	var f recordFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return rawstore.Message{}, fmt.Errorf("decoding record: %w", err)
	}
	if f.ID == nil {
		return rawstore.Message{}, errors.New("record has no id")
	}
	if f.Date == "" {
		return rawstore.Message{}, fmt.Errorf("record %d has no date", *f.ID)
	}
	ts, err := parseTimestamp(f.Date)
	if err != nil {
		return rawstore.Message{}, fmt.Errorf("record %d: %w", *f.ID, err)
	}
	return rawstore.Message{
		MessageID:   *f.ID,
		ChannelSlug: slug,
		MessageTS:   ts,
		Payload:     raw,
	}, nil
}
