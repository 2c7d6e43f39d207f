package scrape

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrChannelNotFound is reported by a ChannelClient when an identity cannot
// be resolved to an accessible channel (invalid, private, or deleted).
var ErrChannelNotFound = errors.New("channel not found or not accessible")

// Record is one platform message as retrieved, with its identity extracted.
type Record struct {
	ID  int64
	Raw json.RawMessage
}

// ChannelClient is the platform capability the fetcher pages through.
// Implementations own their network timeouts; the fetcher performs no
// internal retry.
type ChannelClient interface {
	// Resolve maps a channel identity to a platform entity handle.
	// Returns ErrChannelNotFound when the channel is invalid or inaccessible.
	Resolve(ctx context.Context, identity string) (string, error)

	// HistoryPage returns one page of history strictly older than offsetID
	// (offsetID 0 means start from the newest message), newest first.
	// An empty page signals the end of history.
	HistoryPage(ctx context.Context, entity string, offsetID int64, pageSize int) ([]Record, error)
}

// Selection is the validated channel choice from the --channel/--all CLI
// flags, constructed once at parse time.
type Selection struct {
	channel string
	all     bool
}

// NewSelection enforces that exactly one of channel or all is given.
func NewSelection(channel string, all bool) (Selection, error) {
	switch {
	case all && channel != "":
		return Selection{}, errors.New("--channel and --all are mutually exclusive")
	case !all && channel == "":
		return Selection{}, errors.New("one of --channel or --all is required")
	}
	return Selection{channel: channel, all: all}, nil
}

// All reports whether every configured channel was selected.
func (s Selection) All() bool { return s.all }

// Channel returns the single selected channel identity, empty when All.
func (s Selection) Channel() string { return s.channel }
