package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
)

const defaultPageSize = 100

// Fetcher pages backward through a channel's message history.
type Fetcher struct {
	client   ChannelClient
	pageSize int
}

// NewFetcher creates a fetcher over the given client. pageSize 0 falls back
// to the default of 100 messages per page.
func NewFetcher(client ChannelClient, pageSize int) *Fetcher {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Fetcher{client: client, pageSize: pageSize}
}

// FetchHistory returns up to limit messages for the channel, newest first.
// limit <= 0 means the full available history. An invalid or inaccessible
// channel yields an empty result with a warning, not an error, so one bad
// channel cannot abort a multi-channel run.
func (f *Fetcher) FetchHistory(ctx context.Context, identity string, limit int) ([]Record, error) {
	entity, err := f.client.Resolve(ctx, identity)
	if errors.Is(err, ErrChannelNotFound) {
		log.Printf("WARN: could not access %s: %v", identity, err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", identity, err)
	}

	var records []Record
	var offsetID int64
	for {
		page, err := f.client.HistoryPage(ctx, entity, offsetID, f.pageSize)
		if err != nil {
			return nil, fmt.Errorf("history page for %s at offset %d: %w", identity, offsetID, err)
		}
		if len(page) == 0 {
			break
		}
		records = append(records, page...)
		// Pages are newest first, so the cursor advances to the oldest id seen.
		offsetID = page[len(page)-1].ID
		if limit > 0 && len(records) >= limit {
			break
		}
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
