package scrape

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kara-analytics/telelake/internal/lake"
	"github.com/kara-analytics/telelake/internal/slugify"
)

// Result holds the counts of one collection run.
type Result struct {
	Date     string
	Channels int
	Messages int
	Skipped  int
	Files    []string
}

// Collector fetches history for a set of channels and writes one partition
// file per non-empty channel under the data root.
type Collector struct {
	fetcher  *Fetcher
	dataRoot string
	limit    int
}

// NewCollector creates a collector. limit <= 0 scrapes full history per channel.
func NewCollector(client ChannelClient, pageSize int, dataRoot string, limit int) *Collector {
	return &Collector{
		fetcher:  NewFetcher(client, pageSize),
		dataRoot: dataRoot,
		limit:    limit,
	}
}

// Run collects messages for each identity into the date's partition.
// Channels are processed independently: a failure on one is logged and
// counted, never propagated. Re-running for the same date atomically
// replaces that date's partition files.
func (c *Collector) Run(ctx context.Context, date string, identities []string) *Result {
	r := &Result{Date: date}

	for _, identity := range identities {
		slug := slugify.Channel(identity)

		records, err := c.fetcher.FetchHistory(ctx, identity, c.limit)
		if err != nil {
			log.Printf("Failed to fetch history for %s: %v", identity, err)
			r.Skipped++
			continue
		}
		if len(records) == 0 {
			// No file for empty results: avoids misleading empty partitions.
			log.Printf("No messages for %s, skipping", slug)
			r.Skipped++
			continue
		}

		raws := make([]json.RawMessage, len(records))
		for i, rec := range records {
			raws[i] = rec.Raw
		}

		path, err := lake.WritePartition(c.dataRoot, date, slug, raws)
		if err != nil {
			log.Printf("Failed to write partition for %s: %v", slug, err)
			r.Skipped++
			continue
		}

		log.Printf("Saved %d messages -> %s", len(records), path)
		r.Channels++
		r.Messages += len(records)
		r.Files = append(r.Files, path)
	}

	return r
}
