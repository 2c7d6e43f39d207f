package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fakeClient serves a fixed number of messages for known channels, newest
// first, in pages of the requested size.
type fakeClient struct {
	histories map[string]int // entity -> total message count
}

func (f *fakeClient) Resolve(ctx context.Context, identity string) (string, error) {
	if _, ok := f.histories[identity]; !ok {
		return "", ErrChannelNotFound
	}
	return identity, nil
}

func (f *fakeClient) HistoryPage(ctx context.Context, entity string, offsetID int64, pageSize int) ([]Record, error) {
	total := int64(f.histories[entity])
	newest := total
	if offsetID > 0 {
		newest = offsetID - 1
	}
	var page []Record
	for id := newest; id >= 1 && len(page) < pageSize; id-- {
		raw := fmt.Sprintf(`{"id":%d,"date":"2025-07-16T10:00:00+00:00","message":"msg %d"}`, id, id)
		page = append(page, Record{ID: id, Raw: json.RawMessage(raw)})
	}
	return page, nil
}

// endlessClient always returns a full page, to exercise limit termination.
type endlessClient struct{}

func (endlessClient) Resolve(ctx context.Context, identity string) (string, error) {
	return identity, nil
}

func (endlessClient) HistoryPage(ctx context.Context, entity string, offsetID int64, pageSize int) ([]Record, error) {
	start := int64(1 << 40)
	if offsetID > 0 {
		start = offsetID - 1
	}
	page := make([]Record, pageSize)
	for i := range page {
		id := start - int64(i)
		page[i] = Record{ID: id, Raw: json.RawMessage(fmt.Sprintf(`{"id":%d}`, id))}
	}
	return page, nil
}

func TestFetchHistoryLimit(t *testing.T) {
	f := NewFetcher(endlessClient{}, 100)
	records, err := f.FetchHistory(context.Background(), "endless", 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 250 {
		t.Errorf("expected exactly 250 records, got %d", len(records))
	}
}

func TestFetchHistoryExhaustsSource(t *testing.T) {
	client := &fakeClient{histories: map[string]int{"small": 7}}
	f := NewFetcher(client, 3)
	records, err := f.FetchHistory(context.Background(), "small", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 7 {
		t.Errorf("expected 7 records, got %d", len(records))
	}
	// Newest first, strictly descending ids.
	for i := 1; i < len(records); i++ {
		if records[i].ID >= records[i-1].ID {
			t.Fatalf("records out of order at %d: %d then %d", i, records[i-1].ID, records[i].ID)
		}
	}
}

func TestFetchHistoryInvalidChannel(t *testing.T) {
	client := &fakeClient{histories: map[string]int{}}
	f := NewFetcher(client, 100)
	records, err := f.FetchHistory(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("invalid channel must not error, got: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty result, got %d records", len(records))
	}
}

func TestCollectorSkipsBadChannel(t *testing.T) {
	root := t.TempDir()
	client := &fakeClient{histories: map[string]int{"alpha": 5, "beta": 2}}
	c := NewCollector(client, 100, root, 0)

	r := c.Run(context.Background(), "2025-07-16", []string{"alpha", "does-not-exist", "beta"})

	if r.Channels != 2 {
		t.Errorf("expected 2 channels written, got %d", r.Channels)
	}
	if r.Skipped != 1 {
		t.Errorf("expected 1 skipped channel, got %d", r.Skipped)
	}
	if r.Messages != 7 {
		t.Errorf("expected 7 messages total, got %d", r.Messages)
	}

	for _, slug := range []string{"alpha", "beta"} {
		path := filepath.Join(root, "telegram_messages", "2025-07-16", slug+".json")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected partition file %s: %v", path, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "telegram_messages", "2025-07-16", "does-not-exist.json")); err == nil {
		t.Error("expected no partition file for the invalid channel")
	}
}

func TestCollectorRerunOverwrites(t *testing.T) {
	root := t.TempDir()
	client := &fakeClient{histories: map[string]int{"alpha": 3}}
	c := NewCollector(client, 100, root, 0)

	c.Run(context.Background(), "2025-07-16", []string{"alpha"})
	first, err := os.ReadFile(filepath.Join(root, "telegram_messages", "2025-07-16", "alpha.json"))
	if err != nil {
		t.Fatalf("reading first run output: %v", err)
	}

	c.Run(context.Background(), "2025-07-16", []string{"alpha"})
	second, err := os.ReadFile(filepath.Join(root, "telegram_messages", "2025-07-16", "alpha.json"))
	if err != nil {
		t.Fatalf("reading second run output: %v", err)
	}

	if string(first) != string(second) {
		t.Error("re-running the same date should produce identical partition content")
	}
}

func TestNewSelection(t *testing.T) {
	if _, err := NewSelection("", false); err == nil {
		t.Error("expected error when neither flag given")
	}
	if _, err := NewSelection("alpha", true); err == nil {
		t.Error("expected error when both flags given")
	}
	sel, err := NewSelection("alpha", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.All() || sel.Channel() != "alpha" {
		t.Errorf("unexpected selection: %+v", sel)
	}
	sel, err = NewSelection("", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sel.All() {
		t.Error("expected All selection")
	}
}
