package rawstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), 0)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func msg(id int64, slug, text string) Message {
	payload, _ := json.Marshal(map[string]any{"id": id, "message": text})
	return Message{
		MessageID:   id,
		ChannelSlug: slug,
		MessageTS:   time.Date(2025, 7, 16, 10, 0, 0, 0, time.UTC),
		Payload:     payload,
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s := openTestStore(t)
	// Open already ran it once; the second and third runs must be no-ops.
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("third EnsureSchema: %v", err)
	}
}

func TestInsertMessagesIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rows := []Message{msg(1, "alpha", "one"), msg(2, "alpha", "two")}

	inserted, err := s.InsertMessages(ctx, rows)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", inserted)
	}

	inserted, err = s.InsertMessages(ctx, rows)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted != 0 {
		t.Errorf("expected 0 inserted on re-run, got %d", inserted)
	}

	n, err := s.MessageCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestInsertMessagesFirstWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := msg(42, "alpha", "original")
	second := msg(42, "alpha", "edited")
	if _, err := s.InsertMessages(ctx, []Message{first, second}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetMessage(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected message 42 to exist")
	}
	var payload map[string]any
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["message"] != "original" {
		t.Errorf("expected first write to win, got %v", payload["message"])
	}
}

func TestChannelSlugsForDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.InsertMessages(ctx, []Message{msg(1, "beta", "x"), msg(2, "alpha", "y")})

	slugs, err := s.ChannelSlugsForDate(ctx, "2025-07-16")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slugs) != 2 || slugs[0] != "alpha" || slugs[1] != "beta" {
		t.Errorf("expected [alpha beta], got %v", slugs)
	}

	slugs, err = s.ChannelSlugsForDate(ctx, "1999-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slugs) != 0 {
		t.Errorf("expected no channels, got %v", slugs)
	}
}

func TestTopChannelsAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.InsertMessages(ctx, []Message{
		msg(1, "alpha", "paracetamol in stock"),
		msg(2, "alpha", "vitamins"),
		msg(3, "beta", "Paracetamol syrup"),
	})

	top, err := s.TopChannels(ctx, 10)
	if err != nil {
		t.Fatalf("top channels: %v", err)
	}
	if len(top) != 2 || top[0].ChannelSlug != "alpha" || top[0].MessageCount != 2 {
		t.Errorf("unexpected top channels: %+v", top)
	}

	hits, err := s.SearchMessages(ctx, "paracetamol", "", "", "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 case-insensitive hits, got %d", len(hits))
	}

	hits, err = s.SearchMessages(ctx, "paracetamol", "beta", "", "", 10)
	if err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	if len(hits) != 1 || hits[0].MessageID != 3 {
		t.Errorf("expected only beta's hit, got %+v", hits)
	}
}

func TestInsertDetectionsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dets := []Detection{
		{ImagePath: "images/2025-07-16/alpha/1.jpg", Label: "bottle", Confidence: 0.9, ChannelSlug: "alpha"},
		{ImagePath: "images/2025-07-16/alpha/1.jpg", Label: "person", Confidence: 0.7, ChannelSlug: "alpha"},
	}

	inserted, err := s.InsertDetections(ctx, dets)
	if err != nil {
		t.Fatalf("insert detections: %v", err)
	}
	if inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", inserted)
	}

	inserted, err = s.InsertDetections(ctx, dets)
	if err != nil {
		t.Fatalf("re-insert detections: %v", err)
	}
	if inserted != 0 {
		t.Errorf("expected 0 on re-run, got %d", inserted)
	}

	n, _ := s.DetectionCount(ctx)
	if n != 2 {
		t.Errorf("expected 2 detections, got %d", n)
	}
}
