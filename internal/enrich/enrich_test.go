package enrich

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kara-analytics/telelake/internal/rawstore"
)

// fakeDetector returns fixed detections and fails on demand.
type fakeDetector struct {
	detections []Detection
	failOn     string
}

func (f *fakeDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	if f.failOn != "" && filepath.Base(imagePath) == f.failOn {
		return nil, errors.New("model crashed")
	}
	return f.detections, nil
}

func openTestStore(t *testing.T) *rawstore.Store {
	t.Helper()
	s, err := rawstore.Open(filepath.Join(t.TempDir(), "test.db"), 0)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestRunStoresDetections(t *testing.T) {
	store := openTestStore(t)
	media := t.TempDir()
	touch(t, filepath.Join(media, "images", "2025-07-16", "alpha", "1.jpg"))
	touch(t, filepath.Join(media, "images", "2025-07-16", "alpha", "2.png"))
	touch(t, filepath.Join(media, "images", "2025-07-16", "alpha", "notes.txt"))

	det := &fakeDetector{detections: []Detection{{Label: "bottle", Confidence: 0.91}}}
	r, err := New(store, det, media).Run(context.Background(), "2025-07-16", []string{"alpha"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.Images != 2 {
		t.Errorf("expected 2 images processed (txt ignored), got %d", r.Images)
	}
	if r.Detections != 2 {
		t.Errorf("expected 2 detections stored, got %d", r.Detections)
	}

	n, _ := store.DetectionCount(context.Background())
	if n != 2 {
		t.Errorf("expected 2 detection rows, got %d", n)
	}
}

func TestRunIsolatesImageFailures(t *testing.T) {
	store := openTestStore(t)
	media := t.TempDir()
	touch(t, filepath.Join(media, "images", "2025-07-16", "alpha", "bad.jpg"))
	touch(t, filepath.Join(media, "images", "2025-07-16", "alpha", "good.jpg"))

	det := &fakeDetector{detections: []Detection{{Label: "person"}}, failOn: "bad.jpg"}
	r, err := New(store, det, media).Run(context.Background(), "2025-07-16", []string{"alpha"})
	if err != nil {
		t.Fatalf("run must not abort on one bad image: %v", err)
	}
	if r.Failed != 1 {
		t.Errorf("expected 1 failure counted, got %d", r.Failed)
	}
	if r.Detections != 1 {
		t.Errorf("expected the good image's detection stored, got %d", r.Detections)
	}
}

func TestRunSkipsMissingMediaDir(t *testing.T) {
	store := openTestStore(t)
	det := &fakeDetector{}
	r, err := New(store, det, t.TempDir()).Run(context.Background(), "2025-07-16", []string{"ghost"})
	if err != nil {
		t.Fatalf("missing media dir must not be fatal: %v", err)
	}
	if r.Channels != 0 || r.Images != 0 {
		t.Errorf("expected empty result, got %+v", r)
	}
}

func TestRunRerunAddsNothing(t *testing.T) {
	store := openTestStore(t)
	media := t.TempDir()
	touch(t, filepath.Join(media, "images", "2025-07-16", "alpha", "1.jpg"))

	det := &fakeDetector{detections: []Detection{{Label: "bottle", Confidence: 0.5}}}
	e := New(store, det, media)

	if _, err := e.Run(context.Background(), "2025-07-16", []string{"alpha"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	r, err := e.Run(context.Background(), "2025-07-16", []string{"alpha"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if r.Detections != 0 {
		t.Errorf("expected 0 new detections on re-run, got %d", r.Detections)
	}
}
