package enrich

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kara-analytics/telelake/internal/rawstore"
)

// imageExts are the media file types handed to the detector.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// Result holds the counts of one enrichment run.
type Result struct {
	Channels   int
	Images     int
	Failed     int
	Detections int64
}

// Enricher runs object detection over a date's channel images and stores
// the detections in the raw store.
type Enricher struct {
	store     *rawstore.Store
	detector  Detector
	mediaRoot string
}

// New creates an enricher. mediaRoot is the data directory holding
// images/<date>/<channel-slug>/ trees.
func New(store *rawstore.Store, detector Detector, mediaRoot string) *Enricher {
	return &Enricher{store: store, detector: detector, mediaRoot: mediaRoot}
}

// Run processes the given channels' images for one date. Per-image
// detection failures are logged and counted; a channel without a media
// directory is skipped with a log line.
func (e *Enricher) Run(ctx context.Context, date string, slugs []string) (*Result, error) {
	r := &Result{}

	for _, slug := range slugs {
		dir := filepath.Join(e.mediaRoot, "images", date, slug)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			log.Printf("No media directory for %s on %s, skipping", slug, date)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading media directory %s: %w", dir, err)
		}
		r.Channels++

		for _, entry := range entries {
			if entry.IsDir() || !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			imagePath := filepath.Join(dir, entry.Name())
			r.Images++

			dets, err := e.detector.Detect(ctx, imagePath)
			if err != nil {
				log.Printf("WARN: detection failed for %s: %v", imagePath, err)
				r.Failed++
				continue
			}

			rows := make([]rawstore.Detection, len(dets))
			for i, d := range dets {
				rows[i] = rawstore.Detection{
					ImagePath:   imagePath,
					Label:       d.Label,
					Confidence:  d.Confidence,
					ChannelSlug: slug,
				}
			}
			inserted, err := e.store.InsertDetections(ctx, rows)
			if err != nil {
				return nil, fmt.Errorf("storing detections for %s: %w", imagePath, err)
			}
			r.Detections += inserted
		}
	}

	log.Printf("Enrichment complete: %d channels, %d images (%d failed), %d detections stored",
		r.Channels, r.Images, r.Failed, r.Detections)
	return r, nil
}
