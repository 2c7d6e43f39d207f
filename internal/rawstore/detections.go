package rawstore

import (
	"context"
	"fmt"
)

// Detection is one labeled object found in a channel image.
type Detection struct {
	ImagePath   string
	Label       string
	Confidence  float64
	ChannelSlug string
}

// InsertDetections stores detection rows, skipping any (image, label) pair
// already recorded. Returns the number of newly inserted rows.
func (s *Store) InsertDetections(ctx context.Context, dets []Detection) (int64, error) {
	if len(dets) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning detection transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO image_detections (image_path, label, confidence, channel_slug)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(image_path, label) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing detection statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, d := range dets {
		res, err := stmt.ExecContext(ctx, d.ImagePath, d.Label, d.Confidence, d.ChannelSlug)
		if err != nil {
			return 0, fmt.Errorf("inserting detection %s/%s: %w", d.ImagePath, d.Label, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing detections: %w", err)
	}
	return inserted, nil
}

// DetectionCount returns the total number of stored detections.
func (s *Store) DetectionCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM image_detections").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting detections: %w", err)
	}
	return n, nil
}
