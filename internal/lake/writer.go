package lake

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DateFormat is the calendar-date layout used for partition directories.
const DateFormat = "2006-01-02"

// messagesDir is the layout root for message partitions under the data dir.
const messagesDir = "telegram_messages"

// PartitionDir returns the directory holding all channel files for a date.
func PartitionDir(root, date string) string {
	return filepath.Join(root, messagesDir, date)
}

// PartitionPath returns the file path for one channel's partition on a date.
func PartitionPath(root, date, slug string) string {
	return filepath.Join(PartitionDir(root, date), slug+".json")
}

// WritePartition persists one channel's scrape output for one date and
// returns the written path. The file is fully replaced on re-runs.
func WritePartition(root, date, slug string, records []json.RawMessage) (string, error) {
	path := PartitionPath(root, date, slug)
	if err := WriteJSON(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON writes doc to path atomically: the document is serialized to a
// temporary file in the same directory, synced, then renamed onto the final
// path. A reader never observes a partial file; on failure the final path
// keeps its previous content and at worst a stray temp file is left behind.
func WriteJSON(path string, doc any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating partition directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("serializing document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
