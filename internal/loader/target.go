package loader

import (
	"errors"
	"fmt"
	"time"

	"github.com/kara-analytics/telelake/internal/lake"
)

// Target is the validated partition-root selection from the loader's
// --date/--path flags. Exactly one of the two is set; the invariant is
// established at construction and cannot be violated afterwards.
type Target struct {
	date string
	path string
}

// NewTarget enforces that exactly one of date or path is given and that the
// date, when given, is a valid YYYY-MM-DD.
func NewTarget(date, path string) (Target, error) {
	switch {
	case date != "" && path != "":
		return Target{}, errors.New("--date and --path are mutually exclusive")
	case date == "" && path == "":
		return Target{}, errors.New("one of --date or --path is required")
	}
	if date != "" {
		if _, err := time.Parse(lake.DateFormat, date); err != nil {
			return Target{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
		}
	}
	return Target{date: date, path: path}, nil
}

// Root resolves the directory to load: the explicit path, or the standard
// partition directory for the date under the data root.
func (t Target) Root(dataRoot string) string {
	if t.path != "" {
		return t.path
	}
	return lake.PartitionDir(dataRoot, t.date)
}
