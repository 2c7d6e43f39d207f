package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// Detection is one labeled object reported by the detection model.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector runs object detection on a single image file.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// CommandDetector delegates detection to an external model by shelling out
// to a configured command. The image path is appended as the final argument
// and the command must print a JSON array of detections on stdout.
type CommandDetector struct {
	argv []string
}

// NewCommandDetector creates a detector for the given command line.
func NewCommandDetector(argv []string) *CommandDetector {
	return &CommandDetector{argv: argv}
}

func (d *CommandDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	if len(d.argv) == 0 {
		return nil, errors.New("no detector command configured")
	}

	args := append(append([]string(nil), d.argv[1:]...), imagePath)
	cmd := exec.CommandContext(ctx, d.argv[0], args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("detector failed on %s: %s", imagePath, exitErr.Stderr)
		}
		return nil, fmt.Errorf("running detector on %s: %w", imagePath, err)
	}

	var dets []Detection
	if err := json.Unmarshal(out, &dets); err != nil {
		return nil, fmt.Errorf("decoding detector output for %s: %w", imagePath, err)
	}
	return dets, nil
}
