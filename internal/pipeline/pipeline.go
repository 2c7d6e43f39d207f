package pipeline

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"

	"github.com/kara-analytics/telelake/internal/config"
	"github.com/kara-analytics/telelake/internal/enrich"
	"github.com/kara-analytics/telelake/internal/loader"
	"github.com/kara-analytics/telelake/internal/rawstore"
	"github.com/kara-analytics/telelake/internal/scrape"
	"github.com/kara-analytics/telelake/internal/telegram"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Date  string
	Steps []StepResult
}

// Pipeline chains the daily ingestion steps:
// scrape -> load -> transform -> enrich.
type Pipeline struct {
	cfg      *config.Config
	store    *rawstore.Store
	client   scrape.ChannelClient
	detector enrich.Detector
}

// New creates a pipeline over an injected store. The channel client and
// detector are built from config.
func New(cfg *config.Config, store *rawstore.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		client:   telegram.NewClient(cfg.Scrape.BaseURL, time.Duration(cfg.Scrape.TimeoutSeconds)*time.Second),
		detector: enrich.NewCommandDetector(cfg.Enrich.DetectorCommand),
	}
}

// Run executes the full chain for one UTC date. Scrape and load must
// succeed for later steps to run; transform and enrich failures are
// reported but do not roll anything back.
func (p *Pipeline) Run(ctx context.Context, date string) *Result {
	r := &Result{Date: date}

	step := p.runScrape(ctx, date)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runLoad(ctx, date)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	r.Steps = append(r.Steps, p.runTransform(ctx))
	r.Steps = append(r.Steps, p.runEnrich(ctx, date))

	return r
}

func (p *Pipeline) runScrape(ctx context.Context, date string) StepResult {
	log.Println("Step 1/4: Scraping channels...")
	collector := scrape.NewCollector(p.client, p.cfg.Scrape.PageSize, p.cfg.GetDataDir(), p.cfg.Scrape.Limit)
	result := collector.Run(ctx, date, p.cfg.Channels)
	return StepResult{
		Name:    "Scrape",
		Summary: fmt.Sprintf("Wrote %d partition files (%d messages, %d channels skipped)", result.Channels, result.Messages, result.Skipped),
	}
}

func (p *Pipeline) runLoad(ctx context.Context, date string) StepResult {
	log.Println("Step 2/4: Loading partitions into the raw store...")
	target, err := loader.NewTarget(date, "")
	if err != nil {
		return StepResult{Name: "Load", Err: err}
	}
	result, err := loader.New(p.store).Load(ctx, target.Root(p.cfg.GetDataDir()))
	if err != nil {
		return StepResult{Name: "Load", Err: err}
	}
	return StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("%d inserted, %d already present, %d bad records, %d files failed", result.Inserted, result.Duplicates, result.BadRecords, result.FilesFailed),
	}
}

func (p *Pipeline) runTransform(ctx context.Context) StepResult {
	argv := p.cfg.Transform.Command
	if len(argv) == 0 {
		return StepResult{Name: "Transform", Summary: "No transform command configured, skipping"}
	}

	log.Printf("Step 3/4: Running transform: %v", argv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return StepResult{Name: "Transform", Err: fmt.Errorf("transform command: %w (output: %s)", err, out)}
	}
	return StepResult{Name: "Transform", Summary: "Transform command completed"}
}

func (p *Pipeline) runEnrich(ctx context.Context, date string) StepResult {
	log.Println("Step 4/4: Enriching channel images...")
	slugs, err := p.store.ChannelSlugsForDate(ctx, date)
	if err != nil {
		return StepResult{Name: "Enrich", Err: err}
	}
	result, err := enrich.New(p.store, p.detector, p.cfg.GetDataDir()).Run(ctx, date, slugs)
	if err != nil {
		return StepResult{Name: "Enrich", Err: err}
	}
	return StepResult{
		Name:    "Enrich",
		Summary: fmt.Sprintf("%d images processed (%d failed), %d detections stored", result.Images, result.Failed, result.Detections),
	}
}
